// Command boxctl drives one climbing box from a JSONL transcript of
// commands, applying each through the same Registry a live controller
// would use, and renders the result with the monitor in internal/tui.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/lox/escalada-box/internal/box"
	"github.com/lox/escalada-box/internal/boxconfig"
	"github.com/lox/escalada-box/internal/tui"
)

type CLI struct {
	Config      string        `kong:"default='boxctl.hcl',help='Path to the host HCL configuration file'"`
	BoxID       int           `kong:"default='1',help='Box id to drive from the transcript'"`
	Transcript  string        `kong:"help='Path to a JSONL command transcript; defaults to stdin',optional"`
	TickEvery   time.Duration `kong:"default='1s',help='TIMER_SYNC cadence'"`
	Debug       bool          `kong:"help='Enable debug logging'"`
	Headless    bool          `kong:"help='Apply the transcript without launching the TUI'"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("boxctl"),
		kong.Description("Drives a climbing competition box from a command transcript"),
		kong.UsageOnError(),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	cfg, err := boxconfig.Load(cli.Config)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	bus := box.NewEventBus()
	registry := box.NewRegistry(logger, bus)
	for _, boxCfg := range cfg.Boxes {
		registry.Register(boxCfg.ID, boxCfg.RequireSession)
	}

	clock := quartz.NewReal()
	ticker := box.NewTicker(registry, clock, cli.TickEvery, logger)
	tickerCtx, cancelTicker := context.WithCancel(context.Background())
	defer cancelTicker()
	go func() {
		if err := ticker.Run(tickerCtx); err != nil && tickerCtx.Err() == nil {
			logger.Warn().Err(err).Msg("ticker stopped")
		}
	}()

	var model *tui.Model
	var program *tea.Program
	if !cli.Headless {
		tuiLogger := charmlog.New(os.Stderr)
		tuiLogger.SetColorProfile(termenv.TrueColor)
		model = tui.New(cli.BoxID, tuiLogger)
		program = tea.NewProgram(model)
		bus.Subscribe(boxSubscriber{program: program})
	}

	input := os.Stdin
	if cli.Transcript != "" {
		f, err := os.Open(cli.Transcript)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cli.Transcript).Msg("failed to open transcript")
		}
		defer f.Close()
		input = f
	}

	replayDone := make(chan struct{})
	go func() {
		defer close(replayDone)
		if err := replay(registry, cli.BoxID, input, logger); err != nil && err != io.EOF {
			logger.Error().Err(err).Msg("transcript replay failed")
		}
		if program != nil {
			program.Send(tui.LogMsg{Line: "-- transcript complete --"})
		}
	}()

	if program != nil {
		if _, err := program.Run(); err != nil {
			logger.Fatal().Err(err).Msg("tui exited with error")
		}
	} else {
		<-replayDone
	}
}

// replay reads one JSON command object per line and applies each to boxID.
func replay(registry *box.Registry, boxID int, r io.Reader, logger zerolog.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("skipping malformed transcript line")
			continue
		}
		echo, err := registry.Apply(boxID, raw)
		if err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("command rejected")
			continue
		}
		logger.Debug().Interface("echo", echo).Msg("command applied")
	}
	return scanner.Err()
}

// boxSubscriber forwards registry events into the running Bubble Tea
// program as typed messages.
type boxSubscriber struct {
	program *tea.Program
}

func (s boxSubscriber) OnEvent(event box.Event) {
	switch e := event.(type) {
	case box.SnapshotEvent:
		s.program.Send(tui.StateMsg{State: e.State})
	case box.EchoEvent:
		s.program.Send(tui.LogMsg{Line: fmt.Sprintf("%v", e.Payload["type"])})
	}
}
