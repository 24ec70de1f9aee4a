// Command rankctl computes a Lead finals ranking from an HCL roster/results
// file, prints a lipgloss table, and writes a JSON report atomically. With
// --watch it recomputes whenever the input file's mtime changes or a SIGHUP
// arrives. Both triggers call one singleflight.Group under the key
// "recompute", but the watch loop handles one trigger at a time, so a SIGHUP
// and a poll tick landing together each recompute and write the report.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lox/escalada-box/internal/fileutil"
	"github.com/lox/escalada-box/internal/ranking"
)

type CLI struct {
	Input        string        `kong:"arg,help='Path to the HCL roster/results file'"`
	Output       string        `kong:"default='ranking.json',help='Path to write the JSON report'"`
	PodiumPlaces int           `kong:"default='3',help='Number of places the podium-aware tiebreak rules apply to'"`
	RoundName    string        `kong:"default='Final',help='Round name used in tie fingerprints'"`
	Watch        bool          `kong:"help='Recompute whenever the input file changes'"`
	PollEvery    time.Duration `kong:"default='1s',help='Polling interval in --watch mode'"`
	Debug        bool          `kong:"help='Enable debug logging'"`
}

// RosterFile is the HCL shape of a roster/results input file.
type RosterFile struct {
	RoundName    string          `hcl:"round_name,optional"`
	PodiumPlaces int             `hcl:"podium_places,optional"`
	Athletes     []AthleteResult `hcl:"athlete,block"`
}

// AthleteResult is one athlete's identity plus raw Lead performance.
type AthleteResult struct {
	ID          string   `hcl:"id,label"`
	Name        string   `hcl:"name"`
	Topped      bool     `hcl:"topped,optional"`
	Hold        int      `hcl:"hold,optional"`
	Plus        bool     `hcl:"plus,optional"`
	TimeSeconds *float64 `hcl:"time_seconds,optional"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("rankctl"),
		kong.Description("Computes a Lead finals ranking from a roster/results file"),
		kong.UsageOnError(),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	var group singleflight.Group
	compute := func() (any, error) {
		return runOnce(cli, logger)
	}

	if _, err, _ := group.Do("recompute", compute); err != nil {
		logger.Fatal().Err(err).Msg("ranking computation failed")
	}

	if !cli.Watch {
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	var lastMod time.Time
	if info, err := os.Stat(cli.Input); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(cli.PollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			if _, err, _ := group.Do("recompute", compute); err != nil {
				logger.Error().Err(err).Msg("recompute failed")
			}
		case <-ticker.C:
			info, err := os.Stat(cli.Input)
			if err != nil || !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			if _, err, _ := group.Do("recompute", compute); err != nil {
				logger.Error().Err(err).Msg("recompute failed")
			}
		}
	}
}

func runOnce(cli CLI, logger zerolog.Logger) (*ranking.RankingResult, error) {
	roster, err := loadRoster(cli.Input)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	podiumPlaces := cli.PodiumPlaces
	if roster.PodiumPlaces != 0 {
		podiumPlaces = roster.PodiumPlaces
	}
	roundName := cli.RoundName
	if roster.RoundName != "" {
		roundName = roster.RoundName
	}

	var athletes []ranking.Athlete
	results := map[string]ranking.LeadResult{}
	for _, a := range roster.Athletes {
		athletes = append(athletes, ranking.Athlete{ID: a.ID, Name: a.Name})
		results[a.ID] = ranking.LeadResult{Topped: a.Topped, Hold: a.Hold, Plus: a.Plus, TimeSeconds: a.TimeSeconds}
	}

	result := ranking.Compute(athletes, results, nil, podiumPlaces, roundName)

	printTable(result)

	report, err := json.MarshalIndent(reportView(result), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := fileutil.WriteFileAtomic(cli.Output, report, 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	logger.Info().Str("output", cli.Output).Int("rows", len(result.Rows)).Bool("resolved", result.IsResolved).Msg("ranking written")
	return &result, nil
}

func loadRoster(path string) (*RosterFile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse hcl: %s", diags.Error())
	}
	var roster RosterFile
	if diags := gohcl.DecodeBody(file.Body, nil, &roster); diags.HasErrors() {
		return nil, fmt.Errorf("decode hcl: %s", diags.Error())
	}
	return &roster, nil
}

func printTable(result ranking.RankingResult) {
	header := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%-4s %-20s %-6s %-5s %s", "rank", "name", "hold", "top", "time"))
	fmt.Println(header)
	for _, row := range result.Rows {
		style := lipgloss.NewStyle()
		if row.Rank <= 3 {
			style = style.Foreground(lipgloss.Color("#FFD700")).Bold(true)
		}
		timeStr := "-"
		if row.TimeSeconds != nil {
			timeStr = fmt.Sprintf("%.2f", *row.TimeSeconds)
		}
		fmt.Println(style.Render(fmt.Sprintf("%-4d %-20s %-6d %-5v %s", row.Rank, row.AthleteName, row.Hold, row.Topped, timeStr)))
	}
	if !result.IsResolved {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#FFEAA7")).Render(
			fmt.Sprintf("%d podium tiebreak(s) still need a decision", countUnresolvedPodium(result))))
	}
}

func countUnresolvedPodium(result ranking.RankingResult) int {
	n := 0
	for _, ev := range result.TieEvents {
		if ev.AffectsPodium && ev.Status != ranking.TieStatusResolved {
			n++
		}
	}
	return n
}

type reportRow struct {
	AthleteID   string   `json:"athleteId"`
	AthleteName string   `json:"athleteName"`
	Rank        int      `json:"rank"`
	Topped      bool     `json:"topped"`
	Hold        int      `json:"hold"`
	Plus        bool     `json:"plus"`
	TimeSeconds *float64 `json:"timeSeconds,omitempty"`
}

type reportDoc struct {
	Rows       []reportRow `json:"rows"`
	IsResolved bool        `json:"isResolved"`
	Errors     []string    `json:"errors,omitempty"`
}

func reportView(result ranking.RankingResult) reportDoc {
	rows := make([]reportRow, 0, len(result.Rows))
	for _, r := range result.Rows {
		rows = append(rows, reportRow{
			AthleteID: r.AthleteID, AthleteName: r.AthleteName, Rank: r.Rank,
			Topped: r.Topped, Hold: r.Hold, Plus: r.Plus, TimeSeconds: r.TimeSeconds,
		})
	}
	return reportDoc{Rows: rows, IsResolved: result.IsResolved, Errors: result.Errors}
}
