package box

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/escalada-box/internal/boxstate"
)

// Ticker periodically issues TIMER_SYNC commands to every running box whose
// timer is active, so connected displays stay within a countdown tolerance
// of the authoritative remaining time without the box itself polling.
type Ticker struct {
	registry *Registry
	clock    quartz.Clock
	interval time.Duration
	logger   zerolog.Logger
}

// NewTicker creates a ticker that drives registry at the given interval
// using clock. Pass quartz.NewReal() in production, quartz.NewMock(t) in
// tests.
func NewTicker(registry *Registry, clock quartz.Clock, interval time.Duration, logger zerolog.Logger) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{
		registry: registry,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "box_ticker").Logger(),
	}
}

// Run drives TIMER_SYNC ticks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				t.tick()
			}
		}
	})
	return group.Wait()
}

func (t *Ticker) tick() {
	for _, boxID := range t.registry.BoxIDs() {
		state, ok := t.registry.Snapshot(boxID)
		if !ok || state.TimerState != boxstate.TimerRunning {
			continue
		}
		// START_TIMER clears remaining; the countdown then starts from the preset.
		var current float64
		switch {
		case state.Remaining != nil:
			current = *state.Remaining
		case state.HasTimerPresetSec:
			current = float64(state.TimerPresetSec)
		default:
			continue
		}
		remaining := current - t.interval.Seconds()
		if remaining < 0 {
			remaining = 0
		}
		_, err := t.registry.Apply(boxID, map[string]any{
			"type":       "TIMER_SYNC",
			"boxId":      boxID,
			"sessionId":  state.SessionID,
			"boxVersion": state.BoxVersion,
			"remaining":  remaining,
		})
		if err != nil {
			t.logger.Warn().Int("box_id", boxID).Err(err).Msg("timer sync rejected")
		}
	}
}
