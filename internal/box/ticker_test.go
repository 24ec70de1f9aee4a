package box

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestTickerSyncsRunningTimers(t *testing.T) {
	registry, sub := newTestRegistry()
	registry.Register(1, false)
	_, err := registry.Apply(1, map[string]any{
		"type":        "INIT_ROUTE",
		"routeIndex":  1,
		"competitors": []any{map[string]any{"nume": "Ada"}},
		"timerPreset": "00:10",
	})
	require.NoError(t, err)
	state, _ := registry.Snapshot(1)
	_, err = registry.Apply(1, map[string]any{"type": "START_TIMER", "sessionId": state.SessionID, "boxVersion": state.BoxVersion})
	require.NoError(t, err)

	clock := quartz.NewMock(t)
	ticker := NewTicker(registry, clock, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	clock.Advance(time.Second).MustWait(context.Background())
	cancel()
	<-done

	found := false
	for _, ev := range sub.events {
		if ev.EventType() == EventTypeEcho {
			echo := ev.(EchoEvent)
			if echo.Payload["type"] == "TIMER_SYNC" {
				found = true
			}
		}
	}
	require.True(t, found)
}
