package box

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type capturingSubscriber struct {
	events []Event
}

func (c *capturingSubscriber) OnEvent(event Event) {
	c.events = append(c.events, event)
}

func newTestRegistry() (*Registry, *capturingSubscriber) {
	bus := NewEventBus()
	sub := &capturingSubscriber{}
	bus.Subscribe(sub)
	return NewRegistry(zerolog.Nop(), bus), sub
}

func TestRegisterCreatesFreshSession(t *testing.T) {
	r, _ := newTestRegistry()
	state := r.Register(1, true)
	require.NotEmpty(t, state.SessionID)
	require.Equal(t, 0, state.BoxVersion)
}

func TestApplyUnknownBoxRejected(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Apply(99, map[string]any{"type": "INIT_ROUTE", "sessionId": "x"})
	require.Error(t, err)
	applyErr, ok := err.(*ApplyError)
	require.True(t, ok)
	require.Equal(t, "unknown_box", applyErr.Kind)
}

func TestApplyInitRouteThenRequiresSessionForFollowup(t *testing.T) {
	r, sub := newTestRegistry()
	r.Register(1, true)

	_, err := r.Apply(1, map[string]any{
		"type":        "INIT_ROUTE",
		"routeIndex":  1,
		"competitors": []any{map[string]any{"nume": "Ada"}, map[string]any{"nume": "Beth"}},
		"timerPreset": "06:00",
	})
	require.NoError(t, err)

	state, ok := r.Snapshot(1)
	require.True(t, ok)
	require.Equal(t, 1, state.BoxVersion)

	_, err = r.Apply(1, map[string]any{"type": "START_TIMER", "boxId": 1})
	require.Error(t, err)
	applyErr, ok := err.(*ApplyError)
	require.True(t, ok)
	require.Equal(t, "missing_session", applyErr.Kind)

	_, err = r.Apply(1, map[string]any{
		"type":       "START_TIMER",
		"boxId":      1,
		"sessionId":  state.SessionID,
		"boxVersion": state.BoxVersion,
	})
	require.NoError(t, err)

	require.NotEmpty(t, sub.events)
}

func TestApplyStaleVersionRejected(t *testing.T) {
	r, _ := newTestRegistry()
	r.Register(1, true)
	_, err := r.Apply(1, map[string]any{
		"type":        "INIT_ROUTE",
		"routeIndex":  1,
		"competitors": []any{map[string]any{"nume": "Ada"}},
	})
	require.NoError(t, err)

	state, _ := r.Snapshot(1)
	_, err = r.Apply(1, map[string]any{
		"type":       "START_TIMER",
		"sessionId":  state.SessionID,
		"boxVersion": state.BoxVersion - 1,
	})
	require.Error(t, err)
	applyErr := err.(*ApplyError)
	require.Equal(t, "stale_version", applyErr.Kind)
}
