// Package box wires the command validator, session gate, and contest state
// machine into a concurrency-safe registry of running boxes, plus a
// quartz-driven TIMER_SYNC ticker and an event bus for snapshot/echo
// delivery to listeners (a TUI, a websocket relay, a log sink).
package box

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lox/escalada-box/internal/boxstate"
	"github.com/lox/escalada-box/internal/command"
	"github.com/lox/escalada-box/internal/contest"
	"github.com/lox/escalada-box/internal/session"
)

// ApplyError is returned by Registry.Apply when a command is rejected before
// or during a transition. Kind distinguishes validation, session, and
// transition failures so callers can map to transport status codes.
type ApplyError struct {
	Kind       string
	Message    string
	StatusCode int
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func fromValidation(e *command.ValidationError) *ApplyError {
	status := e.StatusCode
	if status == 0 {
		status = 422
	}
	return &ApplyError{Kind: e.Kind, Message: e.Message, StatusCode: status}
}

func fromContest(e *contest.Error) *ApplyError {
	return &ApplyError{Kind: e.Kind, Message: e.Message, StatusCode: 409}
}

type boxEntry struct {
	mu             sync.Mutex
	state          boxstate.State
	requireSession bool
}

// Registry owns the live state of every box and serializes transitions
// per-box while allowing different boxes to proceed concurrently.
type Registry struct {
	mu     sync.RWMutex
	boxes  map[int]*boxEntry
	logger zerolog.Logger
	bus    EventBus
}

// NewRegistry creates an empty registry publishing to bus.
func NewRegistry(logger zerolog.Logger, bus EventBus) *Registry {
	if bus == nil {
		bus = NewEventBus()
	}
	return &Registry{
		boxes:  make(map[int]*boxEntry),
		logger: logger.With().Str("component", "box_registry").Logger(),
		bus:    bus,
	}
}

// Register creates a box with a fresh session if it doesn't already exist
// and returns its current state.
func (r *Registry) Register(boxID int, requireSession bool) boxstate.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.boxes[boxID]
	if !ok {
		entry = &boxEntry{
			state:          boxstate.New(boxstate.NewSessionID()),
			requireSession: requireSession,
		}
		r.boxes[boxID] = entry
		r.logger.Info().Int("box_id", boxID).Msg("box registered")
	}
	return entry.state.Clone()
}

// Unregister drops a box entirely. Its history is not recoverable.
func (r *Registry) Unregister(boxID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boxes, boxID)
	r.logger.Info().Int("box_id", boxID).Msg("box unregistered")
}

// BoxIDs returns the currently registered box identifiers.
func (r *Registry) BoxIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.boxes))
	for id := range r.boxes {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns a copy of a box's current state.
func (r *Registry) Snapshot(boxID int) (boxstate.State, bool) {
	entry, ok := r.lookup(boxID)
	if !ok {
		return boxstate.State{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state.Clone(), true
}

func (r *Registry) lookup(boxID int) (*boxEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.boxes[boxID]
	return entry, ok
}

// Apply validates and applies a raw transport command against the named
// box's state, publishing an echo (and, when the transition demands it, a
// snapshot) to the event bus on success.
func (r *Registry) Apply(boxID int, raw map[string]any) (map[string]any, error) {
	entry, ok := r.lookup(boxID)
	if !ok {
		return nil, &ApplyError{Kind: "unknown_box", Message: fmt.Sprintf("box %d is not registered", boxID), StatusCode: 404}
	}

	cmd, verr := command.Parse(raw)
	if verr != nil {
		return nil, fromValidation(verr)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	requireSession := entry.requireSession && cmd.Kind() != command.TypeInitRoute
	if serr := session.Validate(entry.state, cmd.Env(), requireSession); serr != nil {
		return nil, fromValidation(serr)
	}

	newState, echo, snapshotRequired, err := contest.Apply(entry.state, cmd)
	if err != nil {
		if cerr, ok := err.(*contest.Error); ok {
			return nil, fromContest(cerr)
		}
		return nil, &ApplyError{Kind: "internal_error", Message: err.Error(), StatusCode: 500}
	}

	entry.state = newState
	r.bus.Publish(NewEchoEvent(boxID, echo))
	if snapshotRequired {
		r.bus.Publish(NewSnapshotEvent(boxID, newState.Clone()))
	}
	r.logger.Debug().
		Int("box_id", boxID).
		Str("command", string(cmd.Kind())).
		Bool("snapshot", snapshotRequired).
		Msg("command applied")

	return echo, nil
}
