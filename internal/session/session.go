// Package session implements the epoch gate: rejecting commands whose
// sessionId or boxVersion no longer matches the box's current state.
package session

import (
	"github.com/lox/escalada-box/internal/boxstate"
	"github.com/lox/escalada-box/internal/command"
)

// Validate checks a command's envelope against the current box state.
// requireSession should be false only for INIT_ROUTE, the canonical
// bootstrap command that may arrive before any session is known to the
// caller.
func Validate(state boxstate.State, env command.Envelope, requireSession bool) *command.ValidationError {
	if requireSession && env.SessionID == nil {
		return &command.ValidationError{
			Kind:       "missing_session",
			Message:    "sessionId required for all commands except INIT_ROUTE",
			StatusCode: 400,
		}
	}

	if env.SessionID != nil && state.SessionID != "" && *env.SessionID != state.SessionID {
		return &command.ValidationError{Kind: "stale_session"}
	}

	if env.BoxVersion != nil && *env.BoxVersion < state.BoxVersion {
		return &command.ValidationError{Kind: "stale_version"}
	}

	return nil
}
