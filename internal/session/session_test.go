package session_test

import (
	"testing"

	"github.com/lox/escalada-box/internal/boxstate"
	"github.com/lox/escalada-box/internal/command"
	"github.com/lox/escalada-box/internal/session"
)

func envelope(sessionID string, boxVersion *int) command.Envelope {
	var sid *string
	if sessionID != "" {
		sessionID := sessionID
		sid = &sessionID
	}
	return command.Envelope{SessionID: sid, BoxVersion: boxVersion}
}

func intPtr(v int) *int { return &v }

func TestValidateStaleTabRejection(t *testing.T) {
	state := boxstate.New("sid-4")
	state.BoxVersion = 2

	tests := []struct {
		name          string
		env           command.Envelope
		requireSess   bool
		wantKind      string
		wantNil       bool
	}{
		{"missing session rejected", envelope("", nil), true, "missing_session", false},
		{"stale session rejected", envelope("other", nil), true, "stale_session", false},
		{"stale version rejected", envelope("sid-4", intPtr(1)), true, "stale_version", false},
		{"matching session and newer version accepted", envelope("sid-4", intPtr(3)), true, "", true},
		{"init route does not require session", envelope("", nil), false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := session.Validate(state, tt.env, tt.requireSess)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("expected no error, got %+v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error kind %q, got nil", tt.wantKind)
			}
			if err.Kind != tt.wantKind {
				t.Errorf("got kind %q, want %q", err.Kind, tt.wantKind)
			}
		})
	}
}

func TestMissingSessionHasAdvisoryStatus(t *testing.T) {
	state := boxstate.New("sid")
	err := session.Validate(state, command.Envelope{}, true)
	if err == nil || err.StatusCode != 400 {
		t.Fatalf("expected status_code 400, got %+v", err)
	}
}
