package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/escalada-box/internal/boxstate"
)

func TestModelRendersAfterWindowSize(t *testing.T) {
	m := New(1, log.New(nil))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model := updated.(*Model)
	out := model.View()
	if out == "" {
		t.Fatal("expected non-empty view after window size is known")
	}
}

func TestModelAppliesStateAndLogMessages(t *testing.T) {
	m := New(1, log.New(nil))
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	state := boxstate.New("sess-1")
	state.CurrentClimber = "Ada"
	updated, _ := m.Update(StateMsg{State: state})
	model := updated.(*Model)
	if model.state.CurrentClimber != "Ada" {
		t.Fatalf("expected current climber to be set, got %q", model.state.CurrentClimber)
	}
	updated, _ = model.Update(LogMsg{Line: "INIT_ROUTE accepted"})
	model = updated.(*Model)
	if len(model.entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(model.entries))
	}
}

func TestModelQuitsOnEscape(t *testing.T) {
	m := New(1, log.New(nil))
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model := updated.(*Model)
	if !model.quitting {
		t.Fatal("expected quitting to be set")
	}
	if cmd == nil {
		t.Fatal("expected a tea.Quit command")
	}
}
