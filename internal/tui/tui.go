package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/escalada-box/internal/boxstate"
	"github.com/lox/escalada-box/internal/ranking"
)

// Model is a read-only monitor: it renders one box's live state plus the
// most recently computed ranking, and scrolls a log of applied commands. It
// never originates commands itself — boxctl's transcript runner does that.
type Model struct {
	logger *log.Logger

	boxID int
	state boxstate.State
	rank  *ranking.RankingResult

	logViewport viewport.Model
	entries     []string

	width, height int
	quitting      bool
}

// New creates a monitor model for boxID.
func New(boxID int, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	return &Model{
		boxID:       boxID,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
	}
}

// StateMsg carries a fresh box state snapshot into the Bubble Tea loop.
type StateMsg struct{ State boxstate.State }

// RankingMsg carries a fresh ranking computation into the Bubble Tea loop.
type RankingMsg struct{ Result ranking.RankingResult }

// LogMsg appends one line to the scrolling command log.
type LogMsg struct{ Line string }

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			m.logViewport.ScrollUp(1)
		case "down", "j":
			m.logViewport.ScrollDown(1)
		}
	case StateMsg:
		m.state = msg.State
	case RankingMsg:
		m.rank = &msg.Result
	case LogMsg:
		m.entries = append(m.entries, msg.Line)
		if len(m.entries) > 500 {
			m.entries = m.entries[len(m.entries)-500:]
		}
		m.logViewport.SetContent(strings.Join(m.entries, "\n"))
		m.logViewport.GotoBottom()
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "waiting for terminal size..."
	}

	header := HeaderStyle.Render(fmt.Sprintf(" box %d ", m.boxID))
	status := m.renderStatus()
	rankTable := m.renderRanking()

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(m.width - 2)
	m.logViewport.Width = m.width - 4
	m.logViewport.Height = max(m.height-lipgloss.Height(status)-lipgloss.Height(rankTable)-6, 3)
	logPane := logStyle.Render(m.logViewport.View())

	return lipgloss.JoinVertical(lipgloss.Top, header, status, rankTable, logPane)
}

func (m *Model) renderStatus() string {
	timerStyle := TimerIdleStyle
	switch m.state.TimerState {
	case boxstate.TimerRunning:
		timerStyle = TimerRunningStyle
	case boxstate.TimerPaused:
		timerStyle = TimerPausedStyle
	}
	remaining := "--"
	if m.state.Remaining != nil {
		remaining = fmt.Sprintf("%.0fs", *m.state.Remaining)
	}
	return fmt.Sprintf(
		"route %d  holds %.1f/%d  climber %q  timer %s (%s)",
		m.state.RouteIndex, m.state.HoldCount, m.state.HoldsCount, m.state.CurrentClimber,
		timerStyle.Render(string(m.state.TimerState)), remaining,
	)
}

func (m *Model) renderRanking() string {
	if m.rank == nil {
		return PendingStyle.Render("no ranking computed yet")
	}
	var b strings.Builder
	for _, row := range m.rank.Rows {
		style := lipgloss.NewStyle()
		if row.Rank <= 3 {
			style = PodiumStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%2d. %-20s hold=%d topped=%v", row.Rank, row.AthleteName, row.Hold, row.Topped)))
		b.WriteString("\n")
	}
	if !m.rank.IsResolved {
		b.WriteString(PendingStyle.Render(fmt.Sprintf("%d tiebreak event(s) awaiting resolution", len(pendingEvents(m.rank.TieEvents)))))
	}
	return b.String()
}

func pendingEvents(events []ranking.TieEvent) []ranking.TieEvent {
	var out []ranking.TieEvent
	for _, e := range events {
		if e.Status != ranking.TieStatusResolved {
			out = append(out, e)
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
