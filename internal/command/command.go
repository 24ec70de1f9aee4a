// Package command implements the syntactic/semantic validation boundary
// between loosely-typed transport records and the tagged-union Command
// variants the contest state machine operates on.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Type enumerates the closed set of recognized command types.
type Type string

const (
	TypeInitRoute                     Type = "INIT_ROUTE"
	TypeStartTimer                    Type = "START_TIMER"
	TypeStopTimer                     Type = "STOP_TIMER"
	TypeResumeTimer                   Type = "RESUME_TIMER"
	TypeProgressUpdate                Type = "PROGRESS_UPDATE"
	TypeRequestActiveCompetitor       Type = "REQUEST_ACTIVE_COMPETITOR"
	TypeSubmitScore                   Type = "SUBMIT_SCORE"
	TypeRequestState                  Type = "REQUEST_STATE"
	TypeSetTimeCriterion              Type = "SET_TIME_CRITERION"
	TypeSetTimeTiebreakDecision       Type = "SET_TIME_TIEBREAK_DECISION"
	TypeSetPrevRoundsTiebreakDecision Type = "SET_PREV_ROUNDS_TIEBREAK_DECISION"
	TypeRegisterTime                  Type = "REGISTER_TIME"
	TypeTimerSync                     Type = "TIMER_SYNC"
	TypeActiveClimber                 Type = "ACTIVE_CLIMBER"
	TypeResetPartial                  Type = "RESET_PARTIAL"
	TypeResetBox                      Type = "RESET_BOX"
	TypeSetTimerPreset                Type = "SET_TIMER_PRESET"
)

var knownTypes = map[Type]bool{
	TypeInitRoute: true, TypeStartTimer: true, TypeStopTimer: true,
	TypeResumeTimer: true, TypeProgressUpdate: true, TypeRequestActiveCompetitor: true,
	TypeSubmitScore: true, TypeRequestState: true, TypeSetTimeCriterion: true,
	TypeSetTimeTiebreakDecision: true, TypeSetPrevRoundsTiebreakDecision: true,
	TypeRegisterTime: true, TypeTimerSync: true, TypeActiveClimber: true,
	TypeResetPartial: true, TypeResetBox: true, TypeSetTimerPreset: true,
}

// ValidationError represents a non-transport validation failure.
type ValidationError struct {
	Kind       string
	Message    string
	StatusCode int
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind
}

func invalid(kind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Envelope carries the fields every command may optionally arrive with.
type Envelope struct {
	SessionID  *string
	BoxVersion *int
	BoxID      *int
}

// Command is the tagged-union interface implemented by each concrete command
// struct. Type-switch on the concrete type (or compare Kind()) to dispatch.
type Command interface {
	Kind() Type
	Env() Envelope
}

// CompetitorInput is one normalized-but-not-yet-sanitized roster entry.
type CompetitorInput struct {
	Nume    string
	Club    string
	HasClub bool
	Marked  bool
}

type InitRoute struct {
	Envelope
	RouteIndex     int
	HoldsCount     int
	RoutesCount    *int
	HoldsCounts    []int
	Competitors    []CompetitorInput
	Categorie      *string
	TimerPreset    *string
	TimerPresetSec int
}

func (InitRoute) Kind() Type      { return TypeInitRoute }
func (c InitRoute) Env() Envelope { return c.Envelope }

type StartTimer struct{ Envelope }

func (StartTimer) Kind() Type      { return TypeStartTimer }
func (c StartTimer) Env() Envelope { return c.Envelope }

type StopTimer struct{ Envelope }

func (StopTimer) Kind() Type      { return TypeStopTimer }
func (c StopTimer) Env() Envelope { return c.Envelope }

type ResumeTimer struct{ Envelope }

func (ResumeTimer) Kind() Type      { return TypeResumeTimer }
func (c ResumeTimer) Env() Envelope { return c.Envelope }

type ProgressUpdate struct {
	Envelope
	Delta float64
}

func (ProgressUpdate) Kind() Type      { return TypeProgressUpdate }
func (c ProgressUpdate) Env() Envelope { return c.Envelope }

type RequestActiveCompetitor struct{ Envelope }

func (RequestActiveCompetitor) Kind() Type      { return TypeRequestActiveCompetitor }
func (c RequestActiveCompetitor) Env() Envelope { return c.Envelope }

type RequestState struct{ Envelope }

func (RequestState) Kind() Type      { return TypeRequestState }
func (c RequestState) Env() Envelope { return c.Envelope }

type ActiveClimber struct{ Envelope }

func (ActiveClimber) Kind() Type      { return TypeActiveClimber }
func (c ActiveClimber) Env() Envelope { return c.Envelope }

type SubmitScore struct {
	Envelope
	Competitor     *string
	CompetitorIdx  *int
	Idx            *int
	Score          *float64
	RegisteredTime *float64
}

func (SubmitScore) Kind() Type      { return TypeSubmitScore }
func (c SubmitScore) Env() Envelope { return c.Envelope }

type RegisterTime struct {
	Envelope
	RegisteredTime *float64
}

func (RegisterTime) Kind() Type      { return TypeRegisterTime }
func (c RegisterTime) Env() Envelope { return c.Envelope }

type TimerSync struct {
	Envelope
	Remaining float64
}

func (TimerSync) Kind() Type      { return TypeTimerSync }
func (c TimerSync) Env() Envelope { return c.Envelope }

type SetTimerPreset struct {
	Envelope
	TimerPreset    string
	TimerPresetSec int
}

func (SetTimerPreset) Kind() Type      { return TypeSetTimerPreset }
func (c SetTimerPreset) Env() Envelope { return c.Envelope }

type SetTimeCriterion struct {
	Envelope
	TimeCriterionEnabled bool
}

func (SetTimeCriterion) Kind() Type      { return TypeSetTimeCriterion }
func (c SetTimeCriterion) Env() Envelope { return c.Envelope }

type SetTimeTiebreakDecision struct {
	Envelope
	Decision    string
	Fingerprint string
}

func (SetTimeTiebreakDecision) Kind() Type      { return TypeSetTimeTiebreakDecision }
func (c SetTimeTiebreakDecision) Env() Envelope { return c.Envelope }

type SetPrevRoundsTiebreakDecision struct {
	Envelope
	Decision    string
	Fingerprint string
	Order       []string
	RanksByName map[string]int
}

func (SetPrevRoundsTiebreakDecision) Kind() Type      { return TypeSetPrevRoundsTiebreakDecision }
func (c SetPrevRoundsTiebreakDecision) Env() Envelope { return c.Envelope }

type ResetPartial struct {
	Envelope
	ResetTimer    bool
	ClearProgress bool
	UnmarkAll     bool
}

func (ResetPartial) Kind() Type      { return TypeResetPartial }
func (c ResetPartial) Env() Envelope { return c.Envelope }

type ResetBox struct{ Envelope }

func (ResetBox) Kind() Type      { return TypeResetBox }
func (c ResetBox) Env() Envelope { return c.Envelope }

var dangerousSubstrings = []string{"--", "/*", "<script", "javascript:", "onerror="}

func containsDangerousSubstring(name string) bool {
	lower := strings.ToLower(name)
	for _, bad := range dangerousSubstrings {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

func looksLikeHTML(name string) bool {
	return strings.Contains(name, "<") && strings.Contains(name, ">")
}

func looksLikeSQLInjection(name string) bool {
	if !strings.Contains(name, "'") {
		return false
	}
	upper := strings.ToUpper(name)
	return strings.Contains(upper, " OR ") || strings.Contains(upper, " AND ") || strings.Contains(upper, "=")
}

// ValidateCompetitorName applies the direct-field rules from §4.2: HTML tags
// and SQL-pattern heuristics, on top of the shared dangerous-substring list.
func ValidateCompetitorName(name string) *ValidationError {
	if containsDangerousSubstring(name) {
		return invalid("dangerous_competitor_name", "competitor name contains a forbidden substring")
	}
	if looksLikeHTML(name) {
		return invalid("dangerous_competitor_name", "competitor name contains HTML tag delimiters")
	}
	if looksLikeSQLInjection(name) {
		return invalid("dangerous_competitor_name", "competitor name contains a SQL-injection heuristic")
	}
	return nil
}

// NormalizeTimerPreset accepts "M:S" or "MM:SS" (minutes 0-99, seconds
// 0-59) and returns the zero-padded "MM:SS" form plus derived seconds.
func NormalizeTimerPreset(preset string) (string, int, *ValidationError) {
	parts := strings.Split(preset, ":")
	if len(parts) != 2 {
		return "", 0, invalid("invalid_timer_preset", "timerPreset must have the shape M:S or MM:SS")
	}
	for _, p := range parts {
		if len(p) < 1 || len(p) > 2 || strings.Trim(p, "0123456789") != "" {
			return "", 0, invalid("invalid_timer_preset", "timerPreset must have the shape M:S or MM:SS")
		}
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, invalid("invalid_timer_preset", "timerPreset minutes must be numeric")
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, invalid("invalid_timer_preset", "timerPreset seconds must be numeric")
	}
	if minutes < 0 || minutes > 99 || seconds < 0 || seconds > 59 {
		return "", 0, invalid("invalid_timer_preset", "timerPreset minutes must be 0-99 and seconds 0-59")
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds), minutes*60 + seconds, nil
}
