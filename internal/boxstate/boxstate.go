// Package boxstate defines the aggregate value owned by the contest state
// machine: one box's route configuration, timer, competitor queue, scores,
// and tiebreak-decision bookkeeping.
package boxstate

import "github.com/google/uuid"

// Timer states. started mirrors TimerState == Running.
const (
	TimerIdle    = "idle"
	TimerRunning = "running"
	TimerPaused  = "paused"
)

// Competitor is one roster entry. Insertion order is the queue order.
type Competitor struct {
	Name    string
	Marked  bool
	Club    string
	HasClub bool
}

// State is the full aggregate described by the box state data model. It is
// never mutated in place by the contest package; every transition returns a
// new value produced from Clone.
type State struct {
	SessionID  string
	BoxVersion int

	Initiated bool
	Categorie string

	RouteIndex  int
	RoutesCount int
	HoldsCount  int
	HoldsCounts []int

	TimerState        string
	Started           bool
	TimerPreset       string
	HasTimerPreset    bool
	TimerPresetSec    int
	HasTimerPresetSec bool
	Remaining         *float64

	HoldCount          float64
	CurrentClimber     string
	PreparingClimber   string
	LastRegisteredTime *float64

	Competitors []Competitor

	// Scores/times: competitor name -> per-route value, indexed 0-based by
	// route; nil entries mean "not yet scored for that route".
	Scores map[string][]*float64
	Times  map[string][]*float64

	TimeTiebreakDecisions           map[string]string
	TimeTiebreakResolvedFingerprint *string
	TimeTiebreakResolvedDecision    *string
	TimeTiebreakPreference          *string

	PrevRoundsTiebreakDecisions           map[string]string
	PrevRoundsTiebreakResolvedFingerprint *string
	PrevRoundsTiebreakResolvedDecision    *string
	PrevRoundsTiebreakPreference          *string
	PrevRoundsTiebreakOrders             map[string][]string
	PrevRoundsTiebreakRanks              map[string]map[string]int

	TimeCriterionEnabled bool
}

// NewSessionID returns a fresh opaque UUIDv4-shaped token.
func NewSessionID() string {
	return uuid.New().String()
}

// New builds a fresh default state. If sessionID is empty a new one is
// generated with NewSessionID.
func New(sessionID string) State {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return State{
		SessionID:   sessionID,
		BoxVersion:  0,
		RouteIndex:  1,
		RoutesCount: 1,
		TimerState:  TimerIdle,
		HoldsCounts: []int{},
		Competitors: []Competitor{},
		Scores:      map[string][]*float64{},
		Times:       map[string][]*float64{},

		TimeTiebreakDecisions:       map[string]string{},
		PrevRoundsTiebreakDecisions: map[string]string{},
		PrevRoundsTiebreakOrders:    map[string][]string{},
		PrevRoundsTiebreakRanks:     map[string]map[string]int{},
	}
}

// Clone returns a deep copy so callers can mutate the result freely without
// aliasing the original's slices/maps.
func (s State) Clone() State {
	out := s

	out.HoldsCounts = append([]int(nil), s.HoldsCounts...)
	out.Competitors = append([]Competitor(nil), s.Competitors...)

	out.Scores = make(map[string][]*float64, len(s.Scores))
	for k, v := range s.Scores {
		out.Scores[k] = append([]*float64(nil), v...)
	}
	out.Times = make(map[string][]*float64, len(s.Times))
	for k, v := range s.Times {
		out.Times[k] = append([]*float64(nil), v...)
	}

	out.TimeTiebreakDecisions = cloneStringMap(s.TimeTiebreakDecisions)
	out.PrevRoundsTiebreakDecisions = cloneStringMap(s.PrevRoundsTiebreakDecisions)

	out.PrevRoundsTiebreakOrders = make(map[string][]string, len(s.PrevRoundsTiebreakOrders))
	for k, v := range s.PrevRoundsTiebreakOrders {
		out.PrevRoundsTiebreakOrders[k] = append([]string(nil), v...)
	}
	out.PrevRoundsTiebreakRanks = make(map[string]map[string]int, len(s.PrevRoundsTiebreakRanks))
	for k, v := range s.PrevRoundsTiebreakRanks {
		inner := make(map[string]int, len(v))
		for n, r := range v {
			inner[n] = r
		}
		out.PrevRoundsTiebreakRanks[k] = inner
	}

	if s.Remaining != nil {
		r := *s.Remaining
		out.Remaining = &r
	}
	if s.LastRegisteredTime != nil {
		r := *s.LastRegisteredTime
		out.LastRegisteredTime = &r
	}
	out.TimeTiebreakResolvedFingerprint = clonePtr(s.TimeTiebreakResolvedFingerprint)
	out.TimeTiebreakResolvedDecision = clonePtr(s.TimeTiebreakResolvedDecision)
	out.TimeTiebreakPreference = clonePtr(s.TimeTiebreakPreference)
	out.PrevRoundsTiebreakResolvedFingerprint = clonePtr(s.PrevRoundsTiebreakResolvedFingerprint)
	out.PrevRoundsTiebreakResolvedDecision = clonePtr(s.PrevRoundsTiebreakResolvedDecision)
	out.PrevRoundsTiebreakPreference = clonePtr(s.PrevRoundsTiebreakPreference)

	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CompetitorIndex returns the index of the competitor with the given name,
// or -1 if absent.
func (s State) CompetitorIndex(name string) int {
	for i, c := range s.Competitors {
		if c.Name == name {
			return i
		}
	}
	return -1
}
