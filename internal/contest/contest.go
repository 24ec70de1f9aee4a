// Package contest implements the pure contest state machine: one transition
// function per command type, each returning a new box state, an echoable
// payload, and whether the caller must snapshot/broadcast the result.
package contest

import (
	"fmt"
	"math"

	"github.com/lox/escalada-box/internal/boxstate"
	"github.com/lox/escalada-box/internal/command"
	"github.com/lox/escalada-box/internal/sanitize"
)

// Error is raised for the small set of transitions that can fail
// synchronously against live state (bad SUBMIT_SCORE index, for instance).
// All other ill-formed optional fields are silently ignored by design.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func errf(kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Apply runs one command against state and returns the new state, the echo
// payload, and whether the result must be snapshotted. It never mutates
// state; the returned value is always a fresh copy.
func Apply(state boxstate.State, cmd command.Command) (boxstate.State, map[string]any, bool, error) {
	switch c := cmd.(type) {
	case command.InitRoute:
		return applyInitRoute(state, c)
	case command.StartTimer:
		return applyStartTimer(state, c)
	case command.StopTimer:
		return applyStopTimer(state, c)
	case command.ResumeTimer:
		return applyResumeTimer(state, c)
	case command.ProgressUpdate:
		return applyProgressUpdate(state, c)
	case command.RegisterTime:
		return applyRegisterTime(state, c)
	case command.TimerSync:
		return applyTimerSync(state, c)
	case command.SetTimerPreset:
		return applySetTimerPreset(state, c)
	case command.SubmitScore:
		return applySubmitScore(state, c)
	case command.SetTimeCriterion:
		return applySetTimeCriterion(state, c)
	case command.SetTimeTiebreakDecision:
		return applySetTimeTiebreakDecision(state, c)
	case command.SetPrevRoundsTiebreakDecision:
		return applySetPrevRoundsTiebreakDecision(state, c)
	case command.ResetPartial:
		return applyResetPartial(state, c)
	case command.ResetBox:
		return applyResetBox(state, c)
	case command.RequestState, command.RequestActiveCompetitor, command.ActiveClimber:
		return state.Clone(), map[string]any{"type": string(cmd.Kind())}, false, nil
	default:
		return state, nil, false, errf("unknown_command_type", "no transition for %T", cmd)
	}
}

func envelopeBase(t command.Type, sessionID string) map[string]any {
	return map[string]any{
		"type":      string(t),
		"sessionId": sessionID,
	}
}

func normalizeCompetitors(inputs []command.CompetitorInput) []boxstate.Competitor {
	out := make([]boxstate.Competitor, 0, len(inputs))
	for _, in := range inputs {
		name := sanitize.CompetitorName(in.Nume)
		if name == "" {
			continue
		}
		comp := boxstate.Competitor{Name: name, Marked: in.Marked}
		if in.HasClub {
			club := sanitize.String(in.Club, 255)
			if club != "" {
				comp.Club = club
				comp.HasClub = true
			}
		}
		out = append(out, comp)
	}
	return out
}

func computePreparingClimber(competitors []boxstate.Competitor, currentClimber string) string {
	if len(competitors) == 0 || currentClimber == "" {
		return ""
	}
	idx := -1
	for i, c := range competitors {
		if c.Name == currentClimber {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ""
	}
	for _, c := range competitors[idx+1:] {
		if c.Name == "" || c.Marked {
			continue
		}
		return c.Name
	}
	return ""
}

func applyInitRoute(state boxstate.State, c command.InitRoute) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.BoxVersion++
	ns.Initiated = true
	ns.HoldsCount = c.HoldsCount
	ns.RouteIndex = c.RouteIndex
	if c.RoutesCount != nil {
		ns.RoutesCount = *c.RoutesCount
	}
	if c.HoldsCounts != nil {
		ns.HoldsCounts = append([]int(nil), c.HoldsCounts...)
	}

	competitors := normalizeCompetitors(c.Competitors)
	ns.Competitors = competitors
	if len(competitors) > 0 {
		ns.CurrentClimber = competitors[0].Name
	} else {
		ns.CurrentClimber = ""
	}
	if len(competitors) > 1 {
		ns.PreparingClimber = competitors[1].Name
	} else {
		ns.PreparingClimber = ""
	}

	ns.Started = false
	ns.TimerState = boxstate.TimerIdle
	ns.HoldCount = 0.0
	ns.LastRegisteredTime = nil
	ns.Remaining = nil

	if c.RouteIndex == 1 {
		ns.Scores = map[string][]*float64{}
		ns.Times = map[string][]*float64{}
		ns.TimeTiebreakDecisions = map[string]string{}
		ns.TimeTiebreakResolvedFingerprint = nil
		ns.TimeTiebreakResolvedDecision = nil
		ns.TimeTiebreakPreference = nil
		ns.PrevRoundsTiebreakDecisions = map[string]string{}
		ns.PrevRoundsTiebreakResolvedFingerprint = nil
		ns.PrevRoundsTiebreakResolvedDecision = nil
		ns.PrevRoundsTiebreakPreference = nil
		ns.PrevRoundsTiebreakOrders = map[string][]string{}
		ns.PrevRoundsTiebreakRanks = map[string]map[string]int{}
	} else {
		if ns.Scores == nil {
			ns.Scores = map[string][]*float64{}
		}
		if ns.Times == nil {
			ns.Times = map[string][]*float64{}
		}
	}

	if c.Categorie != nil {
		ns.Categorie = sanitize.Category(*c.Categorie)
	}
	if c.TimerPreset != nil {
		ns.TimerPreset = *c.TimerPreset
		ns.HasTimerPreset = true
		ns.TimerPresetSec = c.TimerPresetSec
		ns.HasTimerPresetSec = true
	}

	payload := envelopeBase(command.TypeInitRoute, ns.SessionID)
	payload["routeIndex"] = ns.RouteIndex
	payload["holdsCount"] = ns.HoldsCount
	payload["routesCount"] = ns.RoutesCount
	return ns, payload, true, nil
}

func applyStartTimer(state boxstate.State, c command.StartTimer) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.Started = true
	ns.TimerState = boxstate.TimerRunning
	ns.LastRegisteredTime = nil
	ns.Remaining = nil
	payload := envelopeBase(command.TypeStartTimer, ns.SessionID)
	return ns, payload, true, nil
}

func applyResumeTimer(state boxstate.State, c command.ResumeTimer) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.Started = true
	ns.TimerState = boxstate.TimerRunning
	ns.LastRegisteredTime = nil
	payload := envelopeBase(command.TypeResumeTimer, ns.SessionID)
	return ns, payload, true, nil
}

func applyStopTimer(state boxstate.State, c command.StopTimer) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.Started = false
	ns.TimerState = boxstate.TimerPaused
	payload := envelopeBase(command.TypeStopTimer, ns.SessionID)
	return ns, payload, true, nil
}

func applyProgressUpdate(state boxstate.State, c command.ProgressUpdate) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	var newCount float64
	if c.Delta == 1 {
		newCount = math.Floor(ns.HoldCount) + 1
	} else {
		newCount = math.Round((ns.HoldCount+c.Delta)*10) / 10
	}
	if newCount < 0 {
		newCount = 0
	}
	if ns.HoldsCount > 0 && newCount > float64(ns.HoldsCount) {
		newCount = float64(ns.HoldsCount)
	}
	ns.HoldCount = newCount
	payload := envelopeBase(command.TypeProgressUpdate, ns.SessionID)
	payload["delta"] = c.Delta
	payload["holdCount"] = ns.HoldCount
	return ns, payload, true, nil
}

func applyRegisterTime(state boxstate.State, c command.RegisterTime) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	if c.RegisteredTime != nil {
		v := *c.RegisteredTime
		ns.LastRegisteredTime = &v
	}
	payload := envelopeBase(command.TypeRegisterTime, ns.SessionID)
	payload["registeredTime"] = ns.LastRegisteredTime
	return ns, payload, true, nil
}

func applyTimerSync(state boxstate.State, c command.TimerSync) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	v := c.Remaining
	ns.Remaining = &v
	payload := envelopeBase(command.TypeTimerSync, ns.SessionID)
	payload["remaining"] = v
	return ns, payload, false, nil
}

func applySetTimerPreset(state boxstate.State, c command.SetTimerPreset) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.TimerPreset = c.TimerPreset
	ns.HasTimerPreset = true
	ns.TimerPresetSec = c.TimerPresetSec
	ns.HasTimerPresetSec = true
	if ns.TimerState != boxstate.TimerRunning && ns.TimerState != boxstate.TimerPaused {
		v := float64(c.TimerPresetSec)
		ns.Remaining = &v
	}
	payload := envelopeBase(command.TypeSetTimerPreset, ns.SessionID)
	payload["timerPreset"] = ns.TimerPreset
	return ns, payload, true, nil
}

func applySubmitScore(state boxstate.State, c command.SubmitScore) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()

	var idx *int
	if c.Idx != nil {
		idx = c.Idx
	} else if c.CompetitorIdx != nil {
		idx = c.CompetitorIdx
	}

	competitorName := ""
	if c.Competitor != nil {
		competitorName = *c.Competitor
	}
	if idx != nil {
		if *idx < 0 || *idx >= len(ns.Competitors) {
			return state, nil, false, errf("invalid_submit_score_index", "idx %d out of range", *idx)
		}
		competitorName = ns.Competitors[*idx].Name
		if competitorName == "" {
			return state, nil, false, errf("invalid_submit_score_index", "idx %d refers to invalid competitor", *idx)
		}
	}

	var effectiveTime *float64
	if c.RegisteredTime != nil {
		v := *c.RegisteredTime
		effectiveTime = &v
	} else if ns.LastRegisteredTime != nil {
		v := *ns.LastRegisteredTime
		effectiveTime = &v
	}

	routeIdx0 := ns.RouteIndex - 1
	if routeIdx0 < 0 {
		routeIdx0 = 0
	}

	if competitorName != "" {
		if c.Score != nil {
			arr := ns.Scores[competitorName]
			for len(arr) <= routeIdx0 {
				arr = append(arr, nil)
			}
			v := *c.Score
			arr[routeIdx0] = &v
			ns.Scores[competitorName] = arr
		}
		if effectiveTime != nil {
			arr := ns.Times[competitorName]
			for len(arr) <= routeIdx0 {
				arr = append(arr, nil)
			}
			v := *effectiveTime
			arr[routeIdx0] = &v
			ns.Times[competitorName] = arr
		}
	}

	ns.Started = false
	ns.TimerState = boxstate.TimerIdle
	ns.HoldCount = 0.0
	ns.LastRegisteredTime = effectiveTime
	ns.Remaining = nil

	activeName := state.CurrentClimber
	if competitorName != "" {
		if idx := ns.CompetitorIndex(competitorName); idx >= 0 {
			ns.Competitors[idx].Marked = true
		}
		if competitorName == activeName {
			ns.CurrentClimber = computePreparingClimber(ns.Competitors, activeName)
		}
		ns.PreparingClimber = computePreparingClimber(ns.Competitors, ns.CurrentClimber)
	}

	payload := envelopeBase(command.TypeSubmitScore, ns.SessionID)
	payload["competitor"] = competitorName
	payload["registeredTime"] = effectiveTime
	if c.Score != nil {
		payload["score"] = *c.Score
	}
	return ns, payload, true, nil
}

func applySetTimeCriterion(state boxstate.State, c command.SetTimeCriterion) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.TimeCriterionEnabled = c.TimeCriterionEnabled
	payload := envelopeBase(command.TypeSetTimeCriterion, ns.SessionID)
	payload["timeCriterionEnabled"] = ns.TimeCriterionEnabled
	return ns, payload, true, nil
}

func applySetTimeTiebreakDecision(state boxstate.State, c command.SetTimeTiebreakDecision) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.TimeTiebreakDecisions[c.Fingerprint] = c.Decision
	decision := c.Decision
	fp := c.Fingerprint
	ns.TimeTiebreakPreference = &decision
	ns.TimeTiebreakResolvedFingerprint = &fp
	ns.TimeTiebreakResolvedDecision = &decision
	payload := envelopeBase(command.TypeSetTimeTiebreakDecision, ns.SessionID)
	payload["decision"] = c.Decision
	payload["fingerprint"] = c.Fingerprint
	return ns, payload, true, nil
}

func applySetPrevRoundsTiebreakDecision(state boxstate.State, c command.SetPrevRoundsTiebreakDecision) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()
	ns.PrevRoundsTiebreakDecisions[c.Fingerprint] = c.Decision
	decision := c.Decision
	fp := c.Fingerprint
	ns.PrevRoundsTiebreakPreference = &decision
	ns.PrevRoundsTiebreakResolvedFingerprint = &fp
	ns.PrevRoundsTiebreakResolvedDecision = &decision

	if c.Decision == "yes" {
		if c.Order != nil {
			ns.PrevRoundsTiebreakOrders[c.Fingerprint] = append([]string(nil), c.Order...)
		}
		if c.RanksByName != nil {
			ranks := make(map[string]int, len(c.RanksByName))
			for k, v := range c.RanksByName {
				ranks[k] = v
			}
			ns.PrevRoundsTiebreakRanks[c.Fingerprint] = ranks
		}
	} else {
		delete(ns.PrevRoundsTiebreakOrders, c.Fingerprint)
		delete(ns.PrevRoundsTiebreakRanks, c.Fingerprint)
	}

	payload := envelopeBase(command.TypeSetPrevRoundsTiebreakDecision, ns.SessionID)
	payload["decision"] = c.Decision
	payload["fingerprint"] = c.Fingerprint
	return ns, payload, true, nil
}

func applyResetPartial(state boxstate.State, c command.ResetPartial) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()

	if c.UnmarkAll {
		ns.Initiated = false
		ns.SessionID = boxstate.NewSessionID()
		ns.RouteIndex = 1
		if len(ns.HoldsCounts) > 0 {
			ns.HoldsCount = ns.HoldsCounts[0]
		}
		ns.Scores = map[string][]*float64{}
		ns.Times = map[string][]*float64{}
		ns.LastRegisteredTime = nil
		ns.TimeTiebreakDecisions = map[string]string{}
		ns.TimeTiebreakResolvedFingerprint = nil
		ns.TimeTiebreakResolvedDecision = nil
		ns.TimeTiebreakPreference = nil
		ns.PrevRoundsTiebreakDecisions = map[string]string{}
		ns.PrevRoundsTiebreakResolvedFingerprint = nil
		ns.PrevRoundsTiebreakResolvedDecision = nil
		ns.PrevRoundsTiebreakPreference = nil
		ns.PrevRoundsTiebreakOrders = map[string][]string{}
		ns.PrevRoundsTiebreakRanks = map[string]map[string]int{}
		for i := range ns.Competitors {
			ns.Competitors[i].Marked = false
		}
		ns.CurrentClimber = ""
		ns.PreparingClimber = ""
	}

	if c.ResetTimer {
		ns.Started = false
		ns.TimerState = boxstate.TimerIdle
		if ns.HasTimerPresetSec {
			v := float64(ns.TimerPresetSec)
			ns.Remaining = &v
		} else {
			ns.Remaining = nil
		}
		ns.LastRegisteredTime = nil
	}

	if c.ClearProgress {
		ns.HoldCount = 0.0
	}

	payload := envelopeBase(command.TypeResetPartial, ns.SessionID)
	payload["resetTimer"] = c.ResetTimer
	payload["clearProgress"] = c.ClearProgress
	payload["unmarkAll"] = c.UnmarkAll
	return ns, payload, true, nil
}

func applyResetBox(state boxstate.State, c command.ResetBox) (boxstate.State, map[string]any, bool, error) {
	ns := state.Clone()

	ns.Initiated = false
	ns.CurrentClimber = ""
	ns.PreparingClimber = ""
	ns.Started = false
	ns.TimerState = boxstate.TimerIdle
	ns.HoldCount = 0.0
	ns.LastRegisteredTime = nil
	ns.Remaining = nil
	ns.Scores = map[string][]*float64{}
	ns.Times = map[string][]*float64{}
	ns.RouteIndex = 1
	ns.HoldsCount = 0
	ns.RoutesCount = 1
	ns.HoldsCounts = []int{}
	ns.Competitors = []boxstate.Competitor{}
	ns.Categorie = ""
	ns.TimerPreset = ""
	ns.HasTimerPreset = false
	ns.TimerPresetSec = 0
	ns.HasTimerPresetSec = false
	ns.TimeCriterionEnabled = false

	ns.TimeTiebreakDecisions = map[string]string{}
	ns.TimeTiebreakResolvedFingerprint = nil
	ns.TimeTiebreakResolvedDecision = nil
	ns.TimeTiebreakPreference = nil
	ns.PrevRoundsTiebreakDecisions = map[string]string{}
	ns.PrevRoundsTiebreakResolvedFingerprint = nil
	ns.PrevRoundsTiebreakResolvedDecision = nil
	ns.PrevRoundsTiebreakPreference = nil
	ns.PrevRoundsTiebreakOrders = map[string][]string{}
	ns.PrevRoundsTiebreakRanks = map[string]map[string]int{}

	// boxVersion is deliberately left unchanged: RESET_BOX rotates the
	// session epoch, it does not reset the version counter.
	ns.SessionID = boxstate.NewSessionID()

	payload := envelopeBase(command.TypeResetBox, ns.SessionID)
	return ns, payload, true, nil
}
