package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse validates a loosely-typed command record against the rules of §4.2
// and returns the corresponding tagged-union Command, or a ValidationError.
func Parse(raw map[string]any) (Command, *ValidationError) {
	rawType, _ := raw["type"].(string)
	t := Type(rawType)
	if !knownTypes[t] {
		return nil, invalid("unknown_command_type", "unrecognized command type %q", rawType)
	}

	env, verr := parseEnvelope(raw)
	if verr != nil {
		return nil, verr
	}

	switch t {
	case TypeInitRoute:
		return parseInitRoute(raw, env)
	case TypeStartTimer:
		return StartTimer{Envelope: env}, nil
	case TypeStopTimer:
		return StopTimer{Envelope: env}, nil
	case TypeResumeTimer:
		return ResumeTimer{Envelope: env}, nil
	case TypeProgressUpdate:
		return parseProgressUpdate(raw, env)
	case TypeRequestActiveCompetitor:
		return RequestActiveCompetitor{Envelope: env}, nil
	case TypeRequestState:
		return RequestState{Envelope: env}, nil
	case TypeActiveClimber:
		return ActiveClimber{Envelope: env}, nil
	case TypeSubmitScore:
		return parseSubmitScore(raw, env)
	case TypeRegisterTime:
		return parseRegisterTime(raw, env)
	case TypeTimerSync:
		return parseTimerSync(raw, env)
	case TypeSetTimerPreset:
		return parseSetTimerPreset(raw, env)
	case TypeSetTimeCriterion:
		return parseSetTimeCriterion(raw, env)
	case TypeSetTimeTiebreakDecision:
		return parseSetTimeTiebreakDecision(raw, env)
	case TypeSetPrevRoundsTiebreakDecision:
		return parseSetPrevRoundsTiebreakDecision(raw, env)
	case TypeResetPartial:
		return parseResetPartial(raw, env)
	case TypeResetBox:
		return ResetBox{Envelope: env}, nil
	}
	return nil, invalid("unknown_command_type", "unrecognized command type %q", rawType)
}

func parseEnvelope(raw map[string]any) (Envelope, *ValidationError) {
	var env Envelope
	if v, ok := raw["sessionId"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return env, invalid("invalid_session_id", "sessionId must be a string")
		}
		if len(s) < 1 || len(s) > 64 {
			return env, invalid("out_of_range", "sessionId length must be 1-64")
		}
		env.SessionID = &s
	}
	if v, ok := raw["boxVersion"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return env, invalid("invalid_box_version", "boxVersion must be an integer")
		}
		if n < 0 || n > 99999 {
			return env, invalid("out_of_range", "boxVersion must be 0-99999")
		}
		env.BoxVersion = &n
	}
	if v, ok := raw["boxId"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return env, invalid("invalid_box_id", "boxId must be an integer")
		}
		if n < -1 || n > 9999 {
			return env, invalid("out_of_range", "boxId must be -1-9999")
		}
		env.BoxID = &n
	}
	return env, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer")
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case int:
		return b != 0, true
	case float64:
		return b != 0, true
	case string:
		lowered := strings.ToLower(strings.TrimSpace(b))
		switch lowered {
		case "1", "true", "yes", "y", "on":
			return true, true
		case "0", "false", "no", "n", "off", "":
			return false, true
		}
	}
	return false, false
}

func parseInitRoute(raw map[string]any, env Envelope) (Command, *ValidationError) {
	c := InitRoute{Envelope: env, RouteIndex: 1, HoldsCount: 0}
	if v, ok := raw["routeIndex"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return nil, invalid("invalid_route_index", "routeIndex must be an integer")
		}
		if n < 1 || n > 999 {
			return nil, invalid("out_of_range", "routeIndex must be 1-999")
		}
		c.RouteIndex = n
	}
	if v, ok := raw["holdsCount"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return nil, invalid("invalid_holds_count", "holdsCount must be an integer")
		}
		if n < 0 || n > 100 {
			return nil, invalid("out_of_range", "holdsCount must be 0-100")
		}
		c.HoldsCount = n
	}
	if v, ok := raw["routesCount"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return nil, invalid("invalid_routes_count", "routesCount must be an integer")
		}
		c.RoutesCount = &n
	}
	if v, ok := raw["holdsCounts"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, invalid("invalid_holds_counts", "holdsCounts must be a list")
		}
		counts := make([]int, 0, len(list))
		for _, item := range list {
			n, err := asInt(item)
			if err != nil {
				return nil, invalid("invalid_holds_counts", "holdsCounts entries must be integers")
			}
			counts = append(counts, n)
		}
		c.HoldsCounts = counts
	}
	if v, ok := raw["categorie"]; ok && v != nil {
		s := fmt.Sprintf("%v", v)
		c.Categorie = &s
	}
	if v, ok := raw["timerPreset"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, invalid("invalid_timer_preset", "timerPreset must be a string")
		}
		normalized, sec, verr := NormalizeTimerPreset(s)
		if verr != nil {
			return nil, verr
		}
		c.TimerPreset = &normalized
		c.TimerPresetSec = sec
	}
	if v, ok := raw["competitors"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, invalid("invalid_competitors", "competitors must be a list")
		}
		if len(list) > 500 {
			return nil, invalid("out_of_range", "competitors list must have at most 500 entries")
		}
		inputs := make([]CompetitorInput, 0, len(list))
		for _, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			nameRaw, ok := entry["nume"]
			if !ok {
				continue
			}
			name, ok := nameRaw.(string)
			if !ok || strings.TrimSpace(name) == "" {
				continue
			}
			if containsDangerousSubstring(name) {
				return nil, invalid("dangerous_competitor_name", "competitor %q contains a forbidden substring", name)
			}
			ci := CompetitorInput{Nume: name}
			if clubRaw, ok := entry["club"]; ok && clubRaw != nil && clubRaw != "" {
				ci.Club = fmt.Sprintf("%v", clubRaw)
				ci.HasClub = true
			}
			if markedRaw, ok := entry["marked"]; ok {
				if b, ok := asBool(markedRaw); ok {
					ci.Marked = b
				}
			}
			inputs = append(inputs, ci)
		}
		c.Competitors = inputs
	}
	return c, nil
}

func parseProgressUpdate(raw map[string]any, env Envelope) (Command, *ValidationError) {
	c := ProgressUpdate{Envelope: env, Delta: 1}
	if v, ok := raw["delta"]; ok && v != nil {
		f, err := asFloat(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid("invalid_delta", "delta must be a number")
		}
		if f < -10 || f > 10 {
			return nil, invalid("out_of_range", "delta must be -10..10")
		}
		c.Delta = f
	}
	return c, nil
}

func parseRegisteredTimeField(raw map[string]any, key string) (*float64, bool, *ValidationError) {
	v, present := raw[key]
	if !present || v == nil {
		return nil, present, nil
	}
	if _, isBool := v.(bool); isBool {
		return nil, present, nil
	}
	f, err := asFloat(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, present, nil
	}
	return &f, present, nil
}

func parseSubmitScore(raw map[string]any, env Envelope) (Command, *ValidationError) {
	c := SubmitScore{Envelope: env}
	hasTarget := false
	if v, ok := raw["idx"]; ok && v != "" && v != nil {
		n, verr := coerceIdx(v)
		if verr != nil {
			return nil, verr
		}
		c.Idx = &n
		hasTarget = true
	}
	if v, ok := raw["competitorIdx"]; ok && v != "" && v != nil {
		n, verr := coerceIdx(v)
		if verr != nil {
			return nil, verr
		}
		c.CompetitorIdx = &n
		hasTarget = true
	}
	if v, ok := raw["competitor"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, invalid("invalid_competitor", "competitor must be a string")
		}
		if len(s) < 1 || len(s) > 255 {
			return nil, invalid("out_of_range", "competitor length must be 1-255")
		}
		if verr := ValidateCompetitorName(s); verr != nil {
			return nil, verr
		}
		c.Competitor = &s
		hasTarget = true
	}
	if !hasTarget {
		return nil, invalid("missing_required_field", "SUBMIT_SCORE requires competitor, competitorIdx, or idx")
	}
	if v, ok := raw["score"]; ok && v != nil {
		f, err := asFloat(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid("invalid_score", "score must be a number")
		}
		if f < 0 || f > 100 {
			return nil, invalid("out_of_range", "score must be 0-100")
		}
		c.Score = &f
	}
	f, _, _ := parseRegisteredTimeField(raw, "registeredTime")
	c.RegisteredTime = f
	return c, nil
}

func coerceIdx(v any) (int, *ValidationError) {
	if _, isBool := v.(bool); isBool {
		return 0, invalid("invalid_submit_score_index", "index must not be a boolean")
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid("invalid_submit_score_index", "index must be an integer")
		}
		return int(n), nil
	case string:
		stripped := strings.TrimSpace(n)
		parsed, err := strconv.Atoi(stripped)
		if err != nil {
			return 0, invalid("invalid_submit_score_index", "index must be an integer or numeric string")
		}
		return parsed, nil
	default:
		return 0, invalid("invalid_submit_score_index", "index must be an integer or numeric string")
	}
}

func parseRegisterTime(raw map[string]any, env Envelope) (Command, *ValidationError) {
	v, present := raw["registeredTime"]
	if !present || v == nil {
		return nil, invalid("missing_required_field", "REGISTER_TIME requires registeredTime")
	}
	f, err := asFloat(v)
	if _, isBool := v.(bool); isBool || err != nil {
		return nil, invalid("invalid_registered_time", "registeredTime must be numeric")
	}
	if f < 0 || f > 3600 {
		return nil, invalid("out_of_range", "registeredTime must be 0-3600")
	}
	return RegisterTime{Envelope: env, RegisteredTime: &f}, nil
}

func parseTimerSync(raw map[string]any, env Envelope) (Command, *ValidationError) {
	v, present := raw["remaining"]
	if !present || v == nil {
		return nil, invalid("missing_required_field", "TIMER_SYNC requires remaining")
	}
	f, err := asFloat(v)
	if err != nil {
		return nil, invalid("invalid_remaining", "remaining must be numeric")
	}
	if f < 0 || f > 9999 {
		return nil, invalid("out_of_range", "remaining must be 0-9999")
	}
	return TimerSync{Envelope: env, Remaining: f}, nil
}

func parseSetTimerPreset(raw map[string]any, env Envelope) (Command, *ValidationError) {
	v, present := raw["timerPreset"]
	if !present || v == nil {
		return nil, invalid("missing_required_field", "SET_TIMER_PRESET requires timerPreset")
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalid("invalid_timer_preset", "timerPreset must be a string")
	}
	normalized, sec, verr := NormalizeTimerPreset(s)
	if verr != nil {
		return nil, verr
	}
	return SetTimerPreset{Envelope: env, TimerPreset: normalized, TimerPresetSec: sec}, nil
}

func parseSetTimeCriterion(raw map[string]any, env Envelope) (Command, *ValidationError) {
	v, present := raw["timeCriterionEnabled"]
	if !present || v == nil {
		return nil, invalid("missing_required_field", "SET_TIME_CRITERION requires timeCriterionEnabled")
	}
	b, ok := asBool(v)
	if !ok {
		return nil, invalid("invalid_time_criterion", "timeCriterionEnabled must be a boolean")
	}
	return SetTimeCriterion{Envelope: env, TimeCriterionEnabled: b}, nil
}

func parseDecisionAndFingerprint(raw map[string]any) (string, string, *ValidationError) {
	decisionRaw, ok := raw["decision"].(string)
	if !ok || (decisionRaw != "yes" && decisionRaw != "no") {
		return "", "", invalid("invalid_tiebreak_decision", "decision must be \"yes\" or \"no\"")
	}
	fpRaw, ok := raw["fingerprint"].(string)
	if !ok || strings.TrimSpace(fpRaw) == "" {
		return "", "", invalid("invalid_tiebreak_decision", "fingerprint must be a non-empty string")
	}
	return decisionRaw, fpRaw, nil
}

func parseSetTimeTiebreakDecision(raw map[string]any, env Envelope) (Command, *ValidationError) {
	decision, fp, verr := parseDecisionAndFingerprint(raw)
	if verr != nil {
		return nil, verr
	}
	return SetTimeTiebreakDecision{Envelope: env, Decision: decision, Fingerprint: fp}, nil
}

func parseSetPrevRoundsTiebreakDecision(raw map[string]any, env Envelope) (Command, *ValidationError) {
	decision, fp, verr := parseDecisionAndFingerprint(raw)
	if verr != nil {
		return nil, verr
	}
	c := SetPrevRoundsTiebreakDecision{Envelope: env, Decision: decision, Fingerprint: fp}
	if v, ok := raw["order"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, invalid("invalid_tiebreak_decision", "order must be a list of names")
		}
		seen := map[string]bool{}
		order := make([]string, 0, len(list))
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			order = append(order, name)
		}
		c.Order = order
	}
	if v, ok := raw["ranksByName"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, invalid("invalid_tiebreak_decision", "ranksByName must be a mapping")
		}
		ranks := make(map[string]int, len(m))
		for name, rankRaw := range m {
			n, err := asInt(rankRaw)
			if err != nil || n <= 0 {
				return nil, invalid("invalid_tiebreak_decision", "ranksByName values must be positive integers")
			}
			ranks[name] = n
		}
		c.RanksByName = ranks
	}
	return c, nil
}

func parseResetPartial(raw map[string]any, env Envelope) (Command, *ValidationError) {
	c := ResetPartial{Envelope: env}
	if v, ok := raw["resetTimer"]; ok {
		if b, ok := asBool(v); ok {
			c.ResetTimer = b
		}
	}
	if v, ok := raw["clearProgress"]; ok {
		if b, ok := asBool(v); ok {
			c.ClearProgress = b
		}
	}
	if v, ok := raw["unmarkAll"]; ok {
		if b, ok := asBool(v); ok {
			c.UnmarkAll = b
		}
	}
	if c.UnmarkAll {
		c.ResetTimer = true
		c.ClearProgress = true
	}
	return c, nil
}
