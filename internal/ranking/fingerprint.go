package ranking

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// canonicalJSON renders v (built only from maps/slices/primitives) as
// compact UTF-8 JSON with object keys sorted and no extraneous whitespace,
// so fingerprints stay stable across re-computation. Primitives use
// encoding/json's formatting: a whole-number float such as 12.0 is written
// as 12, and <, > and & inside strings are written as \u escapes.
func canonicalJSON(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, k)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	default:
		// Primitives (string, bool, int, float64, nil, *float64) fall back
		// to encoding/json, which already renders them compactly and
		// deterministically on their own.
		enc, _ := json.Marshal(normalizePrimitive(val))
		b.Write(enc)
	}
}

func normalizePrimitive(v any) any {
	if p, ok := v.(*float64); ok {
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

func writeJSONString(b *strings.Builder, s string) {
	enc, _ := json.Marshal(s)
	b.Write(enc)
}

func fingerprint(payload map[string]any) string {
	sum := sha1.Sum([]byte(canonicalJSON(payload)))
	return "tb3:" + hex.EncodeToString(sum[:])
}

func buildTieFingerprint(roundName string, stage Stage, rankStart, rankEnd int, affectsPodium bool, members []resolvedItem) string {
	sortedMembers := make([]resolvedItem, len(members))
	copy(sortedMembers, members)
	sort.Slice(sortedMembers, func(i, j int) bool {
		return stableAthleteLess(sortedMembers[i], sortedMembers[j])
	})

	memberMaps := make([]any, 0, len(sortedMembers))
	for _, item := range sortedMembers {
		memberMaps = append(memberMaps, map[string]any{
			"id":     item.athlete.ID,
			"name":   item.athlete.Name,
			"topped": item.result.Topped,
			"hold":   item.result.Hold,
			"plus":   item.result.Plus,
			"time":   item.result.TimeSeconds,
		})
	}

	payload := map[string]any{
		"round":          roundName,
		"stage":          string(stage),
		"rank_start":     rankStart,
		"rank_end":       rankEnd,
		"affects_podium": affectsPodium,
		"members":        memberMaps,
	}
	return fingerprint(payload)
}

func buildLineageKey(roundName string, result LeadResult) string {
	payload := map[string]any{
		"round":   roundName,
		"context": "overall",
		"performance": map[string]any{
			"topped": result.Topped,
			"hold":   result.Hold,
			"plus":   result.Plus && !result.Topped,
		},
	}
	sum := sha1.Sum([]byte(canonicalJSON(payload)))
	return "tb-lineage:" + hex.EncodeToString(sum[:])
}
