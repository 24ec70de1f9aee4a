package ranking

import (
	"math"
	"strings"
)

// resultSortKey orders descending by (topped, hold, plus-when-not-topped).
func resultSortKey(r LeadResult) (int, int, int) {
	topped := 0
	if r.Topped {
		topped = 1
	}
	plus := 0
	if r.Plus && !r.Topped {
		plus = 1
	}
	return topped, r.Hold, plus
}

func sameResultKey(a, b LeadResult) bool {
	ta, ha, pa := resultSortKey(a)
	tb, hb, pb := resultSortKey(b)
	return ta == tb && ha == hb && pa == pb
}

// scoreHint is a UI display helper matching hold/plus display conventions.
func scoreHint(r LeadResult) float64 {
	if r.Topped {
		return float64(r.Hold)
	}
	if r.Plus {
		return float64(r.Hold) + 0.1
	}
	return float64(r.Hold)
}

func stableAthleteLess(a, b resolvedItem) bool {
	na, nb := strings.ToLower(a.athlete.Name), strings.ToLower(b.athlete.Name)
	if na != nb {
		return na < nb
	}
	return a.athlete.ID < b.athlete.ID
}

func itemsEqualTime(a, b resolvedItem) bool {
	if a.result.TimeSeconds == nil || b.result.TimeSeconds == nil {
		return a.result.TimeSeconds == b.result.TimeSeconds
	}
	return *a.result.TimeSeconds == *b.result.TimeSeconds
}

func timeOrInf(r LeadResult) float64 {
	if r.TimeSeconds == nil {
		return math.Inf(1)
	}
	return *r.TimeSeconds
}

func toRankingRow(item resolvedItem, rank int) RankingRow {
	return RankingRow{
		AthleteID:   item.athlete.ID,
		AthleteName: item.athlete.Name,
		Rank:        rank,
		Topped:      item.result.Topped,
		Hold:        item.result.Hold,
		Plus:        item.result.Plus,
		TimeSeconds: item.result.TimeSeconds,
		TBPrev:      item.tbPrev,
		TBTime:      item.tbTime,
		ScoreHint:   scoreHint(item.result),
	}
}

func toRankingRows(items []resolvedItem, rank int) []RankingRow {
	out := make([]RankingRow, 0, len(items))
	for _, item := range items {
		out = append(out, toRankingRow(item, rank))
	}
	return out
}
