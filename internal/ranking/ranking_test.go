package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

type fakeResolver struct {
	byFingerprint map[string]TieBreakDecision
	calls         []TieContext
}

func (r *fakeResolver) Resolve(group []Athlete, ctx TieContext) (*TieBreakDecision, error) {
	r.calls = append(r.calls, ctx)
	if d, ok := r.byFingerprint[ctx.Fingerprint]; ok {
		return &d, nil
	}
	return &TieBreakDecision{Choice: ChoicePending}, nil
}

func TestComputeNoTiesOrdersByPerformance(t *testing.T) {
	athletes := []Athlete{{ID: "1", Name: "Ada"}, {ID: "2", Name: "Beth"}, {ID: "3", Name: "Cleo"}}
	results := map[string]LeadResult{
		"1": {Topped: true},
		"2": {Hold: 30, Plus: true},
		"3": {Hold: 20},
	}
	res := Compute(athletes, results, nil, 3, "Final")
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "1", res.Rows[0].AthleteID)
	assert.Equal(t, 1, res.Rows[0].Rank)
	assert.Equal(t, "2", res.Rows[1].AthleteID)
	assert.Equal(t, 2, res.Rows[1].Rank)
	assert.Equal(t, "3", res.Rows[2].AthleteID)
	assert.Equal(t, 3, res.Rows[2].Rank)
	assert.True(t, res.IsResolved)
	assert.False(t, res.HasPendingPodiumTies)
	assert.Empty(t, res.TieEvents)
}

func TestComputePodiumTieResolvedByPreviousRounds(t *testing.T) {
	athletes := []Athlete{{ID: "a", Name: "Ada"}, {ID: "b", Name: "Beth"}}
	results := map[string]LeadResult{
		"a": {Hold: 25},
		"b": {Hold: 25},
	}

	probe := Compute(athletes, results, nil, 3, "Final")
	require.Len(t, probe.TieEvents, 1)
	fp := probe.TieEvents[0].Fingerprint
	require.Equal(t, StagePreviousRounds, probe.TieEvents[0].Stage)

	resolver := &fakeResolver{byFingerprint: map[string]TieBreakDecision{
		fp: {Choice: ChoiceYes, PreviousRanksByAthlete: map[string]int{"a": 1, "b": 2}},
	}}
	res := Compute(athletes, results, resolver, 3, "Final")
	require.Len(t, res.Rows, 2)
	require.True(t, res.IsResolved)
	require.False(t, res.HasPendingPodiumTies)

	byID := map[string]RankingRow{}
	for _, row := range res.Rows {
		byID[row.AthleteID] = row
	}
	assert.Equal(t, 1, byID["a"].Rank)
	assert.Equal(t, 2, byID["b"].Rank)
	assert.True(t, byID["a"].TBPrev)
	assert.False(t, byID["b"].TBPrev)
}

func TestComputePartialPreviousRoundsInputStaysPending(t *testing.T) {
	athletes := []Athlete{{ID: "a", Name: "Ada"}, {ID: "b", Name: "Beth"}, {ID: "c", Name: "Cleo"}}
	results := map[string]LeadResult{
		"a": {Hold: 25},
		"b": {Hold: 25},
		"c": {Hold: 25},
	}
	probe := Compute(athletes, results, nil, 3, "Final")
	require.Len(t, probe.TieEvents, 1)
	fp := probe.TieEvents[0].Fingerprint

	resolver := &fakeResolver{byFingerprint: map[string]TieBreakDecision{
		fp: {Choice: ChoiceYes, PreviousRanksByAthlete: map[string]int{"a": 1, "b": 2}},
	}}
	res := Compute(athletes, results, resolver, 3, "Final")
	require.False(t, res.IsResolved)
	require.True(t, res.HasPendingPodiumTies)

	var pendingMissing *TieEvent
	for i := range res.TieEvents {
		if res.TieEvents[i].Detail == "previous_rounds_missing_members" {
			pendingMissing = &res.TieEvents[i]
		}
	}
	require.NotNil(t, pendingMissing)
	assert.Equal(t, []string{"c"}, pendingMissing.MissingPrevRoundsAthleteIDs)
	assert.True(t, pendingMissing.RequiresPrevRoundsInput)
}

func TestComputeBelowPodiumTieCollapsesWithoutResolver(t *testing.T) {
	athletes := []Athlete{
		{ID: "1", Name: "Ada"}, {ID: "2", Name: "Beth"}, {ID: "3", Name: "Cleo"},
		{ID: "4", Name: "Dee"}, {ID: "5", Name: "Elle"},
	}
	results := map[string]LeadResult{
		"1": {Topped: true},
		"2": {Hold: 40},
		"3": {Hold: 30},
		"4": {Hold: 20},
		"5": {Hold: 20},
	}
	res := Compute(athletes, results, nil, 3, "Final")
	require.True(t, res.IsResolved)
	require.False(t, res.HasPendingPodiumTies)
	assert.Empty(t, res.TieEvents)

	byID := map[string]RankingRow{}
	for _, row := range res.Rows {
		byID[row.AthleteID] = row
	}
	assert.Equal(t, 4, byID["4"].Rank)
	assert.Equal(t, 4, byID["5"].Rank)
}

func TestComputeStraddlingPodiumBoundaryCollapsesOnlyTail(t *testing.T) {
	athletes := []Athlete{
		{ID: "1", Name: "Ada"}, {ID: "2", Name: "Beth"}, {ID: "3", Name: "Cleo"}, {ID: "4", Name: "Dee"},
	}
	results := map[string]LeadResult{
		"1": {Topped: true},
		"2": {Hold: 30},
		"3": {Hold: 30},
		"4": {Hold: 30},
	}
	fp := buildTieFingerprint("Final", StagePreviousRounds, 2, 4, true, []resolvedItem{
		{athlete: athletes[1], result: results["2"]},
		{athlete: athletes[2], result: results["3"]},
		{athlete: athletes[3], result: results["4"]},
	})
	resolver := &fakeResolver{byFingerprint: map[string]TieBreakDecision{
		fp: {Choice: ChoiceYes, PreviousRanksByAthlete: map[string]int{"2": 1, "3": 2, "4": 2}},
	}}
	res := Compute(athletes, results, resolver, 3, "Final")

	byID := map[string]RankingRow{}
	for _, row := range res.Rows {
		byID[row.AthleteID] = row
	}
	assert.Equal(t, 1, byID["1"].Rank)
	assert.Equal(t, 2, byID["2"].Rank)
	assert.Equal(t, 3, byID["3"].Rank)
	assert.Equal(t, 3, byID["4"].Rank)
}

func TestComputeTimeStagePodiumKeepTiedIsError(t *testing.T) {
	athletes := []Athlete{{ID: "a", Name: "Ada"}, {ID: "b", Name: "Beth"}}
	results := map[string]LeadResult{
		"a": {Hold: 25, TimeSeconds: f(30)},
		"b": {Hold: 25, TimeSeconds: f(40)},
	}
	probe := Compute(athletes, results, nil, 3, "Final")
	prevFP := probe.TieEvents[0].Fingerprint

	resolver := &fakeResolver{byFingerprint: map[string]TieBreakDecision{
		prevFP: {Choice: ChoiceNo},
	}}
	probe2 := Compute(athletes, results, resolver, 3, "Final")
	var timeFP string
	for _, ev := range probe2.TieEvents {
		if ev.Stage == StageTime {
			timeFP = ev.Fingerprint
		}
	}
	require.NotEmpty(t, timeFP)

	resolver2 := &fakeResolver{byFingerprint: map[string]TieBreakDecision{
		prevFP: {Choice: ChoiceNo},
		timeFP: {Choice: ChoiceNo},
	}}
	res := Compute(athletes, results, resolver2, 3, "Final")
	require.False(t, res.IsResolved)
	require.NotEmpty(t, res.Errors)
	found := false
	for _, ev := range res.TieEvents {
		if ev.Detail == "podium_keep_tied_not_allowed" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFingerprintStableUnderMemberPermutation(t *testing.T) {
	a := resolvedItem{athlete: Athlete{ID: "1", Name: "Ada"}, result: LeadResult{Hold: 10}}
	b := resolvedItem{athlete: Athlete{ID: "2", Name: "Beth"}, result: LeadResult{Hold: 10}}
	fp1 := buildTieFingerprint("Final", StageTime, 1, 2, true, []resolvedItem{a, b})
	fp2 := buildTieFingerprint("Final", StageTime, 1, 2, true, []resolvedItem{b, a})
	assert.Equal(t, fp1, fp2)
}

func TestResolverPanicTreatedAsPending(t *testing.T) {
	athletes := []Athlete{{ID: "a", Name: "Ada"}, {ID: "b", Name: "Beth"}}
	results := map[string]LeadResult{"a": {Hold: 25}, "b": {Hold: 25}}
	resolver := panickingResolver{}
	res := Compute(athletes, results, resolver, 3, "Final")
	assert.False(t, res.IsResolved)
	require.Len(t, res.TieEvents, 1)
	assert.Equal(t, TieStatusPending, res.TieEvents[0].Status)
}

type panickingResolver struct{}

func (panickingResolver) Resolve(group []Athlete, ctx TieContext) (*TieBreakDecision, error) {
	panic("boom")
}
