package ranking

import "sort"

func resolveWithFallback(resolver Resolver, group []resolvedItem, ctx TieContext) TieBreakDecision {
	pending := TieBreakDecision{Choice: ChoicePending}
	if resolver == nil {
		return pending
	}
	athletes := make([]Athlete, 0, len(group))
	for _, item := range group {
		athletes = append(athletes, item.athlete)
	}
	decision, err := safeResolve(resolver, athletes, ctx)
	if err != nil || decision == nil {
		return pending
	}
	switch decision.Choice {
	case ChoiceYes, ChoiceNo, ChoicePending:
		return *decision
	default:
		return pending
	}
}

// safeResolve isolates a panicking resolver implementation, matching the
// engine's "any exception is treated as pending" contract.
func safeResolve(resolver Resolver, athletes []Athlete, ctx TieContext) (decision *TieBreakDecision, err error) {
	defer func() {
		if r := recover(); r != nil {
			decision, err = nil, errPanic
		}
	}()
	return resolver.Resolve(athletes, ctx)
}

var errPanic = panicError{}

type panicError struct{}

func (panicError) Error() string { return "tiebreak resolver panicked" }

func validatePreviousRanks(members []resolvedItem, ranksByAthlete map[string]int) (bool, string) {
	if len(ranksByAthlete) == 0 {
		return false, "missing_previous_rounds_ranks"
	}
	expected := make(map[string]bool, len(members))
	for _, item := range members {
		expected[item.athlete.ID] = true
	}
	for athleteID, rank := range ranksByAthlete {
		if !expected[athleteID] {
			return false, "invalid_previous_rounds_rank_member:" + athleteID
		}
		if rank <= 0 {
			return false, "invalid_previous_rounds_rank:" + athleteID
		}
	}
	return true, ""
}

func partitionByPrevRanks(members []resolvedItem, ranksByAthlete map[string]int) [][]resolvedItem {
	grouped := map[int][]resolvedItem{}
	for _, item := range members {
		r := ranksByAthlete[item.athlete.ID]
		grouped[r] = append(grouped[r], item)
	}
	ranks := make([]int, 0, len(grouped))
	for r := range grouped {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	partitions := make([][]resolvedItem, 0, len(ranks))
	for _, r := range ranks {
		part := grouped[r]
		sort.Slice(part, func(i, j int) bool { return stableAthleteLess(part[i], part[j]) })
		partitions = append(partitions, part)
	}
	return partitions
}

func partitionByTime(members []resolvedItem) [][]resolvedItem {
	ordered := make([]resolvedItem, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		ti, tj := timeOrInf(ordered[i].result), timeOrInf(ordered[j].result)
		if ti != tj {
			return ti < tj
		}
		return stableAthleteLess(ordered[i], ordered[j])
	})
	var partitions [][]resolvedItem
	i := 0
	for i < len(ordered) {
		j := i + 1
		for j < len(ordered) && itemsEqualTime(ordered[j], ordered[i]) {
			j++
		}
		partitions = append(partitions, ordered[i:j])
		i = j
	}
	return partitions
}

func sortedAthleteIDs(items []resolvedItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.athlete.ID)
	}
	sort.Strings(ids)
	return ids
}
