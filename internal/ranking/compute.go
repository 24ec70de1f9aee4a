package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

func athletesOf(items []resolvedItem) []Athlete {
	out := make([]Athlete, 0, len(items))
	for _, item := range items {
		out = append(out, item.athlete)
	}
	return out
}

func resolveTimeStage(
	members []resolvedItem,
	rankStart, podiumPlaces int,
	roundName string,
	resolver Resolver,
	tieEvents *[]TieEvent,
	errs *[]string,
) ([]tieChunk, bool) {
	affectsPodium := rankStart <= podiumPlaces
	rankEnd := rankStart + len(members) - 1
	fp := buildTieFingerprint(roundName, StageTime, rankStart, rankEnd, affectsPodium, members)
	ctx := TieContext{
		RoundName: roundName, Stage: StageTime, RankStart: rankStart, RankEnd: rankEnd,
		AffectsPodium: affectsPodium, Fingerprint: fp, Athletes: athletesOf(members),
		Performance: members[0].result,
	}
	decision := resolveWithFallback(resolver, members, ctx)

	switch decision.Choice {
	case ChoicePending:
		*tieEvents = append(*tieEvents, TieEvent{
			Fingerprint: fp, Stage: StageTime, RankStart: rankStart, RankEnd: rankEnd,
			AffectsPodium: affectsPodium, Members: toRankingRows(members, rankStart),
			Status: TieStatusPending, Detail: "time_tiebreak_pending",
		})
		return []tieChunk{{items: members}}, !affectsPodium

	case ChoiceNo:
		if affectsPodium {
			*errs = append(*errs, fmt.Sprintf("podium_time_tiebreak_keep_tied_not_allowed:%s", fp))
			*tieEvents = append(*tieEvents, TieEvent{
				Fingerprint: fp, Stage: StageTime, RankStart: rankStart, RankEnd: rankEnd,
				AffectsPodium: true, Members: toRankingRows(members, rankStart),
				Status: TieStatusError, Detail: "podium_keep_tied_not_allowed",
			})
			return []tieChunk{{items: members}}, false
		}
		return []tieChunk{{items: members}}, true

	default: // ChoiceYes
		var missing []string
		for _, item := range members {
			if item.result.TimeSeconds == nil || !isFinite(*item.result.TimeSeconds) {
				missing = append(missing, item.athlete.ID)
			}
		}
		if len(missing) > 0 {
			*errs = append(*errs, fmt.Sprintf("time_tiebreak_missing_times:%s", fp))
			*tieEvents = append(*tieEvents, TieEvent{
				Fingerprint: fp, Stage: StageTime, RankStart: rankStart, RankEnd: rankEnd,
				AffectsPodium: affectsPodium, Members: toRankingRows(members, rankStart),
				Status: TieStatusError, Detail: "missing_time_seconds",
			})
			return []tieChunk{{items: members}}, !affectsPodium
		}

		partitions := partitionByTime(members)
		hasUnresolved := false
		for pi := range partitions {
			for mi := range partitions[pi] {
				partitions[pi][mi].tbTime = true
			}
			if len(partitions[pi]) > 1 {
				hasUnresolved = true
			}
		}
		if hasUnresolved && affectsPodium {
			*tieEvents = append(*tieEvents, TieEvent{
				Fingerprint: fp, Stage: StageTime, RankStart: rankStart, RankEnd: rankEnd,
				AffectsPodium: true, Members: toRankingRows(members, rankStart),
				Status: TieStatusError, Detail: "identical_time_keeps_podium_tie",
			})
		}
		chunks := make([]tieChunk, 0, len(partitions))
		for _, part := range partitions {
			chunks = append(chunks, tieChunk{items: part})
		}
		return chunks, !(hasUnresolved && affectsPodium)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func resolveGroup(
	members []resolvedItem,
	rankStart, podiumPlaces int,
	roundName string,
	resolver Resolver,
	tieEvents *[]TieEvent,
	errs *[]string,
) ([]tieChunk, bool) {
	affectsPodium := rankStart <= podiumPlaces
	if !affectsPodium {
		return []tieChunk{{items: members}}, true
	}

	rankEnd := rankStart + len(members) - 1
	fp := buildTieFingerprint(roundName, StagePreviousRounds, rankStart, rankEnd, affectsPodium, members)
	lineageKey := buildLineageKey(roundName, members[0].result)
	ctx := TieContext{
		RoundName: roundName, Stage: StagePreviousRounds, RankStart: rankStart, RankEnd: rankEnd,
		AffectsPodium: affectsPodium, Fingerprint: fp, LineageKey: lineageKey,
		Athletes: athletesOf(members), Performance: members[0].result,
	}
	decision := resolveWithFallback(resolver, members, ctx)

	switch decision.Choice {
	case ChoicePending:
		allIDs := sortedAthleteIDs(members)
		*tieEvents = append(*tieEvents, TieEvent{
			Fingerprint: fp, Stage: StagePreviousRounds, RankStart: rankStart, RankEnd: rankEnd,
			AffectsPodium: affectsPodium, Members: toRankingRows(members, rankStart),
			Status: TieStatusPending, Detail: "previous_rounds_pending", LineageKey: lineageKey,
			KnownPrevRanksByAthlete: map[string]int{}, MissingPrevRoundsAthleteIDs: allIDs,
			RequiresPrevRoundsInput: true,
		})
		return []tieChunk{{items: members}}, false

	case ChoiceNo:
		return resolveTimeStage(members, rankStart, podiumPlaces, roundName, resolver, tieEvents, errs)

	default: // ChoiceYes
		ok, reason := validatePreviousRanks(members, decision.PreviousRanksByAthlete)
		if !ok {
			*errs = append(*errs, fmt.Sprintf("invalid_previous_rounds_decision:%s:%s", fp, reason))
			*tieEvents = append(*tieEvents, TieEvent{
				Fingerprint: fp, Stage: StagePreviousRounds, RankStart: rankStart, RankEnd: rankEnd,
				AffectsPodium: affectsPodium, Members: toRankingRows(members, rankStart),
				Status: TieStatusError, Detail: reason, LineageKey: lineageKey,
				KnownPrevRanksByAthlete: map[string]int{}, MissingPrevRoundsAthleteIDs: sortedAthleteIDs(members),
				RequiresPrevRoundsInput: true,
			})
			return []tieChunk{{items: members}}, false
		}

		ranksByAthlete := decision.PreviousRanksByAthlete
		var knownMembers, missingMembers []resolvedItem
		for _, item := range members {
			if _, ok := ranksByAthlete[item.athlete.ID]; ok {
				knownMembers = append(knownMembers, item)
			} else {
				missingMembers = append(missingMembers, item)
			}
		}
		if len(knownMembers) == 0 {
			*tieEvents = append(*tieEvents, TieEvent{
				Fingerprint: fp, Stage: StagePreviousRounds, RankStart: rankStart, RankEnd: rankEnd,
				AffectsPodium: affectsPodium, Members: toRankingRows(members, rankStart),
				Status: TieStatusPending, Detail: "previous_rounds_missing_members", LineageKey: lineageKey,
				KnownPrevRanksByAthlete: map[string]int{}, MissingPrevRoundsAthleteIDs: sortedAthleteIDs(missingMembers),
				RequiresPrevRoundsInput: true,
			})
			return []tieChunk{{items: members}}, false
		}

		partitions := partitionByPrevRanks(knownMembers, ranksByAthlete)
		var chunks []tieChunk
		allResolved := true
		consumed := 0
		for partIdx, part := range partitions {
			partRankStart := rankStart + consumed
			consumed += len(part)
			if len(part) == 1 {
				if partIdx == 0 {
					part[0].tbPrev = true
				}
				chunks = append(chunks, tieChunk{items: part})
				continue
			}
			timeChunks, resolved := resolveTimeStage(part, partRankStart, podiumPlaces, roundName, resolver, tieEvents, errs)
			chunks = append(chunks, timeChunks...)
			allResolved = allResolved && resolved
		}

		if len(missingMembers) > 0 {
			sort.Slice(missingMembers, func(i, j int) bool { return stableAthleteLess(missingMembers[i], missingMembers[j]) })
			chunks = append(chunks, tieChunk{items: missingMembers})
			known := make(map[string]int, len(knownMembers))
			for _, item := range knownMembers {
				known[item.athlete.ID] = ranksByAthlete[item.athlete.ID]
			}
			*tieEvents = append(*tieEvents, TieEvent{
				Fingerprint: fp, Stage: StagePreviousRounds, RankStart: rankStart, RankEnd: rankEnd,
				AffectsPodium: affectsPodium, Members: toRankingRows(members, rankStart),
				Status: TieStatusPending, Detail: "previous_rounds_missing_members", LineageKey: lineageKey,
				KnownPrevRanksByAthlete: known, MissingPrevRoundsAthleteIDs: sortedAthleteIDs(missingMembers),
				RequiresPrevRoundsInput: true,
			})
			return chunks, false
		}
		return chunks, allResolved
	}
}

// Compute produces a final Lead ranking with explicit, auditable tiebreak
// resolution. roundName is carried into every fingerprint and tie context.
func Compute(athletes []Athlete, results map[string]LeadResult, resolver Resolver, podiumPlaces int, roundName string) RankingResult {
	if podiumPlaces < 1 {
		podiumPlaces = 3
	}
	if roundName == "" {
		roundName = "Final"
	}

	var resolvedItems []resolvedItem
	for _, athlete := range athletes {
		result, ok := results[athlete.ID]
		if !ok {
			continue
		}
		resolvedItems = append(resolvedItems, resolvedItem{athlete: athlete, result: result})
	}

	sort.SliceStable(resolvedItems, func(i, j int) bool {
		ti, hi, pi := resultSortKey(resolvedItems[i].result)
		tj, hj, pj := resultSortKey(resolvedItems[j].result)
		if ti != tj {
			return ti > tj
		}
		if hi != hj {
			return hi > hj
		}
		if pi != pj {
			return pi > pj
		}
		return stableAthleteLess(resolvedItems[i], resolvedItems[j])
	})

	var tieEvents []TieEvent
	var errs []string
	var finalChunks []tieChunk

	assigned := 0
	i := 0
	for i < len(resolvedItems) {
		j := i + 1
		for j < len(resolvedItems) && sameResultKey(resolvedItems[j].result, resolvedItems[i].result) {
			j++
		}
		group := resolvedItems[i:j]
		rankStart := assigned + 1
		if len(group) <= 1 {
			finalChunks = append(finalChunks, tieChunk{items: group})
			assigned += len(group)
		} else {
			chunks, _ := resolveGroup(group, rankStart, podiumPlaces, roundName, resolver, &tieEvents, &errs)
			finalChunks = append(finalChunks, chunks...)
			for _, c := range chunks {
				assigned += len(c.items)
			}
		}
		i = j
	}

	var rows []RankingRow
	pos := 1
	hasPendingPodium := false
	for _, chunk := range finalChunks {
		rank := pos
		sorted := make([]resolvedItem, len(chunk.items))
		copy(sorted, chunk.items)
		sort.Slice(sorted, func(i, j int) bool { return stableAthleteLess(sorted[i], sorted[j]) })
		for _, item := range sorted {
			rows = append(rows, toRankingRow(item, rank))
		}
		if len(chunk.items) > 1 && rank <= podiumPlaces {
			hasPendingPodium = true
		}
		pos += len(chunk.items)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rank != rows[j].Rank {
			return rows[i].Rank < rows[j].Rank
		}
		ni, nj := strings.ToLower(rows[i].AthleteName), strings.ToLower(rows[j].AthleteName)
		if ni != nj {
			return ni < nj
		}
		return rows[i].AthleteID < rows[j].AthleteID
	})

	rows = collapsePodiumBoundary(rows, podiumPlaces)

	for _, event := range tieEvents {
		if event.AffectsPodium && (event.Status == TieStatusPending || event.Status == TieStatusError) {
			hasPendingPodium = true
			break
		}
	}

	return RankingResult{
		Rows:                 rows,
		TieEvents:            tieEvents,
		IsResolved:           !hasPendingPodium,
		HasPendingPodiumTies: hasPendingPodium,
		Errors:               errs,
	}
}

// collapsePodiumBoundary re-groups rows by raw performance key and collapses
// any tail that splits beyond the podium back to a shared rank.
func collapsePodiumBoundary(rows []RankingRow, podiumPlaces int) []RankingRow {
	byPerf := make([]RankingRow, len(rows))
	copy(byPerf, rows)
	sort.Slice(byPerf, func(i, j int) bool {
		a, b := byPerf[i], byPerf[j]
		ka := perfKey(a)
		kb := perfKey(b)
		if ka != kb {
			return ka > kb
		}
		na, nb := strings.ToLower(a.AthleteName), strings.ToLower(b.AthleteName)
		if na != nb {
			return na < nb
		}
		return a.AthleteID < b.AthleteID
	})

	collapsed := map[string]int{}
	i := 0
	for i < len(byPerf) {
		j := i + 1
		for j < len(byPerf) && perfKey(byPerf[j]) == perfKey(byPerf[i]) {
			j++
		}
		group := byPerf[i:j]
		if len(group) > 1 {
			minRank, maxRank := group[0].Rank, group[0].Rank
			for _, r := range group {
				if r.Rank < minRank {
					minRank = r.Rank
				}
				if r.Rank > maxRank {
					maxRank = r.Rank
				}
			}
			if minRank > podiumPlaces {
				for _, r := range group {
					collapsed[r.AthleteID] = minRank
				}
			} else if maxRank > podiumPlaces {
				tailMin := math.MaxInt
				for _, r := range group {
					if r.Rank > podiumPlaces && r.Rank < tailMin {
						tailMin = r.Rank
					}
				}
				if tailMin != math.MaxInt {
					for _, r := range group {
						if r.Rank > podiumPlaces {
							collapsed[r.AthleteID] = tailMin
						}
					}
				}
			}
		}
		i = j
	}

	if len(collapsed) == 0 {
		return rows
	}
	out := make([]RankingRow, len(rows))
	for i, r := range rows {
		if nr, ok := collapsed[r.AthleteID]; ok {
			r.Rank = nr
		}
		out[i] = r
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		na, nb := strings.ToLower(out[i].AthleteName), strings.ToLower(out[j].AthleteName)
		if na != nb {
			return na < nb
		}
		return out[i].AthleteID < out[j].AthleteID
	})
	return out
}

// perfKey packs (topped, hold, plus-when-not-topped) into a comparable int
// for descending-order grouping.
func perfKey(r RankingRow) int {
	topped := 0
	if r.Topped {
		topped = 1
	}
	plus := 0
	if r.Plus && !r.Topped {
		plus = 1
	}
	return topped<<24 | r.Hold<<1 | plus
}
