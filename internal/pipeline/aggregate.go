package pipeline

import "github.com/Skelf-Research/checkstream-sub000/internal/classifier"

// aggregate reduces a set of classifier results (in declared input order) to
// a single MemberResult per the aggregation laws in spec §3/§4.3. Errored
// members are excluded from score-based reductions but retained in the
// caller's Members list for diagnostics.
func aggregate(agg Aggregation, members []MemberResult) MemberResult {
	ok := make([]MemberResult, 0, len(members))
	for _, m := range members {
		if m.Err == nil {
			ok = append(ok, m)
		}
	}
	if len(ok) == 0 {
		return MemberResult{}
	}

	switch agg {
	case AggMaxScore:
		return maxScore(ok)
	case AggMinScore:
		return minScore(ok)
	case AggFirstPositive:
		return firstPositive(ok, 0.5)
	case AggUnanimous:
		return unanimous(ok)
	case AggWeightedAverage:
		return weightedAverage(ok)
	case AggAll:
		fallthrough
	default:
		// All: final score is undefined by spec; the last result in
		// declared order is used as "the decision" for history purposes.
		return ok[len(ok)-1]
	}
}

// maxScore returns the result with maximum score; ties broken by input
// order (first occurrence wins, per spec §3/§8.3).
func maxScore(members []MemberResult) MemberResult {
	best := members[0]
	for _, m := range members[1:] {
		if m.Result.Score > best.Result.Score {
			best = m
		}
	}
	return best
}

// minScore is maxScore's symmetric counterpart.
func minScore(members []MemberResult) MemberResult {
	best := members[0]
	for _, m := range members[1:] {
		if m.Result.Score < best.Result.Score {
			best = m
		}
	}
	return best
}

// firstPositive returns the first (input order) result with score > t, or
// the max-score result if none qualify. Deterministic in declared order
// regardless of completion order (spec §4.3, §8.3).
func firstPositive(members []MemberResult, t float64) MemberResult {
	for _, m := range members {
		if m.Result.Score > t {
			return m
		}
	}
	return maxScore(members)
}

// unanimous returns the MaxScore ("consensus") result if all members agree
// on which side of 0.5 they fall; otherwise a synthetic "disagreement"
// result at the minimum score.
func unanimous(members []MemberResult) MemberResult {
	allAbove, allBelowOrEqual := true, true
	for _, m := range members {
		if m.Result.Score > 0.5 {
			allBelowOrEqual = false
		} else {
			allAbove = false
		}
	}
	if allAbove || allBelowOrEqual {
		return maxScore(members)
	}
	min := minScore(members)
	return MemberResult{
		ClassifierName: min.ClassifierName,
		Result: classifier.Result{
			Score: min.Result.Score,
			Label: "disagreement",
			Tier:  min.Result.Tier,
		},
	}
}

// weightedAverage returns a synthetic result whose score is the arithmetic
// mean of member scores (equal weights, unless a "weight" metadata key is
// present on a member's result), and whose label is the most common label.
func weightedAverage(members []MemberResult) MemberResult {
	var weightedSum, weightTotal float64
	labelCounts := make(map[string]int, len(members))
	for _, m := range members {
		weight := 1.0
		if w, ok := m.Result.Metadata["weight"].(float64); ok && w > 0 {
			weight = w
		}
		weightedSum += m.Result.Score * weight
		weightTotal += weight
		labelCounts[m.Result.Label]++
	}
	avg := 0.0
	if weightTotal > 0 {
		avg = weightedSum / weightTotal
	}

	bestLabel, bestCount := "", -1
	for _, m := range members {
		c := labelCounts[m.Result.Label]
		if c > bestCount {
			bestCount = c
			bestLabel = m.Result.Label
		}
	}

	return MemberResult{
		ClassifierName: "",
		Result: classifier.Result{
			Score: avg,
			Label: bestLabel,
			Tier:  members[0].Result.Tier,
		},
	}
}
