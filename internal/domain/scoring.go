package domain

import (
	"math"
	"sort"
)

// Apply returns the score state after answering q. Only Yes awards points;
// No and Skip return an unchanged copy. The input state is never mutated.
func Apply(state ScoreState, q Question, answer AnswerValue) ScoreState {
	next := state.Clone()
	if answer != AnswerYes {
		return next
	}
	for role, weight := range q.Weights {
		next[role] += weight
	}
	return next
}

// Rank normalizes scores against the top scorer (floored at 1 so an all-zero
// state ranks as all zeros) and orders roles by raw score, highest first.
// Ties keep the order of roles.
func Rank(state ScoreState, roles []Role) []RankedEntry {
	maxScore := 1
	for _, role := range roles {
		maxScore = max(maxScore, state[role])
	}

	ranked := make([]RankedEntry, 0, len(roles))
	for _, role := range roles {
		raw := state[role]
		ranked = append(ranked, RankedEntry{
			Role:            role,
			RawScore:        raw,
			NormalizedScore: int(math.Round(100 * float64(raw) / float64(maxScore))),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RawScore > ranked[j].RawScore
	})
	return ranked
}

// MaxAttainable is the best total any single role could reach: the sum of
// each question's largest weight.
func MaxAttainable(questions []Question) int {
	total := 0
	for _, q := range questions {
		best := 0
		for _, weight := range q.Weights {
			best = max(best, weight)
		}
		total += best
	}
	return total
}

// MatchRate scores the top-ranked role against totalMax, in [0,100].
// It is 0 when nothing can be scored.
func MatchRate(ranked []RankedEntry, totalMax int) int {
	if totalMax <= 0 || len(ranked) == 0 {
		return 0
	}
	rate := int(math.Round(100 * float64(ranked[0].RawScore) / float64(totalMax)))
	return min(rate, 100)
}

// Top returns the first n entries of a ranking. n <= 0 keeps everything.
func Top(ranked []RankedEntry, n int) []RankedEntry {
	if n <= 0 || n >= len(ranked) {
		return append([]RankedEntry(nil), ranked...)
	}
	return append([]RankedEntry(nil), ranked[:n]...)
}
