package recommend

import (
	"cmp"
	"slices"
)

// Sorter orders a batch. Implementations must not modify their input.
type Sorter interface {
	Sort(recs []Recommendation) []Recommendation
}

// ScoreSorter orders by match score, highest first. Equal scores keep their
// relative order.
type ScoreSorter struct{}

// Sort implements Sorter.
func (ScoreSorter) Sort(recs []Recommendation) []Recommendation {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b Recommendation) int {
		return cmp.Compare(b.MatchScore, a.MatchScore)
	})
	return out
}
