package recommend

// Filter narrows a batch. Implementations must not modify their input.
type Filter interface {
	Apply(recs []Recommendation) []Recommendation
}

// FilterFunc adapts a predicate into a Filter that keeps matching items.
type FilterFunc func(Recommendation) bool

// Apply implements Filter.
func (f FilterFunc) Apply(recs []Recommendation) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if f(r) {
			out = append(out, r)
		}
	}
	return out
}

// DefaultMinScore is the threshold used when min_score has no argument.
const DefaultMinScore = 0.5

// MinScoreFilter drops recommendations scoring below Min.
type MinScoreFilter struct {
	Min float64
}

// Apply implements Filter.
func (f MinScoreFilter) Apply(recs []Recommendation) []Recommendation {
	return FilterFunc(func(r Recommendation) bool { return r.MatchScore >= f.Min }).Apply(recs)
}

// GenreFilter keeps recommendations whose genre equals Genre exactly.
type GenreFilter struct {
	Genre string
}

// Apply implements Filter.
func (f GenreFilter) Apply(recs []Recommendation) []Recommendation {
	return FilterFunc(func(r Recommendation) bool { return r.Genre == f.Genre }).Apply(recs)
}
