package recommend

// Recommendation is a display-ready recommendation. A batch is always
// replaced as a whole; entries are never merged across batches.
type Recommendation struct {
	// ID is the book id when the backend knows it, otherwise a positional
	// placeholder that is only unique within its batch.
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Author     *string  `json:"author"`
	Reason     string   `json:"reason"`
	MatchScore float64  `json:"match_score"`
	Genre      string   `json:"genre,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Cover      string   `json:"cover,omitempty"`
	// Placeholder marks an ID synthesized because the backend sent none.
	Placeholder bool `json:"placeholder,omitempty"`
}

// HasBookID reports whether ID refers to a real book rather than a
// positional placeholder.
func (r Recommendation) HasBookID() bool {
	return r.ID != "" && !r.Placeholder
}
