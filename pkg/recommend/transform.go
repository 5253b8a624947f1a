package recommend

import (
	"strconv"

	"github.com/rmax-ai/bookgraph/pkg/gateway"
)

// PlaceholderPrefix starts ids synthesized for recommendations without a
// book id.
const PlaceholderPrefix = "rec-"

// Transformer maps raw recommendations to display-ready ones.
type Transformer interface {
	Transform(raw []gateway.RawRecommendation) []Recommendation
}

// DefaultTransformer copies the raw fields and lifts genre, tags and cover
// out of the metadata map.
type DefaultTransformer struct{}

// Transform implements Transformer.
func (DefaultTransformer) Transform(raw []gateway.RawRecommendation) []Recommendation {
	out := make([]Recommendation, 0, len(raw))
	for i, item := range raw {
		id, placeholder := item.BookID, false
		if id == "" {
			id, placeholder = PlaceholderPrefix+strconv.Itoa(i), true
		}
		var author *string
		if item.Author != nil {
			a := *item.Author
			author = &a
		}
		out = append(out, Recommendation{
			ID:         id,
			Title:      item.Title,
			Author:     author,
			Reason:     item.Reason,
			MatchScore: item.Score,
			Genre:      metaString(item.Metadata, "genre"),
			Tags:       metaStrings(item.Metadata, "tags"),
			Cover:      metaString(item.Metadata, "cover"),

			Placeholder: placeholder,
		})
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

func metaStrings(meta map[string]any, key string) []string {
	switch v := meta[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
