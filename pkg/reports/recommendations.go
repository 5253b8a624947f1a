package reports

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rmax-ai/bookgraph/pkg/recommend"
)

// RecommendationReport exports the current recommendation list.
type RecommendationReport struct {
	src    ReportSource
	format ReportFormat
}

// NewRecommendationReport creates a new RecommendationReport generator.
func NewRecommendationReport(src ReportSource, format ReportFormat) *RecommendationReport {
	return &RecommendationReport{src: src, format: format}
}

// Generate exports the list in display order, dropping entries below
// params.MinScore.
func (r *RecommendationReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs := r.src.Recommendations().Recommendations
	if params.MinScore > 0 {
		recs = recommend.MinScoreFilter{Min: params.MinScore}.Apply(recs)
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	if r.format == ReportFormatJSON {
		return encodeJSON(recs)
	}

	headers := []string{"id", "title", "author", "reason", "match_score", "genre", "tags"}
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		author := ""
		if rec.Author != nil {
			author = *rec.Author
		}
		rows = append(rows, []string{
			rec.ID,
			rec.Title,
			author,
			rec.Reason,
			strconv.FormatFloat(rec.MatchScore, 'f', -1, 64),
			rec.Genre,
			strings.Join(rec.Tags, ";"),
		})
	}
	return encodeRows(headers, rows)
}
