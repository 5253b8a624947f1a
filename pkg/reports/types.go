package reports

import (
	"context"
	"io"

	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

type ReportType string

const (
	ReportTypeLibrary         ReportType = "library"
	ReportTypeRecommendations ReportType = "recommendations"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

// ContentType returns the MIME type of the format.
func (f ReportFormat) ContentType() string {
	if f == ReportFormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ReportParams narrows a report.
type ReportParams struct {
	// Query filters library reports the same way the library search does.
	Query string
	// MinScore drops recommendations scoring below it.
	MinScore float64
}

// ReportSource is the state reports are built from. *engine.Controller
// implements it.
type ReportSource interface {
	FilterBooks(query string) ([]graph.Book, error)
	Recommendations() engine.RecommendationState
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}

var _ ReportSource = (*engine.Controller)(nil)
