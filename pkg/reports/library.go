package reports

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LibraryReport exports the user's books.
type LibraryReport struct {
	src    ReportSource
	format ReportFormat
}

// NewLibraryReport creates a new LibraryReport generator.
func NewLibraryReport(src ReportSource, format ReportFormat) *LibraryReport {
	return &LibraryReport{src: src, format: format}
}

// Generate exports every book matching params.Query in library order.
func (r *LibraryReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	books, err := r.src.FilterBooks(params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	if r.format == ReportFormatJSON {
		return encodeJSON(books)
	}

	headers := []string{"id", "node_id", "title", "author", "year", "tags", "progress", "cover"}
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		year := ""
		if b.Year > 0 {
			year = strconv.Itoa(b.Year)
		}
		rows = append(rows, []string{
			b.ID,
			b.NodeID,
			b.Title,
			b.Author,
			year,
			strings.Join(b.Tags, ";"),
			strconv.Itoa(b.Progress),
			b.Cover,
		})
	}
	return encodeRows(headers, rows)
}
