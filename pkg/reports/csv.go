package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// encodeRows writes headers and rows as CSV.
func encodeRows(headers []string, rows [][]string) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}
	return buf, nil
}

// encodeJSON writes v as an indented JSON document.
func encodeJSON(v any) (io.Reader, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return bytes.NewReader(data), nil
}
