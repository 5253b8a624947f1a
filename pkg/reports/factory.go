package reports

import (
	"fmt"
)

// NewReportGenerator creates a report generator based on the report type.
// An empty format means CSV.
func NewReportGenerator(reportType ReportType, format ReportFormat, src ReportSource) (Generator, error) {
	switch format {
	case "":
		format = ReportFormatCSV
	case ReportFormatCSV, ReportFormatJSON:
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
	switch reportType {
	case ReportTypeLibrary:
		return NewLibraryReport(src, format), nil
	case ReportTypeRecommendations:
		return NewRecommendationReport(src, format), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}
