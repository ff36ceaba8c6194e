package sheets

import (
	"context"
	"time"
)

// Report is a flattened budget recommendation ready for spreadsheet
// export: one summary line plus one row per category.
type Report struct {
	RecommendationID int64
	UserID           int64
	Month            string
	TotalBudget      string
	Savings          string
	GeneratedAt      time.Time
	Rows             []ReportRow
}

// ReportRow is one category's line in the exported report.
type ReportRow struct {
	Category  string
	Limit     string
	Average   string
	Variance  string
	RiskLevel string
}

// ReportWriter is the outbound port for report export.
type ReportWriter interface {
	// AppendReport writes the report and returns a reference to the
	// written range.
	AppendReport(ctx context.Context, r Report) (rowRef string, err error)
}
