package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ports "budgetwise/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client appends budget recommendation reports to a Google
// spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportSheet   string
}

var _ ports.ReportWriter = (*Client)(nil)

// New creates a Sheets client for the given spreadsheet using Service
// Account credentials from the environment: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, reportSheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(reportSheet) == "" {
		reportSheet = "Budget Reports"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		reportSheet:   reportSheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// AppendReport implements ports.ReportWriter. The summary line and the
// per-category rows are written in a single batch below the sheet's
// last occupied row.
func (c *Client) AppendReport(ctx context.Context, r ports.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.reportSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.reportSheet, err)
	}
	nextRow := len(resp.Values) + 1

	values := reportValues(r)
	lastRow := nextRow + len(values) - 1

	dataRange := fmt.Sprintf("%s!A%d:F%d", c.reportSheet, nextRow, lastRow)
	vr := &gsheet.ValueRange{Values: values}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update sheet %s: %w", c.reportSheet, err)
	}

	slog.InfoContext(ctx, "Recommendation report exported",
		"recommendation_id", r.RecommendationID,
		"user_id", r.UserID,
		"month", r.Month,
		"rows", len(values),
		"range", dataRange)

	return dataRange, nil
}

// reportValues flattens a report into spreadsheet rows: a summary
// line, then one line per category.
func reportValues(r ports.Report) [][]any {
	values := [][]any{{
		r.Month,
		fmt.Sprintf("user %d", r.UserID),
		"TOTAL",
		r.TotalBudget,
		r.Savings,
		r.GeneratedAt.Format("2006-01-02 15:04"),
	}}
	for _, row := range r.Rows {
		values = append(values, []any{
			r.Month,
			row.Category,
			row.Limit,
			row.Average,
			row.Variance,
			row.RiskLevel,
		})
	}
	return values
}
