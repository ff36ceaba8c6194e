package worker

import (
	"context"
	"fmt"
	"log/slog"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	"budgetwise/internal/sheets"
)

// RecommendationSource is the slice of the storage layer the export
// worker needs.
type RecommendationSource interface {
	GetRecommendation(ctx context.Context, id int64) (*core.BudgetRecommendation, error)
	CategoryBudgets(ctx context.Context, recommendationID int64) ([]core.CategoryBudget, error)
	ListPendingExport(ctx context.Context, limit int) ([]core.BudgetRecommendation, error)
	MarkExported(ctx context.Context, id int64) error
	MarkExportError(ctx context.Context, id int64) error
}

// ExportWorker ships generated budget recommendations to the report
// spreadsheet.
type ExportWorker struct {
	store     RecommendationSource
	reports   sheets.ReportWriter
	batchSize int
}

func NewExportWorker(store RecommendationSource, reports sheets.ReportWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		reports:   reports,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.RecommendationExportMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"recommendation_id", msg.RecommendationID,
		"user_id", msg.UserID,
		"month", msg.Month)

	return w.exportRecommendation(ctx, msg.RecommendationID)
}

// ProcessPendingRecommendations exports recommendations still marked
// pending. This is the backup path for AMQP messages lost in transit.
func (w *ExportWorker) ProcessPendingRecommendations(ctx context.Context) error {
	pending, err := w.store.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, rec := range pending {
		if err := w.exportRecommendation(ctx, rec.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export recommendation",
				"recommendation_id", rec.ID, "error", err)
		}
	}

	return nil
}

// StartupExportCheck drains the pending backlog at worker startup so
// downtime never loses exports. It scans a larger batch than the
// periodic pass.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.store.ListPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, rec := range pending {
		if err := w.exportRecommendation(ctx, rec.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export recommendation during startup",
				"recommendation_id", rec.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportRecommendation(ctx context.Context, id int64) error {
	rec, err := w.store.GetRecommendation(ctx, id)
	if err != nil {
		return fmt.Errorf("get recommendation from storage: %w", err)
	}

	budgets, err := w.store.CategoryBudgets(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("get category budgets: %w", err)
	}

	ref, err := w.reports.AppendReport(ctx, buildReport(rec, budgets))
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"recommendation_id", rec.ID, "error", markErr)
		}
		return fmt.Errorf("append report to sheets: %w", err)
	}

	if err := w.store.MarkExported(ctx, rec.ID); err != nil {
		// The export itself succeeded; the pending scan will retry the
		// status write, at worst duplicating a report row.
		slog.ErrorContext(ctx, "Failed to mark as exported",
			"recommendation_id", rec.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully exported recommendation",
		"recommendation_id", rec.ID,
		"user_id", rec.UserID,
		"month", rec.Month.String(),
		"sheets_ref", ref)

	return nil
}

// buildReport flattens a recommendation and its category budgets into
// the export port's shape.
func buildReport(rec *core.BudgetRecommendation, budgets []core.CategoryBudget) sheets.Report {
	report := sheets.Report{
		RecommendationID: rec.ID,
		UserID:           rec.UserID,
		Month:            rec.Month.String(),
		TotalBudget:      rec.TotalRecommendedBudget.StringFixed(2),
		Savings:          rec.RecommendedSavings.StringFixed(2),
		GeneratedAt:      rec.GeneratedAt,
	}
	for _, b := range budgets {
		report.Rows = append(report.Rows, sheets.ReportRow{
			Category:  b.Category.Display(),
			Limit:     b.RecommendedLimit.StringFixed(2),
			Average:   b.ActualAverage.StringFixed(2),
			Variance:  b.Variance.StringFixed(2),
			RiskLevel: string(b.RiskLevel),
		})
	}
	return report
}
