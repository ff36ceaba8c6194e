package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

// Ports for the engine's outbound collaborators. The surrounding CRUD
// layer owns transaction ingestion and user identity; the engine only
// consumes a read interface over transactions and profiles, and a write
// interface over recommendations.
type (
	// TransactionReader reads a user's transaction history.
	TransactionReader interface {
		// CountInWindow counts all of the user's transactions in
		// [from, to], anomalous ones included.
		CountInWindow(ctx context.Context, userID int64, from, to time.Time) (int, error)

		// ListForAnalysis returns the user's non-anomalous
		// transactions in [from, to].
		ListForAnalysis(ctx context.Context, userID int64, from, to time.Time) ([]core.Transaction, error)

		// SpendingByCategory sums spending per category in [from, to].
		SpendingByCategory(ctx context.Context, userID int64, from, to time.Time, includeAnomalies bool) (map[core.Category]decimal.Decimal, error)
	}

	// ProfileStore reads and updates user financial profiles.
	ProfileStore interface {
		// GetOrCreateProfile returns the user's profile, creating it
		// with defaults on first analysis.
		GetOrCreateProfile(ctx context.Context, userID int64) (core.FinancialProfile, error)

		// UpdateHealthScores writes the derived volatility and
		// savings-confidence scores back to the profile.
		UpdateHealthScores(ctx context.Context, userID int64, volatilityScore, savingsConfidence float64) error
	}

	// RecommendationStore persists recommendations and their children.
	RecommendationStore interface {
		// UpsertRecommendation writes the recommendation keyed on
		// (user, month) and replaces its category and weekly budgets,
		// all inside a single transaction.
		UpsertRecommendation(ctx context.Context, rec core.BudgetRecommendation, categories []core.CategoryBudget, weeks []core.WeeklyBudget) (core.BudgetRecommendation, error)

		// GetActiveRecommendation returns the active recommendation
		// for (user, month), or core.ErrRecommendationNotFound.
		GetActiveRecommendation(ctx context.Context, userID int64, month core.Month) (*core.BudgetRecommendation, error)

		CategoryBudgets(ctx context.Context, recommendationID int64) ([]core.CategoryBudget, error)
		WeeklyBudgets(ctx context.Context, recommendationID int64) ([]core.WeeklyBudget, error)
	}

	// ExportPublisher announces a freshly persisted recommendation so
	// the export worker can pick it up.
	ExportPublisher interface {
		PublishRecommendationExport(ctx context.Context, recommendationID, userID int64, month string) error
	}
)
