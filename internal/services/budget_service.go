package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/cache"
	"budgetwise/internal/core"
)

// BudgetService orchestrates the recommendation engine: analysis,
// planning, persistence and adherence scoring. Each call runs to
// completion synchronously; regeneration for the same (user, month) is
// idempotent and upserts a single row.
type BudgetService struct {
	transactions    TransactionReader
	profiles        ProfileStore
	recommendations RecommendationStore
	publisher       ExportPublisher
	analyzer        *Analyzer

	recCache       *cache.LRUCache[core.BudgetRecommendation]
	adherenceCache *cache.LRUCache[AdherenceReport]

	now func() time.Time
}

// BudgetServiceOptions tune the engine. Zero values fall back to the
// documented defaults.
type BudgetServiceOptions struct {
	MinTransactions   int
	LookbackMonths    int
	RecommendationTTL time.Duration
	AnalysisTTL       time.Duration
	AdherenceTTL      time.Duration
	// Clock is injectable for tests; nil means time.Now.
	Clock func() time.Time
}

const cacheSize = 256

func NewBudgetService(transactions TransactionReader, profiles ProfileStore, recommendations RecommendationStore, publisher ExportPublisher, opts BudgetServiceOptions) *BudgetService {
	if opts.MinTransactions == 0 {
		opts.MinTransactions = 30
	}
	if opts.LookbackMonths == 0 {
		opts.LookbackMonths = 3
	}
	if opts.RecommendationTTL == 0 {
		opts.RecommendationTTL = time.Hour
	}
	if opts.AnalysisTTL == 0 {
		opts.AnalysisTTL = 30 * time.Minute
	}
	if opts.AdherenceTTL == 0 {
		opts.AdherenceTTL = 10 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	analysisCache := cache.NewLRUCacheWithClock[core.SpendingAnalysis](cacheSize, opts.AnalysisTTL, opts.Clock)

	return &BudgetService{
		transactions:    transactions,
		profiles:        profiles,
		recommendations: recommendations,
		publisher:       publisher,
		analyzer:        NewAnalyzer(transactions, opts.MinTransactions, opts.LookbackMonths, analysisCache, opts.Clock),
		recCache:        cache.NewLRUCacheWithClock[core.BudgetRecommendation](cacheSize, opts.RecommendationTTL, opts.Clock),
		adherenceCache:  cache.NewLRUCacheWithClock[AdherenceReport](cacheSize, opts.AdherenceTTL, opts.Clock),
		now:             opts.Clock,
	}
}

// Caches exposes the service's caches for cleanup registration.
func (s *BudgetService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.recCache, s.adherenceCache}
}

// GenerateRecommendation builds and persists the budget recommendation
// for the target month (current month when zero). Cached results are
// served until expiry; cache entries are never invalidated by new
// transaction writes, so a freshly generated recommendation can lag
// the ledger by up to the TTL.
func (s *BudgetService) GenerateRecommendation(ctx context.Context, userID int64, targetMonth core.Month) (core.BudgetRecommendation, error) {
	if targetMonth.IsZero() {
		targetMonth = core.MonthOf(s.now())
	}

	key := cache.Key("recommendation", userID, targetMonth.String())
	if cached, ok := s.recCache.Get(key); ok {
		slog.InfoContext(ctx, "Recommendation cache hit", "cache_key", key)
		return cached, nil
	}

	profile, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return core.BudgetRecommendation{}, fmt.Errorf("load profile: %w", err)
	}
	if profile.MonthlyIncome.IsNegative() {
		return core.BudgetRecommendation{}, &core.ValidationError{Field: "monthly_income", Reason: "cannot be negative"}
	}

	analysis, err := s.analyzer.Analyze(ctx, userID)
	if err != nil {
		return core.BudgetRecommendation{}, err
	}

	categories := PlanCategories(analysis)
	totalBudget := TotalBudget(categories)
	savings := PlanSavings(profile.MonthlyIncome, totalBudget, analysis.OverallVolatility)
	weeks := AllocateWeeks(targetMonth, totalBudget, savings.Amount)

	rec := core.BudgetRecommendation{
		UserID:                 userID,
		Month:                  targetMonth,
		RecommendedSavings:     savings.Amount,
		SavingsReason:          savings.Reason,
		TotalRecommendedBudget: totalBudget.Round(2),
		IsActive:               true,
		GeneratedAt:            s.now(),
		ExportStatus:           core.ExportPending,
	}

	persisted, err := s.recommendations.UpsertRecommendation(ctx, rec, categories, weeks)
	if err != nil {
		return core.BudgetRecommendation{}, fmt.Errorf("persist recommendation: %w", err)
	}

	s.updateHealthScores(ctx, userID, analysis)
	s.publishExport(ctx, persisted)

	s.recCache.Set(key, persisted)

	slog.InfoContext(ctx, "Budget recommendation generated",
		"user_id", userID,
		"recommendation_id", persisted.ID,
		"month", targetMonth.String(),
		"total_budget", persisted.TotalRecommendedBudget.StringFixed(2),
		"recommended_savings", persisted.RecommendedSavings.StringFixed(2),
		"categories", len(categories),
		"weeks", len(weeks))

	return persisted, nil
}

// updateHealthScores writes the derived financial health indicators
// back to the profile. A failure here never fails the generation.
func (s *BudgetService) updateHealthScores(ctx context.Context, userID int64, analysis core.SpendingAnalysis) {
	volatility := analysis.OverallVolatility.InexactFloat64()
	volatilityScore := math.Min(100, volatility)
	confidence := math.Max(0, 100-volatility)

	if err := s.profiles.UpdateHealthScores(ctx, userID, volatilityScore, confidence); err != nil {
		slog.WarnContext(ctx, "Failed to update financial health scores",
			"user_id", userID, "error", err)
	}
}

// publishExport hands the recommendation to the export pipeline. The
// worker's pending scan covers lost messages, so a publish failure is
// logged but never fails the request.
func (s *BudgetService) publishExport(ctx context.Context, rec core.BudgetRecommendation) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecommendationExport(ctx, rec.ID, rec.UserID, rec.Month.String()); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export message",
			"recommendation_id", rec.ID, "error", err)
	}
}

// RecommendationDetail bundles a recommendation with its category and
// weekly breakdowns for read paths.
type RecommendationDetail struct {
	Recommendation core.BudgetRecommendation
	Categories     []core.CategoryBudget
	Weeks          []core.WeeklyBudget
}

// CurrentRecommendation loads the active recommendation for the current
// month together with its breakdowns. Returns
// core.ErrRecommendationNotFound when none exists.
func (s *BudgetService) CurrentRecommendation(ctx context.Context, userID int64) (RecommendationDetail, error) {
	month := core.MonthOf(s.now())

	rec, err := s.recommendations.GetActiveRecommendation(ctx, userID, month)
	if err != nil {
		return RecommendationDetail{}, err
	}

	categories, err := s.recommendations.CategoryBudgets(ctx, rec.ID)
	if err != nil {
		return RecommendationDetail{}, fmt.Errorf("load category budgets: %w", err)
	}
	weeks, err := s.recommendations.WeeklyBudgets(ctx, rec.ID)
	if err != nil {
		return RecommendationDetail{}, fmt.Errorf("load weekly budgets: %w", err)
	}

	return RecommendationDetail{Recommendation: *rec, Categories: categories, Weeks: weeks}, nil
}

// CategoryComparison is one row of a budget-versus-actual comparison.
type CategoryComparison struct {
	Category       core.Category   `json:"category"`
	Budgeted       decimal.Decimal `json:"budgeted"`
	Actual         decimal.Decimal `json:"actual"`
	Difference     decimal.Decimal `json:"difference"`
	PercentageUsed decimal.Decimal `json:"percentage_used"`
	Status         string          `json:"status"` // "over" or "under"
}

// CompareToActual compares a stored recommendation against realized
// spending in its month, one row per budgeted category.
func (s *BudgetService) CompareToActual(ctx context.Context, rec core.BudgetRecommendation) ([]CategoryComparison, error) {
	budgets, err := s.recommendations.CategoryBudgets(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load category budgets: %w", err)
	}

	actualByCategory, err := s.transactions.SpendingByCategory(ctx, rec.UserID, rec.Month.Start(), rec.Month.End(), true)
	if err != nil {
		return nil, fmt.Errorf("load actual spending: %w", err)
	}

	comparisons := make([]CategoryComparison, 0, len(budgets))
	for _, budget := range budgets {
		actual := actualByCategory[budget.Category]

		percentageUsed := decimal.Zero
		if budget.RecommendedLimit.IsPositive() {
			percentageUsed = actual.Div(budget.RecommendedLimit).Mul(hundred).Round(1)
		}

		status := "under"
		if actual.GreaterThan(budget.RecommendedLimit) {
			status = "over"
		}

		comparisons = append(comparisons, CategoryComparison{
			Category:       budget.Category,
			Budgeted:       budget.RecommendedLimit,
			Actual:         actual,
			Difference:     budget.RecommendedLimit.Sub(actual),
			PercentageUsed: percentageUsed,
			Status:         status,
		})
	}

	return comparisons, nil
}

// Adherence scores how well the user's month-to-date spending matches
// the active recommendation. When no active recommendation exists it
// returns (nil, nil): an absent result, not a failure.
func (s *BudgetService) Adherence(ctx context.Context, userID int64) (*AdherenceReport, error) {
	now := s.now()
	month := core.MonthOf(now)

	key := cache.Key("adherence", userID, month.String())
	if cached, ok := s.adherenceCache.Get(key); ok {
		slog.DebugContext(ctx, "Adherence cache hit", "cache_key", key)
		return &cached, nil
	}

	rec, err := s.recommendations.GetActiveRecommendation(ctx, userID, month)
	if err != nil {
		if errors.Is(err, core.ErrRecommendationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load active recommendation: %w", err)
	}

	budgets, err := s.recommendations.CategoryBudgets(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load category budgets: %w", err)
	}

	actualByCategory, err := s.transactions.SpendingByCategory(ctx, userID, month.Start(), now, false)
	if err != nil {
		return nil, fmt.Errorf("load month-to-date spending: %w", err)
	}

	report := ScoreAdherence(budgets, actualByCategory)
	s.adherenceCache.Set(key, report)

	slog.InfoContext(ctx, "Adherence score computed",
		"user_id", userID,
		"month", month.String(),
		"adherence_score", report.Score.StringFixed(1),
		"on_track", report.OnTrack)

	return &report, nil
}
