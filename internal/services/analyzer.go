package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/cache"
	"budgetwise/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Analyzer aggregates a user's transaction history into per-category
// spending statistics over a trailing window.
type Analyzer struct {
	transactions    TransactionReader
	minTransactions int
	lookbackMonths  int
	analysisCache   *cache.LRUCache[core.SpendingAnalysis]
	now             func() time.Time
}

// NewAnalyzer creates an analyzer over the given transaction reader.
// analysisCache may be nil to disable caching; tests pass a fixed clock.
func NewAnalyzer(transactions TransactionReader, minTransactions, lookbackMonths int, analysisCache *cache.LRUCache[core.SpendingAnalysis], now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{
		transactions:    transactions,
		minTransactions: minTransactions,
		lookbackMonths:  lookbackMonths,
		analysisCache:   analysisCache,
		now:             now,
	}
}

// Analyze computes the user's spending analysis for the trailing window
// ending today. It fails with core.InsufficientDataError when the user
// has fewer transactions than the configured minimum, or when none of
// them survive the anomaly filter.
func (a *Analyzer) Analyze(ctx context.Context, userID int64) (core.SpendingAnalysis, error) {
	key := cache.Key("analysis", userID, fmt.Sprintf("%dm", a.lookbackMonths))
	if a.analysisCache != nil {
		if cached, ok := a.analysisCache.Get(key); ok {
			slog.DebugContext(ctx, "Analysis cache hit", "cache_key", key)
			return cached, nil
		}
	}

	end := a.now().Truncate(24 * time.Hour)
	start := end.AddDate(0, -a.lookbackMonths, 0)

	count, err := a.transactions.CountInWindow(ctx, userID, start, end)
	if err != nil {
		return core.SpendingAnalysis{}, fmt.Errorf("count transactions: %w", err)
	}
	if count < a.minTransactions {
		return core.SpendingAnalysis{}, &core.InsufficientDataError{Count: count, Minimum: a.minTransactions}
	}

	txs, err := a.transactions.ListForAnalysis(ctx, userID, start, end)
	if err != nil {
		return core.SpendingAnalysis{}, fmt.Errorf("list transactions: %w", err)
	}
	if len(txs) == 0 {
		return core.SpendingAnalysis{}, &core.InsufficientDataError{Count: 0, Minimum: 1}
	}

	analysis := BuildAnalysis(txs, start, end)

	if a.analysisCache != nil {
		a.analysisCache.Set(key, analysis)
	}

	slog.InfoContext(ctx, "Spending analysis computed",
		"user_id", userID,
		"transaction_count", analysis.TransactionCount,
		"categories", len(analysis.Categories),
		"overall_volatility", analysis.OverallVolatility.StringFixed(1))

	return analysis, nil
}

// BuildAnalysis aggregates the given non-anomalous transactions into a
// spending analysis. It is a pure function with no side effects.
func BuildAnalysis(txs []core.Transaction, start, end time.Time) core.SpendingAnalysis {
	analysis := core.SpendingAnalysis{
		Categories:  make(map[core.Category]core.CategoryStats),
		WindowStart: start,
		WindowEnd:   end,
	}

	amounts := make(map[core.Category][]decimal.Decimal)
	typeCounts := make(map[core.Category]map[core.ExpenseType]int)

	for _, tx := range txs {
		amounts[tx.Category] = append(amounts[tx.Category], tx.Amount)

		expenseType := tx.ExpenseType
		if expenseType == "" {
			expenseType = core.Discretionary
		}
		if typeCounts[tx.Category] == nil {
			typeCounts[tx.Category] = make(map[core.ExpenseType]int)
		}
		typeCounts[tx.Category][expenseType]++
	}

	volatilitySum := decimal.Zero
	for category, values := range amounts {
		stats := categoryStats(values)
		stats.ExpenseType = dominantType(typeCounts[category])

		analysis.Categories[category] = stats
		analysis.TotalSpending = analysis.TotalSpending.Add(stats.Total)
		analysis.TransactionCount += stats.Count
		volatilitySum = volatilitySum.Add(stats.Volatility)
	}

	// Unweighted mean across categories: a small erratic category moves
	// the aggregate as much as a large stable one.
	if len(analysis.Categories) > 0 {
		analysis.OverallVolatility = volatilitySum.Div(decimal.NewFromInt(int64(len(analysis.Categories))))
	}

	return analysis
}

func categoryStats(values []decimal.Decimal) core.CategoryStats {
	stats := core.CategoryStats{Count: len(values)}

	for _, v := range values {
		stats.Total = stats.Total.Add(v)
	}
	n := decimal.NewFromInt(int64(len(values)))
	stats.Average = stats.Total.Div(n)

	stats.StdDev = stdDev(values, stats.Average)

	// Volatility is undefined for a lone transaction or a zero average;
	// both guard against dividing by zero.
	if stats.Count > 1 && stats.Average.IsPositive() {
		stats.Volatility = stats.StdDev.Div(stats.Average).Mul(hundred)
	}

	return stats
}

// stdDev is the population standard deviation of the amounts.
func stdDev(values []decimal.Decimal, mean decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}

	sumSquares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values))))

	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// dominantType picks the most frequent expense type; ties resolve in
// favor of the less flexible classification.
func dominantType(counts map[core.ExpenseType]int) core.ExpenseType {
	dominant := core.Discretionary
	best := 0
	for _, t := range []core.ExpenseType{core.Fixed, core.VariableEssential, core.Discretionary} {
		if counts[t] > best {
			best = counts[t]
			dominant = t
		}
	}
	return dominant
}
