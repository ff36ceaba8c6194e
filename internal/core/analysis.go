package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryStats are the per-category spending statistics for one
// analysis window.
type CategoryStats struct {
	Average decimal.Decimal
	Total   decimal.Decimal
	Count   int
	StdDev  decimal.Decimal
	// Volatility is 100 * stddev / average, in percent. Zero when the
	// average is zero or the category has a single transaction.
	Volatility decimal.Decimal
	// ExpenseType is the dominant type among the category's
	// transactions; unclassified rows count as discretionary.
	ExpenseType ExpenseType
}

// SpendingAnalysis is the transient output of the spending analyzer.
// It is computed fresh per invocation and never persisted.
type SpendingAnalysis struct {
	Categories       map[Category]CategoryStats
	TotalSpending    decimal.Decimal
	TransactionCount int
	// OverallVolatility is the unweighted mean of per-category
	// volatilities: every category counts equally regardless of how
	// many transactions it holds.
	OverallVolatility decimal.Decimal
	WindowStart       time.Time
	WindowEnd         time.Time
}
