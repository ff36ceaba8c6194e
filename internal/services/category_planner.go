package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

// categoryBucket identifies the matched row of the buffer decision
// table. Classification is kept separate from rendering so the numeric
// rules stay testable without string matching.
type categoryBucket int

const (
	bucketFixed categoryBucket = iota
	bucketEssentialSteady
	bucketEssentialModerate
	bucketEssentialErratic
	bucketDiscretionaryStable
	bucketDiscretionaryElevated
	bucketDiscretionaryRunaway
)

var (
	vol20 = decimal.NewFromInt(20)
	vol25 = decimal.NewFromInt(25)
	vol40 = decimal.NewFromInt(40)
	vol50 = decimal.NewFromInt(50)

	bufferByBucket = map[categoryBucket]decimal.Decimal{
		bucketFixed:                 decimal.RequireFromString("0.05"),
		bucketEssentialSteady:       decimal.RequireFromString("0.10"),
		bucketEssentialModerate:     decimal.RequireFromString("0.15"),
		bucketEssentialErratic:      decimal.RequireFromString("0.20"),
		bucketDiscretionaryStable:   decimal.RequireFromString("0.05"),
		bucketDiscretionaryElevated: decimal.Zero,
		bucketDiscretionaryRunaway:  decimal.RequireFromString("-0.10"),
	}

	riskByBucket = map[categoryBucket]core.RiskLevel{
		bucketFixed:                 core.RiskLow,
		bucketEssentialSteady:       core.RiskLow,
		bucketEssentialModerate:     core.RiskMedium,
		bucketEssentialErratic:      core.RiskMedium,
		bucketDiscretionaryStable:   core.RiskLow,
		bucketDiscretionaryElevated: core.RiskMedium,
		bucketDiscretionaryRunaway:  core.RiskHigh,
	}
)

// classifyCategory maps (expense type, volatility%) onto the buffer
// decision table. Fixed expenses ignore volatility entirely.
func classifyCategory(expenseType core.ExpenseType, volatility decimal.Decimal) categoryBucket {
	switch expenseType {
	case core.Fixed:
		return bucketFixed
	case core.VariableEssential:
		switch {
		case volatility.LessThan(vol20):
			return bucketEssentialSteady
		case volatility.LessThan(vol40):
			return bucketEssentialModerate
		default:
			return bucketEssentialErratic
		}
	default:
		switch {
		case volatility.LessThan(vol25):
			return bucketDiscretionaryStable
		case volatility.LessThan(vol50):
			return bucketDiscretionaryElevated
		default:
			return bucketDiscretionaryRunaway
		}
	}
}

// renderCategoryReason produces the human-readable rationale for the
// matched rule. The wording is deterministic: the same inputs always
// render the same string.
func renderCategoryReason(bucket categoryBucket, category core.Category, average, volatility decimal.Decimal) string {
	name := category.Display()
	avg := average.StringFixed(2)
	vol := volatility.StringFixed(1)

	switch bucket {
	case bucketFixed:
		return fmt.Sprintf("%s is a fixed expense averaging %s per month. Added a minimal 5%% buffer.", name, avg)
	case bucketEssentialSteady:
		return fmt.Sprintf("%s is an essential expense with steady spending around %s per month (volatility %s%%). Added a 10%% buffer for minor fluctuations.", name, avg, vol)
	case bucketEssentialModerate:
		return fmt.Sprintf("%s is an essential expense with moderate variation (volatility %s%%). Recommended a 15%% buffer over the %s average.", name, vol, avg)
	case bucketEssentialErratic:
		return fmt.Sprintf("%s is an essential expense with highly irregular spending (volatility %s%%). Added a 20%% buffer over the %s average to absorb swings.", name, vol, avg)
	case bucketDiscretionaryStable:
		return fmt.Sprintf("%s spending is stable around %s per month (volatility %s%%). Added a small 5%% buffer.", name, avg, vol)
	case bucketDiscretionaryElevated:
		return fmt.Sprintf("%s spending varies noticeably (volatility %s%%). Held the limit at the %s historical average with no extra buffer.", name, vol, avg)
	default:
		return fmt.Sprintf("%s spending is highly irregular (volatility %s%%). Trimmed the limit 10%% below the %s average to encourage cutting back.", name, vol, avg)
	}
}

// PlanCategories converts each category's statistics into a recommended
// limit, risk level and explanation. Results are ordered by category so
// regeneration is byte-for-byte reproducible.
func PlanCategories(analysis core.SpendingAnalysis) []core.CategoryBudget {
	budgets := make([]core.CategoryBudget, 0, len(analysis.Categories))

	for category, stats := range analysis.Categories {
		bucket := classifyCategory(stats.ExpenseType, stats.Volatility)
		buffer := bufferByBucket[bucket]

		limit := stats.Average.Mul(decimal.NewFromInt(1).Add(buffer)).Round(2)
		average := stats.Average.Round(2)

		budgets = append(budgets, core.CategoryBudget{
			Category:         category,
			RecommendedLimit: limit,
			ActualAverage:    average,
			Variance:         limit.Sub(average),
			RiskLevel:        riskByBucket[bucket],
			Reason:           renderCategoryReason(bucket, category, stats.Average, stats.Volatility),
		})
	}

	sort.Slice(budgets, func(i, j int) bool {
		return budgets[i].Category < budgets[j].Category
	})

	return budgets
}

// TotalBudget sums the recommended limits of the category budgets.
func TotalBudget(budgets []core.CategoryBudget) decimal.Decimal {
	total := decimal.Zero
	for _, b := range budgets {
		total = total.Add(b.RecommendedLimit)
	}
	return total
}
