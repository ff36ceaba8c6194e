package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SavingsPlan is the savings side of a recommendation.
type SavingsPlan struct {
	Amount decimal.Decimal
	Reason string
}

// volatilityBand buckets the aggregate volatility for savings purposes.
type volatilityBand int

const (
	volatilityLow volatilityBand = iota
	volatilityModerate
	volatilityHigh
)

// savingsBracket buckets the recommendation as a percent of income.
type savingsBracket int

const (
	bracketNone savingsBracket = iota
	bracketMinimal
	bracketHealthy
	bracketStrong
	bracketExceptional
)

var (
	fivePercent = decimal.RequireFromString("0.05")
	pct5        = decimal.NewFromInt(5)
	pct15       = decimal.NewFromInt(15)
	pct25       = decimal.NewFromInt(25)

	savingsShareByBand = map[volatilityBand]decimal.Decimal{
		volatilityLow:      decimal.RequireFromString("0.70"),
		volatilityModerate: decimal.RequireFromString("0.50"),
		volatilityHigh:     decimal.RequireFromString("0.30"),
	}
)

func classifyVolatility(volatility decimal.Decimal) volatilityBand {
	switch {
	case volatility.LessThan(vol20):
		return volatilityLow
	case volatility.LessThan(vol40):
		return volatilityModerate
	default:
		return volatilityHigh
	}
}

func classifySavings(percentOfIncome decimal.Decimal) savingsBracket {
	switch {
	case percentOfIncome.LessThan(pct5):
		return bracketMinimal
	case percentOfIncome.LessThan(pct15):
		return bracketHealthy
	case percentOfIncome.LessThan(pct25):
		return bracketStrong
	default:
		return bracketExceptional
	}
}

// PlanSavings computes the recommended monthly savings from income, the
// total recommended budget and the aggregate volatility.
//
// The share of available income saved shrinks as volatility grows; the
// result is raised to 5% of income when that floor still fits inside
// what is available. Savings never exceed income minus budget and are
// never negative.
func PlanSavings(income, totalBudget, volatility decimal.Decimal) SavingsPlan {
	if !income.IsPositive() {
		return SavingsPlan{
			Amount: decimal.Zero.Round(2),
			Reason: "No savings recommended: monthly income is not set. Update your financial profile to unlock a savings plan.",
		}
	}

	available := income.Sub(totalBudget)
	if !available.IsPositive() {
		return SavingsPlan{
			Amount: decimal.Zero.Round(2),
			Reason: fmt.Sprintf("Your recommended budget of %s meets or exceeds your monthly income of %s. No savings buffer is available until spending comes down.",
				totalBudget.StringFixed(2), income.StringFixed(2)),
		}
	}

	band := classifyVolatility(volatility)
	amount := available.Mul(savingsShareByBand[band])

	// Raise to the 5%-of-income floor, but never past what is available.
	floor := income.Mul(fivePercent)
	if floor.LessThanOrEqual(available) && amount.LessThan(floor) {
		amount = floor
	}
	amount = amount.Round(2)

	percentOfIncome := amount.Div(income).Mul(hundred)
	reason := renderSavingsReason(classifySavings(percentOfIncome), band, amount, percentOfIncome, volatility)

	return SavingsPlan{Amount: amount, Reason: reason}
}

func renderSavingsReason(bracket savingsBracket, band volatilityBand, amount, percentOfIncome, volatility decimal.Decimal) string {
	amt := amount.StringFixed(2)
	pct := percentOfIncome.StringFixed(1)
	vol := volatility.StringFixed(1)

	var scale string
	switch bracket {
	case bracketMinimal:
		scale = fmt.Sprintf("A modest savings goal of %s (%s%% of income) keeps the habit alive while budgets stay tight.", amt, pct)
	case bracketHealthy:
		scale = fmt.Sprintf("A healthy savings goal of %s (%s%% of income) fits comfortably inside your plan.", amt, pct)
	case bracketStrong:
		scale = fmt.Sprintf("A strong savings goal of %s (%s%% of income) puts you well ahead of plan.", amt, pct)
	default:
		scale = fmt.Sprintf("An exceptional savings goal of %s (%s%% of income) reflects excellent financial discipline.", amt, pct)
	}

	switch band {
	case volatilityLow:
		return scale + fmt.Sprintf(" Your low expense volatility (%s%%) makes this achievable.", vol)
	case volatilityModerate:
		return scale + fmt.Sprintf(" Moderate expense volatility (%s%%) calls for keeping some buffer on hand.", vol)
	default:
		return scale + fmt.Sprintf(" High spending volatility (%s%%) suggests focusing on stabilizing expenses first.", vol)
	}
}
