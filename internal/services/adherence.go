package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

// InsightType classifies how a category is tracking against its budget.
type InsightType string

const (
	InsightSuccess InsightType = "success"
	InsightWarning InsightType = "warning"
	InsightDanger  InsightType = "danger"
)

// CategoryInsight is one category's adherence verdict.
type CategoryInsight struct {
	Category       core.Category   `json:"category"`
	Type           InsightType     `json:"type"`
	Message        string          `json:"message"`
	PercentageUsed decimal.Decimal `json:"percentage_used"`
}

// AdherenceReport is the 0-100 measure of how well realized spending
// matches the active recommendation.
type AdherenceReport struct {
	Score         decimal.Decimal   `json:"score"`
	Message       string            `json:"message"`
	Insights      []CategoryInsight `json:"category_insights"`
	TotalBudgeted decimal.Decimal   `json:"total_budgeted"`
	TotalSpent    decimal.Decimal   `json:"total_spent"`
	OnTrack       bool              `json:"on_track"`
}

const maxInsights = 3

var (
	score100     = decimal.NewFromInt(100)
	score80      = decimal.NewFromInt(80)
	dangerBase   = decimal.NewFromInt(60)
	threshold90  = decimal.NewFromInt(90)
	threshold70  = decimal.NewFromInt(70)
	threshold50  = decimal.NewFromInt(50)
	insightOrder = map[InsightType]int{InsightDanger: 0, InsightWarning: 1, InsightSuccess: 2}
)

// scoreCategory returns the 0-100 score and insight classification for
// one category given its percentage of budget used.
func scoreCategory(percentageUsed decimal.Decimal) (decimal.Decimal, InsightType) {
	switch {
	case percentageUsed.LessThanOrEqual(threshold90):
		return score100, InsightSuccess
	case percentageUsed.LessThanOrEqual(hundred):
		return score80, InsightWarning
	default:
		overage := percentageUsed.Sub(hundred)
		score := dangerBase.Sub(overage)
		if score.IsNegative() {
			score = decimal.Zero
		}
		return score, InsightDanger
	}
}

func renderInsight(insightType InsightType, category core.Category, percentageUsed decimal.Decimal) string {
	name := category.Display()
	switch insightType {
	case InsightSuccess:
		return fmt.Sprintf("Great job on %s! You're %s%% under budget.", name, hundred.Sub(percentageUsed).StringFixed(0))
	case InsightWarning:
		return fmt.Sprintf("%s: %s%% of budget used. Stay mindful.", name, percentageUsed.StringFixed(0))
	default:
		return fmt.Sprintf("%s is %s%% over budget.", name, percentageUsed.Sub(hundred).StringFixed(0))
	}
}

// ScoreAdherence compares the recommendation's category budgets against
// realized spending and produces the adherence report. Categories with
// a zero budget are skipped; with no scorable categories the overall
// score is zero.
func ScoreAdherence(budgets []core.CategoryBudget, actualByCategory map[core.Category]decimal.Decimal) AdherenceReport {
	report := AdherenceReport{}

	scoreSum := decimal.Zero
	scored := 0
	var insights []CategoryInsight

	for _, budget := range budgets {
		report.TotalBudgeted = report.TotalBudgeted.Add(budget.RecommendedLimit)

		if !budget.RecommendedLimit.IsPositive() {
			continue
		}

		actual := actualByCategory[budget.Category]
		percentageUsed := actual.Div(budget.RecommendedLimit).Mul(hundred)

		score, insightType := scoreCategory(percentageUsed)
		scoreSum = scoreSum.Add(score)
		scored++

		insights = append(insights, CategoryInsight{
			Category:       budget.Category,
			Type:           insightType,
			Message:        renderInsight(insightType, budget.Category, percentageUsed),
			PercentageUsed: percentageUsed.Round(1),
		})
	}

	for _, actual := range actualByCategory {
		report.TotalSpent = report.TotalSpent.Add(actual)
	}

	if scored > 0 {
		report.Score = scoreSum.Div(decimal.NewFromInt(int64(scored))).Round(1)
	} else {
		report.Score = decimal.Zero
	}

	// Danger first, then warning, then success; stable so category
	// order survives within each class.
	sort.SliceStable(insights, func(i, j int) bool {
		return insightOrder[insights[i].Type] < insightOrder[insights[j].Type]
	})
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	report.Insights = insights

	report.Message = adherenceMessage(report.Score)
	report.OnTrack = report.Score.GreaterThanOrEqual(threshold70)

	return report
}

func adherenceMessage(score decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(threshold90):
		return "Excellent! You're doing great with your budget."
	case score.GreaterThanOrEqual(threshold70):
		return "Good job! Minor adjustments recommended."
	case score.GreaterThanOrEqual(threshold50):
		return "Caution: several categories need attention."
	default:
		return "Alert: significant budget overruns detected."
	}
}
