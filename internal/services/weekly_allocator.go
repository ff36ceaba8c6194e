package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

// AllocateWeeks splits the month's total budget and savings into
// calendar-aligned weekly chunks. Week N spans 7 days from the month
// start plus (N-1)*7, clipped to the month's last day; the spend is
// divided evenly, so a clipped final week still receives a full share.
func AllocateWeeks(month core.Month, totalBudget, totalSavings decimal.Decimal) []core.WeeklyBudget {
	numWeeks := (month.Days() + 6) / 7

	n := decimal.NewFromInt(int64(numWeeks))
	weeklySpending := totalBudget.Div(n).Round(2)
	weeklySavings := totalSavings.Div(n).Round(2)

	monthStart := month.Start()
	monthEnd := month.End()

	weeks := make([]core.WeeklyBudget, 0, numWeeks)
	for weekNum := 1; weekNum <= numWeeks; weekNum++ {
		weekStart := monthStart.AddDate(0, 0, (weekNum-1)*7)
		weekEnd := weekStart.AddDate(0, 0, 6)
		if weekEnd.After(monthEnd) {
			weekEnd = monthEnd
		}

		weeks = append(weeks, core.WeeklyBudget{
			WeekNumber:                weekNum,
			WeekStart:                 weekStart,
			WeekEnd:                   weekEnd,
			RecommendedWeeklySpending: weeklySpending,
			RecommendedWeeklySavings:  weeklySavings,
			Explanation:               renderWeekExplanation(weekNum, numWeeks, month, weeklySpending, weeklySavings),
		})
	}

	return weeks
}

func renderWeekExplanation(weekNum, numWeeks int, month core.Month, spending, savings decimal.Decimal) string {
	base := fmt.Sprintf("Week %d of %s: plan for %s in spending and %s set aside.",
		weekNum, month.Start().Format("January 2006"), spending.StringFixed(2), savings.StringFixed(2))

	switch weekNum {
	case 1:
		return base + " A strong start sets the tone for the month."
	case numWeeks:
		return base + " Final week: review where you stand and adjust before the month closes."
	default:
		return base
	}
}
