package services

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPlanSavings(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name       string
		income     string
		budget     string
		volatility string
		want       string
	}{
		// available 10000, vol < 20 → 70% of available
		{"low volatility takes seventy percent", "50000", "40000", "15", "7000.00"},
		// available 10000, vol in [20,40) → 50%
		{"moderate volatility takes half", "50000", "40000", "30", "5000.00"},
		// available 10000, vol >= 40 → 30%
		{"high volatility takes thirty percent", "50000", "40000", "55", "3000.00"},
		// 30% of 3000 = 900, floor 5% of 50000 = 2500, floor fits in 3000
		{"floor lifts small recommendation", "50000", "47000", "60", "2500.00"},
		// floor 2500 exceeds available 2000, keep 30% of 2000 = 600
		{"floor skipped when above available", "50000", "48000", "60", "600.00"},
		{"zero income yields nothing", "0", "40000", "10", "0.00"},
		{"negative income yields nothing", "-100", "40000", "10", "0.00"},
		{"budget equals income yields nothing", "50000", "50000", "10", "0.00"},
		{"budget above income yields nothing", "50000", "60000", "10", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanSavings(d(tt.income), d(tt.budget), d(tt.volatility))
			if plan.Amount.StringFixed(2) != tt.want {
				t.Errorf("amount = %s, want %s", plan.Amount.StringFixed(2), tt.want)
			}
			if plan.Reason == "" {
				t.Error("reason is empty")
			}
		})
	}
}

func TestPlanSavingsNeverExceedsAvailable(t *testing.T) {
	d := decimal.RequireFromString
	incomes := []string{"10000", "50000", "120000"}
	budgets := []string{"0", "9500", "45000", "119999"}
	vols := []string{"0", "19.99", "20", "39.99", "40", "85"}

	for _, income := range incomes {
		for _, budget := range budgets {
			for _, vol := range vols {
				plan := PlanSavings(d(income), d(budget), d(vol))
				available := d(income).Sub(d(budget))
				if available.IsNegative() {
					available = decimal.Zero
				}
				if plan.Amount.GreaterThan(available) {
					t.Errorf("PlanSavings(%s, %s, %s) = %s exceeds available %s",
						income, budget, vol, plan.Amount, available)
				}
				if plan.Amount.IsNegative() {
					t.Errorf("PlanSavings(%s, %s, %s) = %s is negative", income, budget, vol, plan.Amount)
				}
			}
		}
	}
}

func TestPlanSavingsReasonWording(t *testing.T) {
	d := decimal.RequireFromString

	t.Run("mentions volatility band", func(t *testing.T) {
		plan := PlanSavings(d("50000"), d("40000"), d("15"))
		if !strings.Contains(plan.Reason, "low expense volatility") {
			t.Errorf("reason %q missing low-volatility wording", plan.Reason)
		}
	})

	t.Run("strong bracket at fourteen percent is healthy", func(t *testing.T) {
		// 7000 on 50000 income is 14% → healthy bracket
		plan := PlanSavings(d("50000"), d("40000"), d("15"))
		if !strings.Contains(plan.Reason, "healthy savings goal") {
			t.Errorf("reason %q missing healthy wording", plan.Reason)
		}
	})

	t.Run("missing income explains itself", func(t *testing.T) {
		plan := PlanSavings(decimal.Zero, d("40000"), d("10"))
		if !strings.Contains(plan.Reason, "income is not set") {
			t.Errorf("reason %q missing income guidance", plan.Reason)
		}
	})

	t.Run("overspent budget explains itself", func(t *testing.T) {
		plan := PlanSavings(d("50000"), d("60000"), d("10"))
		if !strings.Contains(plan.Reason, "meets or exceeds") {
			t.Errorf("reason %q missing overspend wording", plan.Reason)
		}
	})
}
