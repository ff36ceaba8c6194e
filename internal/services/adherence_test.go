package services

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

func TestScoreCategory(t *testing.T) {
	tests := []struct {
		name      string
		pctUsed   string
		wantScore string
		wantType  InsightType
	}{
		{"well under budget", "85", "100", InsightSuccess},
		{"exactly at ninety", "90", "100", InsightSuccess},
		{"slightly over ninety", "95", "80", InsightWarning},
		{"exactly at limit", "100", "80", InsightWarning},
		{"twenty percent over", "120", "40", InsightDanger},
		{"just over limit", "101", "59", InsightDanger},
		{"blowout floors at zero", "200", "0", InsightDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, insightType := scoreCategory(decimal.RequireFromString(tt.pctUsed))
			if !score.Equal(decimal.RequireFromString(tt.wantScore)) {
				t.Errorf("score = %s, want %s", score, tt.wantScore)
			}
			if insightType != tt.wantType {
				t.Errorf("type = %s, want %s", insightType, tt.wantType)
			}
		})
	}
}

func budget(category core.Category, limit string) core.CategoryBudget {
	return core.CategoryBudget{Category: category, RecommendedLimit: decimal.RequireFromString(limit)}
}

func TestScoreAdherence(t *testing.T) {
	d := decimal.RequireFromString

	t.Run("averages category scores", func(t *testing.T) {
		budgets := []core.CategoryBudget{
			budget(core.Food, "1000"),
			budget(core.Rent, "15000"),
		}
		actuals := map[core.Category]decimal.Decimal{
			core.Food: d("850"),   // 85% → 100
			core.Rent: d("15000"), // 100% → 80
		}

		report := ScoreAdherence(budgets, actuals)

		if !report.Score.Equal(d("90")) {
			t.Errorf("score = %s, want 90", report.Score)
		}
		if !report.OnTrack {
			t.Error("expected on_track at score 90")
		}
		if !report.TotalBudgeted.Equal(d("16000")) {
			t.Errorf("total budgeted = %s, want 16000", report.TotalBudgeted)
		}
		if !report.TotalSpent.Equal(d("15850")) {
			t.Errorf("total spent = %s, want 15850", report.TotalSpent)
		}
	})

	t.Run("unspent category counts as success", func(t *testing.T) {
		report := ScoreAdherence([]core.CategoryBudget{budget(core.Food, "1000")}, nil)
		if !report.Score.Equal(d("100")) {
			t.Errorf("score = %s, want 100 for zero spending", report.Score)
		}
	})

	t.Run("zero budget categories are skipped", func(t *testing.T) {
		budgets := []core.CategoryBudget{
			budget(core.Shopping, "0"),
			budget(core.Food, "1000"),
		}
		report := ScoreAdherence(budgets, map[core.Category]decimal.Decimal{core.Food: d("500")})
		if !report.Score.Equal(d("100")) {
			t.Errorf("score = %s, want 100", report.Score)
		}
		if len(report.Insights) != 1 {
			t.Errorf("insights = %d, want 1", len(report.Insights))
		}
	})

	t.Run("no scorable categories yields zero", func(t *testing.T) {
		report := ScoreAdherence(nil, nil)
		if !report.Score.IsZero() {
			t.Errorf("score = %s, want 0", report.Score)
		}
		if report.OnTrack {
			t.Error("empty report should not be on track")
		}
	})

	t.Run("danger insights surface first and cap at three", func(t *testing.T) {
		budgets := []core.CategoryBudget{
			budget(core.Food, "1000"),          // 85% success
			budget(core.Transport, "1000"),     // 95% warning
			budget(core.Shopping, "1000"),      // 150% danger
			budget(core.Entertainment, "1000"), // 120% danger
			budget(core.Bills, "1000"),         // 50% success
		}
		actuals := map[core.Category]decimal.Decimal{
			core.Food:          d("850"),
			core.Transport:     d("950"),
			core.Shopping:      d("1500"),
			core.Entertainment: d("1200"),
			core.Bills:         d("500"),
		}

		report := ScoreAdherence(budgets, actuals)

		if len(report.Insights) != 3 {
			t.Fatalf("insights = %d, want 3", len(report.Insights))
		}
		if report.Insights[0].Type != InsightDanger || report.Insights[1].Type != InsightDanger {
			t.Errorf("first two insights = %s, %s, want danger, danger",
				report.Insights[0].Type, report.Insights[1].Type)
		}
		if report.Insights[2].Type != InsightWarning {
			t.Errorf("third insight = %s, want warning", report.Insights[2].Type)
		}
		// Stable sort: shopping was budgeted before entertainment.
		if report.Insights[0].Category != core.Shopping {
			t.Errorf("first danger = %s, want shopping", report.Insights[0].Category)
		}
	})
}

func TestAdherenceMessage(t *testing.T) {
	tests := []struct {
		score string
		want  string
	}{
		{"95", "Excellent"},
		{"90", "Excellent"},
		{"75", "Good job"},
		{"70", "Good job"},
		{"60", "Caution"},
		{"50", "Caution"},
		{"30", "Alert"},
	}

	for _, tt := range tests {
		got := adherenceMessage(decimal.RequireFromString(tt.score))
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("adherenceMessage(%s) = %q, want prefix %q", tt.score, got, tt.want)
		}
	}
}

func TestRenderInsightWording(t *testing.T) {
	d := decimal.RequireFromString

	if got := renderInsight(InsightSuccess, core.Food, d("85")); !strings.Contains(got, "15% under budget") {
		t.Errorf("success insight = %q", got)
	}
	if got := renderInsight(InsightWarning, core.Transport, d("95")); !strings.Contains(got, "95% of budget used") {
		t.Errorf("warning insight = %q", got)
	}
	if got := renderInsight(InsightDanger, core.Shopping, d("120")); !strings.Contains(got, "20% over budget") {
		t.Errorf("danger insight = %q", got)
	}
}
