package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

// fakeLedger implements TransactionReader over an in-memory slice.
type fakeLedger struct {
	txs []core.Transaction
}

func (f *fakeLedger) CountInWindow(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	return len(f.txs), nil
}

func (f *fakeLedger) ListForAnalysis(ctx context.Context, userID int64, from, to time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.txs {
		if !t.IsAnomaly {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeLedger) SpendingByCategory(ctx context.Context, userID int64, from, to time.Time, includeAnomalies bool) (map[core.Category]decimal.Decimal, error) {
	totals := make(map[core.Category]decimal.Decimal)
	for _, t := range f.txs {
		if t.IsAnomaly && !includeAnomalies {
			continue
		}
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}
	return totals, nil
}

type fakeProfiles struct {
	profile      core.FinancialProfile
	healthWrites int
}

func (f *fakeProfiles) GetOrCreateProfile(ctx context.Context, userID int64) (core.FinancialProfile, error) {
	return f.profile, nil
}

func (f *fakeProfiles) UpdateHealthScores(ctx context.Context, userID int64, volatilityScore, savingsConfidence float64) error {
	f.healthWrites++
	f.profile.ExpenseVolatilityScore = volatilityScore
	f.profile.SavingsConfidenceIndicator = savingsConfidence
	return nil
}

type fakeRecStore struct {
	recs    map[string]core.BudgetRecommendation
	cats    map[int64][]core.CategoryBudget
	weeks   map[int64][]core.WeeklyBudget
	nextID  int64
	upserts int
}

func newFakeRecStore() *fakeRecStore {
	return &fakeRecStore{
		recs:  make(map[string]core.BudgetRecommendation),
		cats:  make(map[int64][]core.CategoryBudget),
		weeks: make(map[int64][]core.WeeklyBudget),
	}
}

func recKey(userID int64, month core.Month) string {
	return month.String() + ":" + strconv.FormatInt(userID, 10)
}

func (f *fakeRecStore) UpsertRecommendation(ctx context.Context, rec core.BudgetRecommendation, categories []core.CategoryBudget, weeks []core.WeeklyBudget) (core.BudgetRecommendation, error) {
	f.upserts++
	key := recKey(rec.UserID, rec.Month)
	if existing, ok := f.recs[key]; ok {
		rec.ID = existing.ID
	} else {
		f.nextID++
		rec.ID = f.nextID
	}
	f.recs[key] = rec
	f.cats[rec.ID] = categories
	f.weeks[rec.ID] = weeks
	return rec, nil
}

func (f *fakeRecStore) GetActiveRecommendation(ctx context.Context, userID int64, month core.Month) (*core.BudgetRecommendation, error) {
	rec, ok := f.recs[recKey(userID, month)]
	if !ok || !rec.IsActive {
		return nil, core.ErrRecommendationNotFound
	}
	return &rec, nil
}

func (f *fakeRecStore) CategoryBudgets(ctx context.Context, recommendationID int64) ([]core.CategoryBudget, error) {
	return f.cats[recommendationID], nil
}

func (f *fakeRecStore) WeeklyBudgets(ctx context.Context, recommendationID int64) ([]core.WeeklyBudget, error) {
	return f.weeks[recommendationID], nil
}

type fakePublisher struct {
	published []int64
}

func (f *fakePublisher) PublishRecommendationExport(ctx context.Context, recommendationID, userID int64, month string) error {
	f.published = append(f.published, recommendationID)
	return nil
}

func ledgerWith(n int, category core.Category, amount string, expenseType core.ExpenseType) *fakeLedger {
	ledger := &fakeLedger{}
	for i := 0; i < n; i++ {
		ledger.txs = append(ledger.txs, core.Transaction{
			UserID:      1,
			Amount:      decimal.RequireFromString(amount),
			Date:        time.Date(2025, 3, 1+i%28, 0, 0, 0, 0, time.UTC),
			Merchant:    "m",
			Category:    category,
			ExpenseType: expenseType,
		})
	}
	return ledger
}

func newTestService(ledger *fakeLedger, profiles *fakeProfiles, store *fakeRecStore, pub *fakePublisher, clock func() time.Time) *BudgetService {
	var publisher ExportPublisher
	if pub != nil {
		publisher = pub
	}
	return NewBudgetService(ledger, profiles, store, publisher, BudgetServiceOptions{
		MinTransactions: 30,
		LookbackMonths:  3,
		Clock:           clock,
	})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var march15 = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func TestGenerateRecommendation(t *testing.T) {
	ledger := ledgerWith(35, core.Food, "250.00", core.VariableEssential)
	profiles := &fakeProfiles{profile: core.FinancialProfile{UserID: 1, MonthlyIncome: decimal.NewFromInt(50000)}}
	store := newFakeRecStore()
	pub := &fakePublisher{}
	svc := newTestService(ledger, profiles, store, pub, fixedClock(march15))

	rec, err := svc.GenerateRecommendation(context.Background(), 1, core.Month{})
	if err != nil {
		t.Fatalf("GenerateRecommendation: %v", err)
	}

	if rec.Month != (core.Month{Year: 2025, Month: time.March}) {
		t.Errorf("month = %s, want 2025-03", rec.Month)
	}
	if !rec.IsActive {
		t.Error("recommendation not active")
	}
	if rec.ExportStatus != core.ExportPending {
		t.Errorf("export status = %s, want pending", rec.ExportStatus)
	}
	// Food: identical amounts, zero volatility, essential → 10% buffer.
	if got := rec.TotalRecommendedBudget.StringFixed(2); got != "275.00" {
		t.Errorf("total budget = %s, want 275.00", got)
	}
	if rec.RecommendedSavings.IsZero() {
		t.Error("expected a savings recommendation with income set")
	}
	if len(store.cats[rec.ID]) != 1 {
		t.Errorf("persisted %d category budgets, want 1", len(store.cats[rec.ID]))
	}
	if len(store.weeks[rec.ID]) != 5 {
		t.Errorf("persisted %d weekly budgets, want 5 for March", len(store.weeks[rec.ID]))
	}
	if len(pub.published) != 1 || pub.published[0] != rec.ID {
		t.Errorf("published = %v, want [%d]", pub.published, rec.ID)
	}
	if profiles.healthWrites != 1 {
		t.Errorf("health score writes = %d, want 1", profiles.healthWrites)
	}
}

func TestGenerateRecommendationInsufficientData(t *testing.T) {
	ledger := ledgerWith(12, core.Food, "250.00", core.VariableEssential)
	profiles := &fakeProfiles{profile: core.FinancialProfile{UserID: 1, MonthlyIncome: decimal.NewFromInt(50000)}}
	store := newFakeRecStore()
	svc := newTestService(ledger, profiles, store, nil, fixedClock(march15))

	_, err := svc.GenerateRecommendation(context.Background(), 1, core.Month{})
	if !core.IsInsufficientData(err) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if store.upserts != 0 {
		t.Errorf("upserts = %d, want 0: nothing may persist on failure", store.upserts)
	}
	if profiles.healthWrites != 0 {
		t.Errorf("health writes = %d, want 0 on failure", profiles.healthWrites)
	}
}

func TestGenerateRecommendationNegativeIncome(t *testing.T) {
	ledger := ledgerWith(35, core.Food, "250.00", core.VariableEssential)
	profiles := &fakeProfiles{profile: core.FinancialProfile{UserID: 1, MonthlyIncome: decimal.NewFromInt(-1)}}
	svc := newTestService(ledger, profiles, newFakeRecStore(), nil, fixedClock(march15))

	_, err := svc.GenerateRecommendation(context.Background(), 1, core.Month{})
	if !core.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerateRecommendationIdempotent(t *testing.T) {
	ledger := ledgerWith(35, core.Food, "250.00", core.VariableEssential)
	profiles := &fakeProfiles{profile: core.FinancialProfile{UserID: 1, MonthlyIncome: decimal.NewFromInt(50000)}}
	store := newFakeRecStore()

	now := march15
	clock := func() time.Time { return now }
	svc := newTestService(ledger, profiles, store, nil, clock)

	first, err := svc.GenerateRecommendation(context.Background(), 1, core.Month{})
	if err != nil {
		t.Fatalf("first generation: %v", err)
	}

	// Second call within the TTL is served from cache without touching
	// the store.
	second, err := svc.GenerateRecommendation(context.Background(), 1, core.Month{})
	if err != nil {
		t.Fatalf("second generation: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1 while cached", store.upserts)
	}
	if second.ID != first.ID {
		t.Errorf("cached ID = %d, want %d", second.ID, first.ID)
	}

	// After the TTL expires the store is hit again but the same row is
	// updated in place, keeping its identity.
	now = now.Add(2 * time.Hour)
	third, err := svc.GenerateRecommendation(context.Background(), 1, core.Month{})
	if err != nil {
		t.Fatalf("third generation: %v", err)
	}
	if store.upserts != 2 {
		t.Errorf("upserts = %d, want 2 after expiry", store.upserts)
	}
	if third.ID != first.ID {
		t.Errorf("regenerated ID = %d, want %d (upsert, not insert)", third.ID, first.ID)
	}
	if !third.TotalRecommendedBudget.Equal(first.TotalRecommendedBudget) {
		t.Errorf("regenerated total = %s, want %s", third.TotalRecommendedBudget, first.TotalRecommendedBudget)
	}
	if len(store.recs) != 1 {
		t.Errorf("stored recommendations = %d, want 1", len(store.recs))
	}
}

func TestGenerateRecommendationExplicitMonth(t *testing.T) {
	ledger := ledgerWith(35, core.Food, "250.00", core.VariableEssential)
	profiles := &fakeProfiles{profile: core.FinancialProfile{UserID: 1, MonthlyIncome: decimal.NewFromInt(50000)}}
	svc := newTestService(ledger, profiles, newFakeRecStore(), nil, fixedClock(march15))

	target := core.Month{Year: 2025, Month: time.April}
	rec, err := svc.GenerateRecommendation(context.Background(), 1, target)
	if err != nil {
		t.Fatalf("GenerateRecommendation: %v", err)
	}
	if rec.Month != target {
		t.Errorf("month = %s, want 2025-04", rec.Month)
	}
}

func TestCompareToActual(t *testing.T) {
	ledger := &fakeLedger{}
	// 800 clean + 400 anomalous food spending: comparison includes both.
	ledger.txs = append(ledger.txs,
		core.Transaction{UserID: 1, Amount: decimal.RequireFromString("800"), Category: core.Food},
		core.Transaction{UserID: 1, Amount: decimal.RequireFromString("400"), Category: core.Food, IsAnomaly: true},
	)
	store := newFakeRecStore()
	store.cats[7] = []core.CategoryBudget{
		{RecommendationID: 7, Category: core.Food, RecommendedLimit: decimal.RequireFromString("1000")},
	}
	svc := newTestService(ledger, &fakeProfiles{}, store, nil, fixedClock(march15))

	rec := core.BudgetRecommendation{ID: 7, UserID: 1, Month: core.Month{Year: 2025, Month: time.March}}
	comparisons, err := svc.CompareToActual(context.Background(), rec)
	if err != nil {
		t.Fatalf("CompareToActual: %v", err)
	}
	if len(comparisons) != 1 {
		t.Fatalf("comparisons = %d, want 1", len(comparisons))
	}

	c := comparisons[0]
	if !c.Actual.Equal(decimal.RequireFromString("1200")) {
		t.Errorf("actual = %s, want 1200 (anomalies included)", c.Actual)
	}
	if c.Status != "over" {
		t.Errorf("status = %s, want over", c.Status)
	}
	if !c.Difference.Equal(decimal.RequireFromString("-200")) {
		t.Errorf("difference = %s, want -200", c.Difference)
	}
	if c.PercentageUsed.StringFixed(1) != "120.0" {
		t.Errorf("percentage used = %s, want 120.0", c.PercentageUsed.StringFixed(1))
	}
}

func TestAdherence(t *testing.T) {
	t.Run("no active recommendation yields nil", func(t *testing.T) {
		svc := newTestService(&fakeLedger{}, &fakeProfiles{}, newFakeRecStore(), nil, fixedClock(march15))
		report, err := svc.Adherence(context.Background(), 1)
		if err != nil {
			t.Fatalf("Adherence: %v", err)
		}
		if report != nil {
			t.Fatalf("report = %+v, want nil", report)
		}
	})

	t.Run("scores month to date against active recommendation", func(t *testing.T) {
		ledger := &fakeLedger{}
		ledger.txs = append(ledger.txs,
			core.Transaction{UserID: 1, Amount: decimal.RequireFromString("850"), Category: core.Food},
			// Anomalous spending is excluded from adherence scoring.
			core.Transaction{UserID: 1, Amount: decimal.RequireFromString("5000"), Category: core.Food, IsAnomaly: true},
		)
		store := newFakeRecStore()
		month := core.Month{Year: 2025, Month: time.March}
		store.recs[recKey(1, month)] = core.BudgetRecommendation{ID: 3, UserID: 1, Month: month, IsActive: true}
		store.cats[3] = []core.CategoryBudget{
			{RecommendationID: 3, Category: core.Food, RecommendedLimit: decimal.RequireFromString("1000")},
		}
		svc := newTestService(ledger, &fakeProfiles{}, store, nil, fixedClock(march15))

		report, err := svc.Adherence(context.Background(), 1)
		if err != nil {
			t.Fatalf("Adherence: %v", err)
		}
		if report == nil {
			t.Fatal("report is nil")
		}
		if !report.Score.Equal(decimal.NewFromInt(100)) {
			t.Errorf("score = %s, want 100 (85%% used)", report.Score)
		}
		if !report.OnTrack {
			t.Error("expected on_track")
		}
		if len(report.Insights) != 1 || report.Insights[0].Type != InsightSuccess {
			t.Errorf("insights = %+v, want one success", report.Insights)
		}
	})
}

func TestCurrentRecommendation(t *testing.T) {
	ledger := ledgerWith(35, core.Food, "250.00", core.VariableEssential)
	store := newFakeRecStore()
	svc := newTestService(ledger, &fakeProfiles{}, store, nil, fixedClock(march15))

	if _, err := svc.CurrentRecommendation(context.Background(), 1); !errors.Is(err, core.ErrRecommendationNotFound) {
		t.Fatalf("before generation: err = %v, want ErrRecommendationNotFound", err)
	}

	generated, err := svc.GenerateRecommendation(context.Background(), 1, core.Month{})
	if err != nil {
		t.Fatalf("GenerateRecommendation: %v", err)
	}

	detail, err := svc.CurrentRecommendation(context.Background(), 1)
	if err != nil {
		t.Fatalf("CurrentRecommendation: %v", err)
	}
	if detail.Recommendation.ID != generated.ID {
		t.Errorf("recommendation ID = %d, want %d", detail.Recommendation.ID, generated.ID)
	}
	if len(detail.Categories) != 1 || detail.Categories[0].Category != core.Food {
		t.Errorf("categories = %+v, want one food entry", detail.Categories)
	}
	if len(detail.Weeks) != 5 {
		t.Errorf("weeks = %d, want 5 for March", len(detail.Weeks))
	}
}
