package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Food          Category = "food"
	Transport     Category = "transport"
	Entertainment Category = "entertainment"
	Shopping      Category = "shopping"
	Bills         Category = "bills"
	Rent          Category = "rent"
	EMI           Category = "emi"
	Healthcare    Category = "healthcare"
	Education     Category = "education"
	Subscriptions Category = "subscriptions"
	Other         Category = "other"
)

const (
	Fixed             ExpenseType = "fixed"
	VariableEssential ExpenseType = "variable_essential"
	Discretionary     ExpenseType = "discretionary"
)

const (
	SourceUPI    Source = "upi"
	SourceBank   Source = "bank"
	SourceCard   Source = "card"
	SourceCash   Source = "cash"
	SourceManual Source = "manual"
)

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const (
	ExportPending ExportStatus = "pending"
	ExportDone    ExportStatus = "exported"
	ExportFailed  ExportStatus = "error"
)

type (
	Category     string
	ExpenseType  string
	Source       string
	RiskLevel    string
	ExportStatus string

	// Transaction is a single dated spending record owned by a user.
	// Anomalous transactions stay in the ledger but are excluded from
	// averaging so one-off large expenses don't skew recommendations.
	Transaction struct {
		ID          int64
		UserID      int64
		Amount      decimal.Decimal
		Date        time.Time
		Merchant    string
		Category    Category
		ExpenseType ExpenseType // empty means unclassified
		Source      Source
		Description string
		IsAnomaly   bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// FinancialProfile holds one user's income and derived health scores.
	// Created lazily on first analysis; scores are mutated only by the
	// engine's score-update step.
	FinancialProfile struct {
		UserID                     int64
		MonthlyIncome              decimal.Decimal
		IncomeStabilityScore       float64
		ExpenseVolatilityScore     float64
		SavingsConfidenceIndicator float64
		CreatedAt                  time.Time
		UpdatedAt                  time.Time
	}

	// BudgetRecommendation is the persisted plan for one (user, month).
	BudgetRecommendation struct {
		ID                     int64
		UserID                 int64
		Month                  Month
		RecommendedSavings     decimal.Decimal
		SavingsReason          string
		TotalRecommendedBudget decimal.Decimal
		IsActive               bool
		GeneratedAt            time.Time
		ExportStatus           ExportStatus
	}

	// CategoryBudget is one category's slice of a recommendation.
	CategoryBudget struct {
		ID               int64
		RecommendationID int64
		Category         Category
		RecommendedLimit decimal.Decimal
		ActualAverage    decimal.Decimal
		Variance         decimal.Decimal // limit minus average, may be negative
		RiskLevel        RiskLevel
		Reason           string
	}

	// WeeklyBudget is a calendar-aligned weekly chunk of a recommendation.
	WeeklyBudget struct {
		ID                        int64
		RecommendationID          int64
		WeekNumber                int
		WeekStart                 time.Time
		WeekEnd                   time.Time
		RecommendedWeeklySpending decimal.Decimal
		RecommendedWeeklySavings  decimal.Decimal
		Explanation               string
	}
)

// Categories lists every known spending category in stable order.
func Categories() []Category {
	return []Category{
		Food, Transport, Entertainment, Shopping, Bills, Rent,
		EMI, Healthcare, Education, Subscriptions, Other,
	}
}

func (c Category) Valid() bool {
	switch c {
	case Food, Transport, Entertainment, Shopping, Bills, Rent,
		EMI, Healthcare, Education, Subscriptions, Other:
		return true
	}
	return false
}

// Display returns the human-readable category name used in generated
// explanations, e.g. "bills" -> "Bills".
func (c Category) Display() string {
	name := strings.ReplaceAll(string(c), "_", " ")
	if name == "" {
		return name
	}
	if c == EMI {
		return "EMI"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (e ExpenseType) Valid() bool {
	switch e {
	case Fixed, VariableEssential, Discretionary:
		return true
	}
	return false
}

func (s Source) Valid() bool {
	switch s {
	case SourceUPI, SourceBank, SourceCard, SourceCash, SourceManual:
		return true
	}
	return false
}

// minAmount is the smallest accepted transaction amount (0.01).
var minAmount = decimal.New(1, -2)

func (t Transaction) Validate() error {
	if t.Amount.LessThan(minAmount) {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Merchant) == "" {
		return ErrEmptyMerchant
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if t.ExpenseType != "" && !t.ExpenseType.Valid() {
		return ErrInvalidExpenseType
	}
	if t.Source != "" && !t.Source.Valid() {
		return ErrInvalidSource
	}
	return nil
}
