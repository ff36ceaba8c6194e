package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"

	_ "modernc.org/sqlite"
)

// Lazy-profile defaults: first-time users get a plausible income and
// high stability until they declare real numbers.
var DefaultMonthlyIncome = decimal.RequireFromString("50000.00")

const defaultIncomeStability = 85.0

// SQLiteRepository persists transactions, profiles and recommendations.
// Money columns hold decimal strings so amounts round-trip exactly.
type SQLiteRepository struct {
	db            *sql.DB
	defaultIncome decimal.Decimal
}

// NewSQLiteRepository opens the database and runs migrations.
// defaultIncome seeds lazily created profiles; zero or negative falls
// back to DefaultMonthlyIncome.
func NewSQLiteRepository(dbPath string, defaultIncome decimal.Decimal) (*SQLiteRepository, error) {
	if !defaultIncome.IsPositive() {
		defaultIncome = DefaultMonthlyIncome
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, defaultIncome: defaultIncome}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateTransaction stores a validated transaction and returns it with
// its assigned ID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, amount, date, merchant, category, expense_type, source, description, is_anomaly, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Amount.String(), formatTime(t.Date), t.Merchant,
		string(t.Category), string(t.ExpenseType), string(t.Source),
		t.Description, t.IsAnomaly, formatTime(now), formatTime(now))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"user_id", t.UserID,
		"amount", t.Amount.StringFixed(2),
		"category", string(t.Category))

	return t, nil
}

// CountInWindow implements services.TransactionReader.
func (r *SQLiteRepository) CountInWindow(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?`,
		userID, formatTime(from), formatTime(to)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

// ListForAnalysis implements services.TransactionReader. Anomalous
// rows are filtered out in SQL.
func (r *SQLiteRepository) ListForAnalysis(ctx context.Context, userID int64, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, date, merchant, category, expense_type, source, description, is_anomaly
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ? AND is_anomaly = 0
		ORDER BY date`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var amount, date string
		if err := rows.Scan(&t.ID, &t.UserID, &amount, &date, &t.Merchant,
			&t.Category, &t.ExpenseType, &t.Source, &t.Description, &t.IsAnomaly); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		if t.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// SpendingByCategory implements services.TransactionReader. Summation
// happens in Go so decimal amounts never pass through SQLite floats.
func (r *SQLiteRepository) SpendingByCategory(ctx context.Context, userID int64, from, to time.Time, includeAnomalies bool) (map[core.Category]decimal.Decimal, error) {
	query := `
		SELECT category, amount FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?`
	if !includeAnomalies {
		query += ` AND is_anomaly = 0`
	}

	rows, err := r.db.QueryContext(ctx, query, userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("query spending: %w", err)
	}
	defer rows.Close()

	totals := make(map[core.Category]decimal.Decimal)
	for rows.Next() {
		var category core.Category
		var amount string
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("scan spending row: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		totals[category] = totals[category].Add(d)
	}
	return totals, rows.Err()
}

// GetOrCreateProfile implements services.ProfileStore. A missing
// profile is created with zero income rather than reported as an error.
func (r *SQLiteRepository) GetOrCreateProfile(ctx context.Context, userID int64) (core.FinancialProfile, error) {
	profile := core.FinancialProfile{UserID: userID}
	var income string

	err := r.db.QueryRowContext(ctx, `
		SELECT monthly_income, income_stability_score, expense_volatility_score, savings_confidence_indicator
		FROM financial_profiles WHERE user_id = ?`, userID).
		Scan(&income, &profile.IncomeStabilityScore, &profile.ExpenseVolatilityScore, &profile.SavingsConfidenceIndicator)
	if errors.Is(err, sql.ErrNoRows) {
		now := formatTime(time.Now())
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO financial_profiles (user_id, monthly_income, income_stability_score, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			userID, r.defaultIncome.String(), defaultIncomeStability, now, now); err != nil {
			return core.FinancialProfile{}, fmt.Errorf("create profile: %w", err)
		}
		slog.InfoContext(ctx, "Financial profile created",
			"user_id", userID, "monthly_income", r.defaultIncome.StringFixed(2))
		profile.MonthlyIncome = r.defaultIncome
		profile.IncomeStabilityScore = defaultIncomeStability
		return profile, nil
	}
	if err != nil {
		return core.FinancialProfile{}, fmt.Errorf("load profile: %w", err)
	}

	if profile.MonthlyIncome, err = decimal.NewFromString(income); err != nil {
		return core.FinancialProfile{}, fmt.Errorf("parse monthly income %q: %w", income, err)
	}
	return profile, nil
}

// SetMonthlyIncome updates the user's declared income, creating the
// profile when absent.
func (r *SQLiteRepository) SetMonthlyIncome(ctx context.Context, userID int64, income decimal.Decimal) error {
	if _, err := r.GetOrCreateProfile(ctx, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE financial_profiles SET monthly_income = ?, updated_at = ? WHERE user_id = ?`,
		income.String(), formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("update monthly income: %w", err)
	}
	return nil
}

// UpdateHealthScores implements services.ProfileStore.
func (r *SQLiteRepository) UpdateHealthScores(ctx context.Context, userID int64, volatilityScore, savingsConfidence float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE financial_profiles
		SET expense_volatility_score = ?, savings_confidence_indicator = ?, updated_at = ?
		WHERE user_id = ?`,
		volatilityScore, savingsConfidence, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("update health scores: %w", err)
	}
	return nil
}

// UpsertRecommendation implements services.RecommendationStore. The
// parent row is keyed on (user_id, month); children are replaced
// wholesale. Everything runs in one transaction so a failure leaves
// the previous recommendation intact.
func (r *SQLiteRepository) UpsertRecommendation(ctx context.Context, rec core.BudgetRecommendation, categories []core.CategoryBudget, weeks []core.WeeklyBudget) (core.BudgetRecommendation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.BudgetRecommendation{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var recID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM budget_recommendations WHERE user_id = ? AND month = ?`,
		rec.UserID, rec.Month.String()).Scan(&recID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO budget_recommendations (user_id, month, recommended_savings, savings_reason, total_recommended_budget, is_active, generated_at, export_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.UserID, rec.Month.String(), rec.RecommendedSavings.String(),
			rec.SavingsReason, rec.TotalRecommendedBudget.String(),
			rec.IsActive, formatTime(rec.GeneratedAt), string(rec.ExportStatus))
		if err != nil {
			return core.BudgetRecommendation{}, fmt.Errorf("insert recommendation: %w", err)
		}
		if recID, err = res.LastInsertId(); err != nil {
			return core.BudgetRecommendation{}, fmt.Errorf("recommendation id: %w", err)
		}
	case err != nil:
		return core.BudgetRecommendation{}, fmt.Errorf("find recommendation: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE budget_recommendations
			SET recommended_savings = ?, savings_reason = ?, total_recommended_budget = ?, is_active = ?, generated_at = ?, export_status = ?
			WHERE id = ?`,
			rec.RecommendedSavings.String(), rec.SavingsReason,
			rec.TotalRecommendedBudget.String(), rec.IsActive,
			formatTime(rec.GeneratedAt), string(rec.ExportStatus), recID)
		if err != nil {
			return core.BudgetRecommendation{}, fmt.Errorf("update recommendation: %w", err)
		}
		for _, table := range []string{"category_budgets", "weekly_budgets"} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE recommendation_id = ?", table), recID); err != nil {
				return core.BudgetRecommendation{}, fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	for _, c := range categories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO category_budgets (recommendation_id, category, recommended_limit, actual_average, variance, risk_level, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recID, string(c.Category), c.RecommendedLimit.String(),
			c.ActualAverage.String(), c.Variance.String(),
			string(c.RiskLevel), c.Reason)
		if err != nil {
			return core.BudgetRecommendation{}, fmt.Errorf("insert category budget %s: %w", c.Category, err)
		}
	}

	for _, w := range weeks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO weekly_budgets (recommendation_id, week_number, week_start, week_end, recommended_weekly_spending, recommended_weekly_savings, explanation)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recID, w.WeekNumber, formatTime(w.WeekStart), formatTime(w.WeekEnd),
			w.RecommendedWeeklySpending.String(), w.RecommendedWeeklySavings.String(),
			w.Explanation)
		if err != nil {
			return core.BudgetRecommendation{}, fmt.Errorf("insert weekly budget %d: %w", w.WeekNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.BudgetRecommendation{}, fmt.Errorf("commit recommendation: %w", err)
	}

	rec.ID = recID
	slog.InfoContext(ctx, "Recommendation persisted",
		"recommendation_id", recID,
		"user_id", rec.UserID,
		"month", rec.Month.String(),
		"categories", len(categories),
		"weeks", len(weeks))

	return rec, nil
}

const recommendationColumns = `id, user_id, month, recommended_savings, savings_reason, total_recommended_budget, is_active, generated_at, export_status`

func (r *SQLiteRepository) scanRecommendation(row *sql.Row) (*core.BudgetRecommendation, error) {
	var rec core.BudgetRecommendation
	var month, savings, total, generatedAt string
	err := row.Scan(&rec.ID, &rec.UserID, &month, &savings, &rec.SavingsReason,
		&total, &rec.IsActive, &generatedAt, &rec.ExportStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRecommendationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recommendation: %w", err)
	}

	if rec.Month, err = core.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("parse month %q: %w", month, err)
	}
	if rec.RecommendedSavings, err = decimal.NewFromString(savings); err != nil {
		return nil, fmt.Errorf("parse savings %q: %w", savings, err)
	}
	if rec.TotalRecommendedBudget, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total budget %q: %w", total, err)
	}
	if rec.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, fmt.Errorf("parse generated_at %q: %w", generatedAt, err)
	}
	return &rec, nil
}

// GetActiveRecommendation implements services.RecommendationStore.
func (r *SQLiteRepository) GetActiveRecommendation(ctx context.Context, userID int64, month core.Month) (*core.BudgetRecommendation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recommendationColumns+` FROM budget_recommendations
		WHERE user_id = ? AND month = ? AND is_active = 1`,
		userID, month.String())
	return r.scanRecommendation(row)
}

// GetRecommendation loads a recommendation by ID, active or not.
func (r *SQLiteRepository) GetRecommendation(ctx context.Context, id int64) (*core.BudgetRecommendation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recommendationColumns+` FROM budget_recommendations WHERE id = ?`, id)
	return r.scanRecommendation(row)
}

// CategoryBudgets implements services.RecommendationStore, ordered by
// category for stable output.
func (r *SQLiteRepository) CategoryBudgets(ctx context.Context, recommendationID int64) ([]core.CategoryBudget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recommendation_id, category, recommended_limit, actual_average, variance, risk_level, reason
		FROM category_budgets WHERE recommendation_id = ? ORDER BY category`,
		recommendationID)
	if err != nil {
		return nil, fmt.Errorf("list category budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.CategoryBudget
	for rows.Next() {
		var b core.CategoryBudget
		var limit, average, variance string
		if err := rows.Scan(&b.ID, &b.RecommendationID, &b.Category,
			&limit, &average, &variance, &b.RiskLevel, &b.Reason); err != nil {
			return nil, fmt.Errorf("scan category budget: %w", err)
		}
		if b.RecommendedLimit, err = decimal.NewFromString(limit); err != nil {
			return nil, fmt.Errorf("parse limit %q: %w", limit, err)
		}
		if b.ActualAverage, err = decimal.NewFromString(average); err != nil {
			return nil, fmt.Errorf("parse average %q: %w", average, err)
		}
		if b.Variance, err = decimal.NewFromString(variance); err != nil {
			return nil, fmt.Errorf("parse variance %q: %w", variance, err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// WeeklyBudgets implements services.RecommendationStore, ordered by
// week number.
func (r *SQLiteRepository) WeeklyBudgets(ctx context.Context, recommendationID int64) ([]core.WeeklyBudget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recommendation_id, week_number, week_start, week_end, recommended_weekly_spending, recommended_weekly_savings, explanation
		FROM weekly_budgets WHERE recommendation_id = ? ORDER BY week_number`,
		recommendationID)
	if err != nil {
		return nil, fmt.Errorf("list weekly budgets: %w", err)
	}
	defer rows.Close()

	var weeks []core.WeeklyBudget
	for rows.Next() {
		var w core.WeeklyBudget
		var start, end, spending, savings string
		if err := rows.Scan(&w.ID, &w.RecommendationID, &w.WeekNumber,
			&start, &end, &spending, &savings, &w.Explanation); err != nil {
			return nil, fmt.Errorf("scan weekly budget: %w", err)
		}
		if w.WeekStart, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("parse week start %q: %w", start, err)
		}
		if w.WeekEnd, err = parseTime(end); err != nil {
			return nil, fmt.Errorf("parse week end %q: %w", end, err)
		}
		if w.RecommendedWeeklySpending, err = decimal.NewFromString(spending); err != nil {
			return nil, fmt.Errorf("parse weekly spending %q: %w", spending, err)
		}
		if w.RecommendedWeeklySavings, err = decimal.NewFromString(savings); err != nil {
			return nil, fmt.Errorf("parse weekly savings %q: %w", savings, err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

// ListPendingExport returns recommendations awaiting export, oldest
// first.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]core.BudgetRecommendation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recommendationColumns+` FROM budget_recommendations
		WHERE export_status = ? ORDER BY generated_at LIMIT ?`,
		string(core.ExportPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	defer rows.Close()

	var recs []core.BudgetRecommendation
	for rows.Next() {
		var rec core.BudgetRecommendation
		var month, savings, total, generatedAt string
		if err := rows.Scan(&rec.ID, &rec.UserID, &month, &savings, &rec.SavingsReason,
			&total, &rec.IsActive, &generatedAt, &rec.ExportStatus); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		if rec.Month, err = core.ParseMonth(month); err != nil {
			return nil, fmt.Errorf("parse month %q: %w", month, err)
		}
		if rec.RecommendedSavings, err = decimal.NewFromString(savings); err != nil {
			return nil, fmt.Errorf("parse savings %q: %w", savings, err)
		}
		if rec.TotalRecommendedBudget, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse total budget %q: %w", total, err)
		}
		if rec.GeneratedAt, err = parseTime(generatedAt); err != nil {
			return nil, fmt.Errorf("parse generated_at %q: %w", generatedAt, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// MarkExported records a successful spreadsheet export.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE budget_recommendations SET export_status = ? WHERE id = ?`,
		string(core.ExportDone), id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	slog.InfoContext(ctx, "Recommendation marked as exported", "recommendation_id", id)
	return nil
}

// MarkExportError records a failed export so the pending scan can
// surface it for operators.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE budget_recommendations SET export_status = ? WHERE id = ?`,
		string(core.ExportFailed), id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	slog.WarnContext(ctx, "Recommendation marked with export error", "recommendation_id", id)
	return nil
}
