package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/services"
)

// Ledger is the ingest side of the API: transaction and income writes.
type Ledger interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	SetMonthlyIncome(ctx context.Context, userID int64, income decimal.Decimal) error
}

type recommendationResponse struct {
	ID                     int64                    `json:"id"`
	UserID                 int64                    `json:"user_id"`
	Month                  string                   `json:"month"`
	RecommendedSavings     decimal.Decimal          `json:"recommended_savings"`
	SavingsReason          string                   `json:"savings_reason"`
	TotalRecommendedBudget decimal.Decimal          `json:"total_recommended_budget"`
	ExportStatus           core.ExportStatus        `json:"export_status"`
	GeneratedAt            time.Time                `json:"generated_at"`
	Categories             []categoryBudgetResponse `json:"category_budgets,omitempty"`
	Weeks                  []weeklyBudgetResponse   `json:"weekly_budgets,omitempty"`
}

type categoryBudgetResponse struct {
	Category         core.Category   `json:"category"`
	RecommendedLimit decimal.Decimal `json:"recommended_limit"`
	ActualAverage    decimal.Decimal `json:"actual_average"`
	Variance         decimal.Decimal `json:"variance"`
	RiskLevel        core.RiskLevel  `json:"risk_level"`
	Reason           string          `json:"reason"`
}

type weeklyBudgetResponse struct {
	WeekNumber                int             `json:"week_number"`
	WeekStart                 string          `json:"week_start"`
	WeekEnd                   string          `json:"week_end"`
	RecommendedWeeklySpending decimal.Decimal `json:"recommended_weekly_spending"`
	RecommendedWeeklySavings  decimal.Decimal `json:"recommended_weekly_savings"`
	Explanation               string          `json:"explanation"`
}

func toRecommendationResponse(rec core.BudgetRecommendation) recommendationResponse {
	return recommendationResponse{
		ID:                     rec.ID,
		UserID:                 rec.UserID,
		Month:                  rec.Month.String(),
		RecommendedSavings:     rec.RecommendedSavings,
		SavingsReason:          rec.SavingsReason,
		TotalRecommendedBudget: rec.TotalRecommendedBudget,
		ExportStatus:           rec.ExportStatus,
		GeneratedAt:            rec.GeneratedAt,
	}
}

func toDetailResponse(detail services.RecommendationDetail) recommendationResponse {
	resp := toRecommendationResponse(detail.Recommendation)
	for _, c := range detail.Categories {
		resp.Categories = append(resp.Categories, categoryBudgetResponse{
			Category:         c.Category,
			RecommendedLimit: c.RecommendedLimit,
			ActualAverage:    c.ActualAverage,
			Variance:         c.Variance,
			RiskLevel:        c.RiskLevel,
			Reason:           c.Reason,
		})
	}
	for _, wk := range detail.Weeks {
		resp.Weeks = append(resp.Weeks, weeklyBudgetResponse{
			WeekNumber:                wk.WeekNumber,
			WeekStart:                 wk.WeekStart.Format("2006-01-02"),
			WeekEnd:                   wk.WeekEnd.Format("2006-01-02"),
			RecommendedWeeklySpending: wk.RecommendedWeeklySpending,
			RecommendedWeeklySavings:  wk.RecommendedWeeklySavings,
			Explanation:               wk.Explanation,
		})
	}
	return resp
}

func (s *Server) handleGenerateRecommendation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}

	var targetMonth core.Month
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := core.ParseMonth(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid month, expected YYYY-MM")
			return
		}
		targetMonth = parsed
	}

	rec, err := s.service.GenerateRecommendation(r.Context(), userID, targetMonth)
	if err != nil {
		s.respondEngineError(w, r, "generate recommendation", err)
		return
	}

	respondJSON(w, http.StatusOK, toRecommendationResponse(rec))
}

func (s *Server) handleCurrentRecommendation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}

	detail, err := s.service.CurrentRecommendation(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrRecommendationNotFound) {
			respondError(w, http.StatusNotFound, "no active recommendation for the current month")
			return
		}
		s.respondEngineError(w, r, "load current recommendation", err)
		return
	}

	respondJSON(w, http.StatusOK, toDetailResponse(detail))
}

type comparisonResponse struct {
	RecommendationID int64                         `json:"recommendation_id"`
	Month            string                        `json:"month"`
	Categories       []services.CategoryComparison `json:"categories"`
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}

	detail, err := s.service.CurrentRecommendation(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrRecommendationNotFound) {
			respondError(w, http.StatusNotFound, "no active recommendation to compare against")
			return
		}
		s.respondEngineError(w, r, "load current recommendation", err)
		return
	}

	comparisons, err := s.service.CompareToActual(r.Context(), detail.Recommendation)
	if err != nil {
		s.respondEngineError(w, r, "compare to actual", err)
		return
	}

	respondJSON(w, http.StatusOK, comparisonResponse{
		RecommendationID: detail.Recommendation.ID,
		Month:            detail.Recommendation.Month.String(),
		Categories:       comparisons,
	})
}

// adherenceResponse wraps the report so "no active recommendation"
// serializes as a null report rather than an error.
type adherenceResponse struct {
	Report *services.AdherenceReport `json:"report"`
}

func (s *Server) handleAdherence(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}

	report, err := s.service.Adherence(r.Context(), userID)
	if err != nil {
		s.respondEngineError(w, r, "score adherence", err)
		return
	}

	respondJSON(w, http.StatusOK, adherenceResponse{Report: report})
}

type transactionRequest struct {
	Amount      decimal.Decimal  `json:"amount"`
	Date        time.Time        `json:"date"`
	Merchant    string           `json:"merchant"`
	Category    core.Category    `json:"category"`
	ExpenseType core.ExpenseType `json:"expense_type"`
	Source      core.Source      `json:"source"`
	Description string           `json:"description"`
	IsAnomaly   bool             `json:"is_anomaly"`
}

type transactionResponse struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "transaction ingest is not configured")
		return
	}

	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	tx := core.Transaction{
		UserID:      userID,
		Amount:      req.Amount,
		Date:        req.Date,
		Merchant:    req.Merchant,
		Category:    req.Category,
		ExpenseType: req.ExpenseType,
		Source:      req.Source,
		Description: req.Description,
		IsAnomaly:   req.IsAnomaly,
	}
	if err := tx.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		s.respondEngineError(w, r, "create transaction", err)
		return
	}

	respondJSON(w, http.StatusCreated, transactionResponse{ID: created.ID, CreatedAt: created.CreatedAt})
}

type incomeRequest struct {
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
}

func (s *Server) handleSetIncome(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "profile updates are not configured")
		return
	}

	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing or invalid user_id")
		return
	}

	var req incomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.MonthlyIncome.IsNegative() {
		respondError(w, http.StatusBadRequest, "monthly_income cannot be negative")
		return
	}

	if err := s.ledger.SetMonthlyIncome(r.Context(), userID, req.MonthlyIncome); err != nil {
		s.respondEngineError(w, r, "set monthly income", err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// respondEngineError maps engine errors onto HTTP statuses: validation
// failures are the caller's fault, thin history is unprocessable,
// anything else is a server error.
func (s *Server) respondEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case core.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case core.IsInsufficientData(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op, log.FieldError, err.Error())
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
