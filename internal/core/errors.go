package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount      = errors.New("amount must be at least 0.01")
	ErrInvalidDate        = errors.New("date cannot be zero")
	ErrEmptyMerchant      = errors.New("empty merchant name")
	ErrInvalidCategory    = errors.New("unknown category")
	ErrInvalidExpenseType = errors.New("unknown expense type")
	ErrInvalidSource      = errors.New("unknown transaction source")

	// ErrRecommendationNotFound signals that no active recommendation
	// exists for the requested (user, month). Callers that compute
	// adherence translate it into an absent result, not a failure.
	ErrRecommendationNotFound = errors.New("no active budget recommendation")
)

// InsufficientDataError is returned when a user has too few transactions
// in the analysis window for a reliable recommendation. It is surfaced to
// the caller and never retried.
type InsufficientDataError struct {
	Count   int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient transaction data: have %d transactions, need at least %d", e.Count, e.Minimum)
}

// ValidationError rejects malformed engine input (bad target month,
// non-positive income) before any computation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ide *InsufficientDataError
	return errors.As(err, &ide)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
