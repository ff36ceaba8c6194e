package memory

import (
	"context"
	"fmt"
	"sync"

	ports "budgetwise/internal/sheets"
)

// Store is an in-memory ReportWriter for local development and tests.
type Store struct {
	mu      sync.Mutex
	reports []ports.Report
}

var _ ports.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendReport stores the report and returns a synthetic row
// reference.
func (s *Store) AppendReport(_ context.Context, r ports.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns a copy of everything appended so far.
func (s *Store) Reports() []ports.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Report(nil), s.reports...)
}
