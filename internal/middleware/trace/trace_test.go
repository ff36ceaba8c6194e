package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()

	if !strings.HasPrefix(a, "req_") {
		t.Errorf("request ID %q missing req_ prefix", a)
	}
	if a == b {
		t.Error("consecutive request IDs must differ")
	}
}

func TestGetRequestIDFallback(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}
}

func TestMiddlewareInjectsRequestID(t *testing.T) {
	m := NewMiddleware(func(r *http.Request) string { return "203.0.113.9" })

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seen == "" {
		t.Fatal("handler saw no request ID in context")
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", m.GetMetrics().TotalRequests)
	}
}
