// Package http exposes the recommendation engine as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"budgetwise/internal/log"
	"budgetwise/internal/middleware/ratelimit"
	"budgetwise/internal/middleware/security"
	"budgetwise/internal/middleware/trace"
	"budgetwise/internal/services"
)

// Server wraps the standard HTTP server with the API routes and the
// shared middleware chain.
type Server struct {
	httpServer *http.Server

	service *services.BudgetService
	ledger  Ledger

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer builds the API server. ledger may be nil when the ingest
// endpoints are not wanted (they respond 503 in that case); zero
// values in rateLimit fall back to the limiter's defaults.
func NewServer(addr string, service *services.BudgetService, ledger Ledger, rateLimit ratelimit.Config) *Server {
	s := &Server{
		service:  service,
		ledger:   ledger,
		limiter:  ratelimit.NewLimiter(rateLimit),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/recommendations/generate", s.handleGenerateRecommendation)
	mux.HandleFunc("GET /api/recommendations/current", s.handleCurrentRecommendation)
	mux.HandleFunc("GET /api/recommendations/comparison", s.handleComparison)
	mux.HandleFunc("GET /api/adherence", s.handleAdherence)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/profile/income", s.handleSetIncome)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// middleware chains tracing, security headers and rate limiting around
// the API. POST and PUT requests are rate limited per client IP; reads
// are not.
func (s *Server) middleware(next http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(apiHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	requestLogger := log.Middleware(log.New(log.Config{Component: log.ComponentHTTP}))

	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request blocked",
				"path", r.URL.Path, "client_ip", s.detector.ExtractClientIP(r))
			respondError(w, http.StatusForbidden, "request rejected")
			return
		}

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			clientIP := s.detector.ExtractClientIP(r)
			if !s.limiter.Allow(clientIP) {
				w.Header().Set("Retry-After", "60")
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
				return
			}
		}

		next.ServeHTTP(w, r)
	})

	return tracer.Middleware(requestLogger(headers.Middleware(limited)))
}

// apiHeadersConfig narrows the default headers for a JSON-only surface:
// nothing is ever rendered, so the CSP denies everything.
func apiHeadersConfig() security.HeadersConfig {
	cfg := security.DefaultHeadersConfig()
	cfg.CSP = "default-src 'none'; frame-ancestors 'none'"
	return cfg
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	slog.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiter. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
