package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		target string
		agent  string
		method string
		want   bool
	}{
		{"clean api call", "/api/recommendations/current?user_id=7", "Mozilla/5.0", http.MethodGet, false},
		{"path traversal", "/api/../../etc/passwd", "Mozilla/5.0", http.MethodGet, true},
		{"hex payload in query", "/api/adherence?user_id=0x41414141", "Mozilla/5.0", http.MethodGet, true},
		{"scanner user agent", "/api/adherence?user_id=7", "sqlmap/1.7", http.MethodGet, true},
		{"unusual method", "/api/adherence?user_id=7", "Mozilla/5.0", "TRACE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.agent)
			if got := d.DetectSuspiciousRequest(req); got != tt.want {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
		})
	}

	if m := d.GetMetrics(); m.SuspiciousRequests == 0 {
		t.Error("suspicious requests metric not incremented")
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct connection", "203.0.113.9:4312", "", "203.0.113.9"},
		{"forwarded via trusted proxy", "10.0.0.5:8080", "203.0.113.9, 10.0.0.5", "203.0.113.9"},
		{"forwarded header from untrusted source ignored", "203.0.113.9:4312", "198.51.100.1", "203.0.113.9"},
		{"garbage forwarded value falls back", "10.0.0.5:8080", "not-an-ip", "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig())

	rec := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy missing")
	}
}
