package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// userIDFrom reads the caller identity from the user_id query parameter,
// falling back to the X-User-ID header. Stands in for the auth layer.
func userIDFrom(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		raw = r.Header.Get("X-User-ID")
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
