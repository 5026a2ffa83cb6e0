package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

// errorResponse is the uniform JSON failure envelope.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError emits the uniform failure envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// redirectFrontend sends the browser back to the frontend with optional
// query parameters, used by the OAuth callback which cannot return JSON to
// a navigating browser.
func (s *Server) redirectFrontend(w http.ResponseWriter, r *http.Request, params map[string]string) {
	target := s.cfg.Server.FrontendURL
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}
