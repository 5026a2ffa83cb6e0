package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/svbridge/validation-bridge/internal/salesforce"
)

// authHandler is a handler that runs with credentials derived from an
// authenticated session.
type authHandler func(w http.ResponseWriter, r *http.Request, tokens salesforce.Tokens)

// requireAuth guards API handlers. It resolves the session, re-arms the
// rolling TTL on every authenticated request, and rejects anything without
// usable Salesforce credentials.
func (s *Server) requireAuth(next authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, rec, err := s.sessionMgr.Load(r.Context(), r)
		if err != nil {
			slog.Error("failed to load session", "error", err)
			writeError(w, http.StatusInternalServerError, "SESSION_ERROR", "Failed to load session")
			return
		}

		tokens, ok := salesforce.DeriveTokens(rec)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated. Please log in.")
			return
		}

		s.sessionMgr.Touch(r.Context(), w, id, rec)
		next(w, r, tokens)
	}
}

// handleMe reports the current session's identity. It never fails: an
// anonymous or expired session simply reads as logged out.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	id, rec, err := s.sessionMgr.Load(r.Context(), r)
	if err != nil || rec == nil || !rec.Authenticated {
		writeJSON(w, http.StatusOK, map[string]any{"loggedIn": false})
		return
	}

	s.sessionMgr.Touch(r.Context(), w, id, rec)
	writeJSON(w, http.StatusOK, map[string]any{
		"loggedIn":    true,
		"username":    rec.Username,
		"email":       rec.Email,
		"userType":    rec.UserType,
		"instanceUrl": rec.InstanceURL,
		"domainType":  rec.DomainType,
	})
}

// handleListRules returns every validation rule in the connected org.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request, tokens salesforce.Tokens) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	rules, err := s.sfClient.ListRules(r.Context(), tokens)
	if err != nil {
		s.writeSalesforceError(w, r, "failed to list validation rules", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"totalSize": len(rules),
		"records":   rules,
	})
}

// handleToggleRule flips a single rule's active flag.
func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request, tokens salesforce.Tokens) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	q := r.URL.Query()
	ruleID := q.Get("id")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_RULE_ID", "Rule ID is required")
		return
	}

	activeParam := q.Get("active")
	if activeParam == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ACTIVE_STATUS", "Active status is required")
		return
	}
	active, err := strconv.ParseBool(activeParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_ACTIVE_STATUS", "Active status must be true or false")
		return
	}

	if err := s.sfClient.ToggleRule(r.Context(), tokens, ruleID, active); err != nil {
		s.writeSalesforceError(w, r, "failed to toggle validation rule", err)
		return
	}

	slog.Info("validation rule toggled", // #nosec G706 -- values sanitized via sanitizeLog
		"request_id", requestID(r.Context()),
		"rule_id", sanitizeLog(ruleID),
		"active", active,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"Id":      ruleID,
		"Active":  active,
	})
}

// writeSalesforceError maps an upstream failure to the JSON envelope,
// passing through the Salesforce status and error code when present.
func (s *Server) writeSalesforceError(w http.ResponseWriter, r *http.Request, logMsg string, err error) {
	var apiErr *salesforce.APIError
	if errors.As(err, &apiErr) {
		slog.Warn(logMsg,
			"request_id", requestID(r.Context()),
			"status", apiErr.Status,
			"code", apiErr.Code,
			"error", apiErr.Message,
		)
		code := apiErr.Code
		if code == "" {
			code = "SALESFORCE_ERROR"
		}
		writeError(w, apiErr.Status, code, apiErr.Message)
		return
	}

	slog.Error(logMsg, "request_id", requestID(r.Context()), "error", err)
	writeError(w, http.StatusBadGateway, "SALESFORCE_ERROR", "Salesforce request failed")
}

// handleHealth reports liveness plus which session store is active.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"session_store":  s.sessionMgr.Store().Kind(),
		"environment":    s.cfg.Server.Environment,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// handleRoot serves a small service banner. The catch-all pattern also
// matches unknown paths, which get a JSON 404 instead of the banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":     "Salesforce Validation Rules Bridge",
		"frontend": s.cfg.Server.FrontendURL,
		"endpoints": []string{
			"/login",
			"/oauth/callback",
			"/logout",
			"/api/me",
			"/api/validation-rules",
			"/api/validation-toggle",
			"/health",
		},
	})
}
