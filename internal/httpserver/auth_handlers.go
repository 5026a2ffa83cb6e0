package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/svbridge/validation-bridge/internal/salesforce"
)

// handleLogin starts the OAuth authorization flow. The PKCE verifier and the
// domain choice are written to the session and durably saved before the
// browser leaves for Salesforce; if the save fails the redirect never
// happens, because a lost verifier guarantees a dead-end callback.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	domain := salesforce.ParseDomainType(r.URL.Query().Get("domain"))
	customHost := r.URL.Query().Get("customDomain")

	if domain == salesforce.DomainCustom {
		if err := salesforce.ValidateCustomHost(customHost); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	} else {
		customHost = ""
	}

	id, rec, err := s.sessionMgr.LoadOrCreate(r.Context(), r)
	if err != nil {
		slog.Error("failed to load session for login", "error", err)
		writeError(w, http.StatusInternalServerError, "SESSION_ERROR", "Failed to initialize session")
		return
	}

	flow, err := s.flow.StartAuthFlow(domain, customHost)
	if err != nil {
		slog.Error("failed to start auth flow", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start login flow")
		return
	}

	rec.CodeVerifier = flow.CodeVerifier
	rec.DomainType = string(domain)
	rec.CustomDomainHost = customHost

	if err := s.sessionMgr.Save(r.Context(), w, id, rec); err != nil {
		slog.Error("failed to save session before redirect", "error", err)
		writeError(w, http.StatusInternalServerError, "SESSION_SAVE_ERROR", "Failed to save session state")
		return
	}

	slog.Info("redirecting to Salesforce login", // #nosec G706 -- values sanitized via sanitizeLog
		"request_id", requestID(r.Context()),
		"domain", sanitizeLog(string(domain)),
	)
	http.Redirect(w, r, flow.AuthURL, http.StatusFound)
}

// handleOAuthCallback completes the flow when Salesforce redirects back.
// Every failure is reported as a frontend redirect with an error query
// parameter, since the browser is navigating and cannot consume JSON.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	q := r.URL.Query()

	// Provider-reported error (user denied access, bad client config, ...).
	// The pending session is left to expire on its own.
	if errParam := q.Get("error"); errParam != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = errParam
		}
		slog.Warn("authorization failed at provider", // #nosec G706 -- values sanitized via sanitizeLog
			"error", sanitizeLog(errParam),
			"description", sanitizeLog(msg),
		)
		s.redirectFrontend(w, r, map[string]string{"error": msg})
		return
	}

	code := q.Get("code")
	if code == "" {
		s.redirectFrontend(w, r, map[string]string{"error": "no_code"})
		return
	}

	id, rec, err := s.sessionMgr.Load(r.Context(), r)
	if err != nil {
		slog.Error("failed to load session in callback", "error", err)
		s.redirectFrontend(w, r, map[string]string{"error": "session_error"})
		return
	}
	if id == "" {
		// The browser never presented a cookie: it was blocked or not set.
		s.redirectFrontend(w, r, map[string]string{"error": "no_session"})
		return
	}
	if rec == nil || rec.CodeVerifier == "" {
		// The session existed once but the pending flow is gone.
		s.redirectFrontend(w, r, map[string]string{"error": "session_expired"})
		return
	}

	domain := salesforce.ParseDomainType(rec.DomainType)
	tokens, err := s.flow.ExchangeCode(r.Context(), domain, rec.CustomDomainHost, code, rec.CodeVerifier)
	if err != nil {
		slog.Error("token exchange failed", "error", err)
		s.redirectFrontend(w, r, map[string]string{"error": err.Error()})
		return
	}

	identity := s.identity.Resolve(r.Context(), tokens)

	rec.ClearAuthFlow()
	rec.Authenticated = true
	rec.AccessToken = tokens.AccessToken
	rec.RefreshToken = tokens.RefreshToken
	rec.InstanceURL = tokens.InstanceURL
	rec.Username = identity.Username
	rec.Email = identity.Email
	rec.UserType = identity.UserType

	// Swap the session ID across the privilege boundary. If regeneration
	// fails the login still succeeds under the old ID.
	newID, err := s.sessionMgr.Regenerate(r.Context(), id, rec)
	if err != nil {
		slog.Warn("session regeneration failed, keeping existing ID", "error", err)
		newID = id
	}

	if err := s.sessionMgr.Save(r.Context(), w, newID, rec); err != nil {
		slog.Error("failed to save authenticated session", "error", err)
		s.redirectFrontend(w, r, map[string]string{"error": "session_error"})
		return
	}

	slog.Info("login completed", // #nosec G706 -- values sanitized via sanitizeLog
		"request_id", requestID(r.Context()),
		"username", sanitizeLog(identity.Username),
		"domain", sanitizeLog(string(domain)),
	)
	s.redirectFrontend(w, r, map[string]string{"login": "success"})
}

// handleLogout destroys the session. POST answers JSON for the frontend's
// fetch call; GET redirects for plain navigation. Both are idempotent.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		id, _, _ := s.sessionMgr.Load(r.Context(), r)
		if err := s.sessionMgr.Destroy(r.Context(), w, id); err != nil {
			slog.Error("failed to destroy session", "error", err)
			writeError(w, http.StatusInternalServerError, "SESSION_ERROR", "Failed to log out")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Logged out successfully",
		})

	case http.MethodGet:
		id, _, _ := s.sessionMgr.Load(r.Context(), r)
		if err := s.sessionMgr.Destroy(r.Context(), w, id); err != nil {
			slog.Error("failed to destroy session", "error", err)
		}
		s.redirectFrontend(w, r, map[string]string{"logout": "success"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	}
}
