package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/svbridge/validation-bridge/internal/config"
	"github.com/svbridge/validation-bridge/internal/salesforce"
	"github.com/svbridge/validation-bridge/internal/session"
)

// Server is the HTTP server bridging the frontend to Salesforce.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	mux        *http.ServeMux
	flow       *salesforce.Flow
	identity   *salesforce.IdentityResolver
	sfClient   *salesforce.Client
	sessionMgr *session.Manager
	limiter    *IPRateLimiter
	startedAt  time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, flow *salesforce.Flow, identity *salesforce.IdentityResolver, sfClient *salesforce.Client, sessionMgr *session.Manager) *Server {
	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		flow:       flow,
		identity:   identity,
		sfClient:   sfClient,
		sessionMgr: sessionMgr,
		limiter:    newIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
		startedAt:  time.Now(),
	}

	// Register routes
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/oauth/callback", s.handleOAuthCallback)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/api/me", s.handleMe)
	s.mux.HandleFunc("/api/validation-rules", s.requireAuth(s.handleListRules))
	s.mux.HandleFunc("/api/validation-toggle", s.requireAuth(s.handleToggleRule))
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleRoot)

	// Wrap with middleware
	handler := http.Handler(s.mux)
	handler = loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:         cfg.Listen.HTTP,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the fully wrapped handler chain, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting HTTP server",
		"addr", s.cfg.Listen.HTTP,
		"environment", s.cfg.Server.Environment,
		"session_store", s.sessionMgr.Store().Kind(),
	)

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
