// Package app orchestrates all the components of the validation rules bridge.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/svbridge/validation-bridge/internal/config"
	"github.com/svbridge/validation-bridge/internal/httpserver"
	"github.com/svbridge/validation-bridge/internal/salesforce"
	"github.com/svbridge/validation-bridge/internal/session"
)

// App represents the main server process that coordinates all components.
type App struct {
	cfg        *config.Config
	store      session.Store
	sessionMgr *session.Manager
	httpServer *httpserver.Server
}

// New creates the application with all components initialized.
func New(cfg *config.Config) (*App, error) {
	ttl := time.Duration(cfg.Session.TTL) * time.Second

	store := newStore(cfg, ttl)
	sessionMgr := session.NewManager(store, cfg.Session.CookieName, ttl)

	slog.Info("session manager initialized",
		"store", store.Kind(),
		"ttl", ttl,
	)

	timeout := time.Duration(cfg.Salesforce.RequestTimeout) * time.Second
	flow := salesforce.NewFlow(
		cfg.Salesforce.ClientID,
		cfg.Salesforce.ClientSecret,
		cfg.Salesforce.RedirectURI,
		cfg.Salesforce.Scopes,
	)
	identity := salesforce.NewIdentityResolver(cfg.Salesforce.ClientID, timeout)
	sfClient := salesforce.NewClient(cfg.Salesforce.APIVersion, timeout)

	slog.Info("salesforce client initialized",
		"api_version", cfg.Salesforce.APIVersion,
		"redirect_uri", cfg.Salesforce.RedirectURI,
	)

	httpServer := httpserver.NewServer(cfg, flow, identity, sfClient, sessionMgr)

	return &App{
		cfg:        cfg,
		store:      store,
		sessionMgr: sessionMgr,
		httpServer: httpServer,
	}, nil
}

// newStore selects the session store. A configured Redis URL is tried first;
// if the cache is unreachable the server still comes up on the in-process
// store, trading durability for availability.
func newStore(cfg *config.Config, ttl time.Duration) session.Store {
	if cfg.Session.RedisURL == "" {
		slog.Info("no redis URL configured, using in-memory session store")
		return session.NewMemoryStore(ttl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := session.NewRedisStore(ctx, cfg.Session.RedisURL, ttl)
	if err != nil {
		slog.Warn("redis unavailable, falling back to in-memory session store",
			"error", err,
		)
		return session.NewMemoryStore(ttl)
	}

	slog.Info("redis session store connected")
	return store
}

// Run starts the server and blocks until a shutdown signal is received.
func (a *App) Run() error {
	slog.Info("starting validation rules bridge")

	// Start HTTP server in a goroutine (it blocks on ListenAndServe)
	httpErrCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil && err.Error() != "http: Server closed" {
			httpErrCh <- err
		}
		close(httpErrCh)
	}()

	// Wait for shutdown signal or startup error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-httpErrCh:
		if err != nil {
			slog.Error("HTTP server failed to start", "error", err)
			a.closeStore()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	// Shutdown gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error stopping HTTP server", "error", err)
	}

	a.closeStore()

	slog.Info("shutdown complete")
	return nil
}

func (a *App) closeStore() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing session store", "error", err)
	}
}
