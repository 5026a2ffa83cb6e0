package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Manager ties session records in a Store to the browser cookie that names
// them. All cookie policy lives here so handlers never touch http.Cookie
// directly.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, cookieName string, ttl time.Duration) *Manager {
	return &Manager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
	}
}

// Store exposes the underlying store, mainly for health reporting.
func (m *Manager) Store() Store { return m.store }

// NewID generates a cryptographically random session identifier.
func (m *Manager) NewID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Load resolves the request's session cookie to its stored record. A missing
// cookie yields ("", nil, nil); an absent or expired record yields the cookie
// ID with a nil record. Callers distinguish "no session at all" from "session
// known but unauthenticated" by the record contents, not by errors.
func (m *Manager) Load(ctx context.Context, r *http.Request) (string, *Record, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", nil, nil
	}

	rec, err := m.store.Get(ctx, cookie.Value)
	if errors.Is(err, ErrNotFound) {
		return cookie.Value, nil, nil
	}
	if err != nil {
		return cookie.Value, nil, fmt.Errorf("failed to load session: %w", err)
	}
	return cookie.Value, rec, nil
}

// LoadOrCreate returns the request's existing session, or mints a fresh
// anonymous one when the request carries no usable session. The new record
// is not persisted until the caller calls Save.
func (m *Manager) LoadOrCreate(ctx context.Context, r *http.Request) (string, *Record, error) {
	id, rec, err := m.Load(ctx, r)
	if err != nil {
		return "", nil, err
	}
	if id != "" && rec != nil {
		return id, rec, nil
	}

	newID, err := m.NewID()
	if err != nil {
		return "", nil, err
	}
	return newID, &Record{CreatedAt: time.Now().UTC()}, nil
}

// Save persists the record and (re)sets the session cookie on the response.
// The cookie is always Secure with SameSite=None so the browser will send it
// on cross-site requests from the frontend origin.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, id string, rec *Record) error {
	if err := m.store.Save(ctx, id, rec); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	m.setCookie(w, id, int(m.ttl.Seconds()))
	return nil
}

// Touch re-saves an existing record to re-arm its TTL and refresh the cookie
// lifetime. Failures are logged but never surfaced; a missed touch only
// shortens the rolling window.
func (m *Manager) Touch(ctx context.Context, w http.ResponseWriter, id string, rec *Record) {
	if err := m.store.Save(ctx, id, rec); err != nil {
		slog.Warn("failed to refresh session TTL", "error", err)
		return
	}
	m.setCookie(w, id, int(m.ttl.Seconds()))
}

// Regenerate copies the record under a freshly generated ID and removes the
// old entry, defeating session fixation across the privilege change at
// login. The new ID is persisted before the old one is deleted; a failed
// delete is logged and tolerated since the orphan expires on its own. On
// error the caller should keep using the old ID.
func (m *Manager) Regenerate(ctx context.Context, oldID string, rec *Record) (string, error) {
	newID, err := m.NewID()
	if err != nil {
		return "", err
	}

	if err := m.store.Save(ctx, newID, rec); err != nil {
		return "", fmt.Errorf("failed to save regenerated session: %w", err)
	}

	if err := m.store.Delete(ctx, oldID); err != nil {
		slog.Warn("failed to delete pre-login session", "error", err)
	}
	return newID, nil
}

// Destroy deletes the record and expires the cookie. Destroying a session
// that does not exist is a no-op, so logout is idempotent.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, id string) error {
	if id != "" {
		if err := m.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	m.setCookie(w, "", -1)
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}
