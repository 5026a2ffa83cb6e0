package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })
	return NewManager(store, "sf.sid", time.Minute)
}

func TestManagerNewID(t *testing.T) {
	mgr := newTestManager(t)

	id1, err := mgr.NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := mgr.NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 32 random bytes hex-encoded.
	if len(id1) != 64 {
		t.Errorf("expected 64-char ID, got %d chars", len(id1))
	}
	if id1 == id2 {
		t.Error("consecutive IDs must differ")
	}
}

func TestManagerSaveSetsCookie(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	if err := mgr.Save(ctx, w, "id-1", &Record{CodeVerifier: "v"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}

	c := cookies[0]
	if c.Name != "sf.sid" {
		t.Errorf("expected cookie name sf.sid, got %s", c.Name)
	}
	if c.Value != "id-1" {
		t.Errorf("expected cookie value id-1, got %s", c.Value)
	}
	if !c.Secure || !c.HttpOnly {
		t.Error("session cookie must be Secure and HttpOnly")
	}
	if c.SameSite != http.SameSiteNoneMode {
		t.Errorf("expected SameSite=None, got %v", c.SameSite)
	}
	if c.MaxAge != 60 {
		t.Errorf("expected MaxAge 60, got %d", c.MaxAge)
	}
}

func TestManagerLoad(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	// No cookie at all.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	id, rec, err := mgr.Load(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "" || rec != nil {
		t.Errorf("expected empty result for cookieless request, got id=%q rec=%v", id, rec)
	}

	// Cookie referencing an unknown record: the ID comes back, the record
	// does not. The caller uses this to tell expiry apart from no-cookie.
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sf.sid", Value: "stale-id"})
	id, rec, err = mgr.Load(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "stale-id" || rec != nil {
		t.Errorf("expected stale-id with nil record, got id=%q rec=%v", id, rec)
	}

	// Cookie referencing a live record.
	w := httptest.NewRecorder()
	if err := mgr.Save(ctx, w, "live-id", &Record{CodeVerifier: "v"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sf.sid", Value: "live-id"})
	id, rec, err = mgr.Load(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "live-id" || rec == nil || rec.CodeVerifier != "v" {
		t.Errorf("expected live record, got id=%q rec=%v", id, rec)
	}
}

func TestManagerRegenerate(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	rec := &Record{
		Authenticated: true,
		AccessToken:   "token",
		InstanceURL:   "https://org.my.salesforce.com",
		Username:      "user@example.com",
	}

	w := httptest.NewRecorder()
	if err := mgr.Save(ctx, w, "old-id", rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	newID, err := mgr.Regenerate(ctx, "old-id", rec)
	if err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}
	if newID == "old-id" {
		t.Error("regenerated ID must differ from the old one")
	}

	// The old ID must no longer resolve.
	if _, err := mgr.Store().Get(ctx, "old-id"); err != ErrNotFound {
		t.Errorf("expected old ID to be deleted, got %v", err)
	}

	// The record survives intact under the new ID.
	got, err := mgr.Store().Get(ctx, newID)
	if err != nil {
		t.Fatalf("get of new ID failed: %v", err)
	}
	if !got.Authenticated || got.AccessToken != "token" || got.Username != "user@example.com" {
		t.Errorf("record state lost across regeneration: %+v", got)
	}

	// The regenerated record is a value copy: mutating the caller's record
	// afterwards must not be visible through the store.
	rec.AccessToken = "mutated"
	again, err := mgr.Store().Get(ctx, newID)
	if err != nil {
		t.Fatalf("get of new ID failed: %v", err)
	}
	if again.AccessToken != "token" {
		t.Errorf("regenerated record shares state with the caller: %q", again.AccessToken)
	}
}

func TestManagerDestroy(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	if err := mgr.Save(ctx, w, "id-1", &Record{}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	w = httptest.NewRecorder()
	if err := mgr.Destroy(ctx, w, "id-1"); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Error("destroy must expire the session cookie")
	}

	// Destroying again (or destroying nothing) still succeeds.
	w = httptest.NewRecorder()
	if err := mgr.Destroy(ctx, w, "id-1"); err != nil {
		t.Fatalf("repeated destroy failed: %v", err)
	}
	w = httptest.NewRecorder()
	if err := mgr.Destroy(ctx, w, ""); err != nil {
		t.Fatalf("destroy without session failed: %v", err)
	}
}
