package salesforce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveFromIdentityService(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"username": "jane@acme.example",
			"email": "jane@acme.example",
			"user_type": "STANDARD"
		}`))
	}))
	defer srv.Close()

	resolver := NewIdentityResolver("consumer-key", 5*time.Second)
	id := resolver.Resolve(context.Background(), &TokenResult{
		AccessToken: "token",
		IdentityURL: srv.URL,
	})

	if gotAuth != "Bearer token" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if id.Username != "jane@acme.example" {
		t.Errorf("unexpected username %q", id.Username)
	}
	if id.Email != "jane@acme.example" {
		t.Errorf("unexpected email %q", id.Email)
	}
	if id.UserType != "STANDARD" {
		t.Errorf("unexpected user type %q", id.UserType)
	}
}

func TestResolvePartialClaimsGetDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email": "jane@acme.example"}`))
	}))
	defer srv.Close()

	resolver := NewIdentityResolver("consumer-key", 5*time.Second)
	id := resolver.Resolve(context.Background(), &TokenResult{
		AccessToken: "token",
		IdentityURL: srv.URL,
	})

	if id.Username != "User" {
		t.Errorf("expected Username fallback, got %q", id.Username)
	}
	if id.Email != "jane@acme.example" {
		t.Errorf("expected email preserved, got %q", id.Email)
	}
	if id.UserType != "Standard" {
		t.Errorf("expected UserType fallback, got %q", id.UserType)
	}
}

func TestResolveNeverFails(t *testing.T) {
	// Identity service is down and there is no ID token: login must still
	// proceed with placeholder values.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := NewIdentityResolver("consumer-key", 5*time.Second)
	id := resolver.Resolve(context.Background(), &TokenResult{
		AccessToken: "token",
		IdentityURL: srv.URL,
	})

	if id.Username != "User" || id.Email != "" || id.UserType != "Standard" {
		t.Errorf("expected default identity, got %+v", id)
	}
}

func TestResolveNoSources(t *testing.T) {
	resolver := NewIdentityResolver("consumer-key", 5*time.Second)
	id := resolver.Resolve(context.Background(), &TokenResult{AccessToken: "token"})

	if id.Username != "User" || id.UserType != "Standard" {
		t.Errorf("expected default identity, got %+v", id)
	}
}

func TestUnverifiedIssuer(t *testing.T) {
	// {"iss":"https://login.salesforce.com"} base64url-encoded.
	token := "eyJhbGciOiJSUzI1NiJ9.eyJpc3MiOiJodHRwczovL2xvZ2luLnNhbGVzZm9yY2UuY29tIn0.sig"

	issuer, err := unverifiedIssuer(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issuer != "https://login.salesforce.com" {
		t.Errorf("unexpected issuer %q", issuer)
	}

	if _, err := unverifiedIssuer("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
	if _, err := unverifiedIssuer("a.!!!.c"); err == nil {
		t.Error("expected error for undecodable payload")
	}
}
