package salesforce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Identity holds the display fields shown to the logged-in user. Every field
// has a fallback value, so a failed lookup never blocks login.
type Identity struct {
	Username string
	Email    string
	UserType string
}

// defaultIdentity is used when neither the identity service nor the ID token
// yields usable claims.
func defaultIdentity() Identity {
	return Identity{
		Username: "User",
		Email:    "",
		UserType: "Standard",
	}
}

// IdentityResolver resolves user identity after a token exchange. It tries
// the Salesforce identity service first, then falls back to verified ID
// token claims, then to placeholder values.
type IdentityResolver struct {
	clientID   string
	httpClient *http.Client

	// providers caches OIDC provider metadata per issuer, so repeat logins
	// against the same host skip the discovery round trip.
	mu        sync.RWMutex
	providers map[string]*oidc.Provider
}

// NewIdentityResolver creates a resolver using the given HTTP timeout.
func NewIdentityResolver(clientID string, timeout time.Duration) *IdentityResolver {
	return &IdentityResolver{
		clientID:   clientID,
		httpClient: &http.Client{Timeout: timeout},
		providers:  make(map[string]*oidc.Provider),
	}
}

// Resolve returns the best identity obtainable from the token exchange
// result. It never returns an error; failures are logged and degrade to
// fallback values.
func (r *IdentityResolver) Resolve(ctx context.Context, tokens *TokenResult) Identity {
	if id, err := r.fetchIdentityService(ctx, tokens.IdentityURL, tokens.AccessToken); err == nil {
		return id
	} else if tokens.IdentityURL != "" {
		slog.Warn("identity service lookup failed, falling back to ID token", "error", err)
	}

	if id, err := r.identityFromIDToken(ctx, tokens.RawIDToken); err == nil {
		return id
	} else if tokens.RawIDToken != "" {
		slog.Warn("ID token identity fallback failed, using defaults", "error", err)
	}

	return defaultIdentity()
}

// identityClaims is the subset of fields read from the identity service
// response and from ID token claims.
type identityClaims struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	UserType    string `json:"user_type"`
	PreferredUN string `json:"preferred_username"`
	Issuer      string `json:"iss"`
}

func (c identityClaims) toIdentity() Identity {
	id := defaultIdentity()
	if c.Username != "" {
		id.Username = c.Username
	} else if c.PreferredUN != "" {
		id.Username = c.PreferredUN
	}
	if c.Email != "" {
		id.Email = c.Email
	}
	if c.UserType != "" {
		id.UserType = c.UserType
	}
	return id
}

func (r *IdentityResolver) fetchIdentityService(ctx context.Context, identityURL, accessToken string) (Identity, error) {
	if identityURL == "" {
		return Identity{}, fmt.Errorf("no identity URL in token response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identityURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var claims identityClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return Identity{}, fmt.Errorf("failed to decode identity response: %w", err)
	}
	return claims.toIdentity(), nil
}

// identityFromIDToken verifies the ID token against its issuer's published
// keys and reads identity claims from it.
func (r *IdentityResolver) identityFromIDToken(ctx context.Context, rawIDToken string) (Identity, error) {
	if rawIDToken == "" {
		return Identity{}, fmt.Errorf("no ID token in token response")
	}

	issuer, err := unverifiedIssuer(rawIDToken)
	if err != nil {
		return Identity{}, err
	}

	provider, err := r.providerFor(ctx, issuer)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve OIDC provider for %q: %w", issuer, err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: r.clientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims identityClaims
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("failed to parse ID token claims: %w", err)
	}
	return claims.toIdentity(), nil
}

func (r *IdentityResolver) providerFor(ctx context.Context, issuer string) (*oidc.Provider, error) {
	r.mu.RLock()
	provider, ok := r.providers[issuer]
	r.mu.RUnlock()
	if ok {
		return provider, nil
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.providers[issuer] = provider
	r.mu.Unlock()
	return provider, nil
}

// unverifiedIssuer extracts the iss claim from a JWT payload without
// verifying it. The issuer is only used to locate the keys that then verify
// the full token.
func unverifiedIssuer(token string) (string, error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("not a valid JWT: expected 3 parts, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims identityClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("failed to parse JWT payload: %w", err)
	}
	if claims.Issuer == "" {
		return "", fmt.Errorf("JWT has no issuer claim")
	}
	return claims.Issuer, nil
}
