package salesforce

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/svbridge/validation-bridge/internal/pkce"
)

// Flow drives the OAuth authorization-code exchange against a Salesforce
// login host. It is stateless; per-login state (verifier, domain choice)
// lives in the session record.
type Flow struct {
	clientID     string
	clientSecret string
	redirectURI  string
	scopes       []string
}

// NewFlow creates an OAuth flow with the connected app's credentials.
func NewFlow(clientID, clientSecret, redirectURI string, scopes []string) *Flow {
	return &Flow{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		scopes:       scopes,
	}
}

// AuthFlowData contains the data needed to initiate an authorization flow.
type AuthFlowData struct {
	// CodeVerifier is the PKCE code verifier (must be stored for token exchange)
	CodeVerifier string

	// AuthURL is the complete authorization URL to redirect the user to
	AuthURL string
}

// TokenResult holds the outcome of a successful code exchange.
type TokenResult struct {
	AccessToken  string
	RefreshToken string

	// InstanceURL is the org-specific API base Salesforce returns alongside
	// the token. All Tooling API calls go to this host, never the login host.
	InstanceURL string

	// IdentityURL is the identity service URL from the token response.
	IdentityURL string

	// RawIDToken is the OIDC ID token when the openid scope was granted.
	RawIDToken string
}

func (f *Flow) oauth2Config(domain DomainType, customHost string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		RedirectURL:  f.redirectURI,
		Scopes:       f.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthorizeURL(domain, customHost),
			TokenURL:  TokenURL(domain, customHost),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// StartAuthFlow generates a fresh PKCE pair and builds the authorization URL
// for the chosen login host. prompt=login forces Salesforce to collect
// credentials even when it still holds its own login session.
func (f *Flow) StartAuthFlow(domain DomainType, customHost string) (*AuthFlowData, error) {
	verifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	challenge := pkce.GenerateCodeChallenge(verifier)

	authURL := f.oauth2Config(domain, customHost).AuthCodeURL("",
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("prompt", "login"),
	)

	return &AuthFlowData{
		CodeVerifier: verifier,
		AuthURL:      authURL,
	}, nil
}

// ExchangeCode redeems an authorization code for tokens, proving possession
// of the PKCE verifier. The exchange must hit the same login host the
// authorization request used.
func (f *Flow) ExchangeCode(ctx context.Context, domain DomainType, customHost, code, codeVerifier string) (*TokenResult, error) {
	token, err := f.oauth2Config(domain, customHost).Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", sanitizeTokenError(err))
	}

	result := &TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if v, ok := token.Extra("instance_url").(string); ok {
		result.InstanceURL = strings.TrimRight(v, "/")
	}
	if v, ok := token.Extra("id").(string); ok {
		result.IdentityURL = v
	}
	if v, ok := token.Extra("id_token").(string); ok {
		result.RawIDToken = v
	}

	if result.AccessToken == "" {
		return nil, fmt.Errorf("token response contained no access token")
	}
	if result.InstanceURL == "" {
		return nil, fmt.Errorf("token response contained no instance URL")
	}
	return result, nil
}

// sanitizeTokenError reduces an oauth2 retrieval error to the provider's
// error code and description, dropping the raw response body which can echo
// request parameters.
func sanitizeTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.ErrorCode
		if code == "" {
			code = fmt.Sprintf("http %d", retrieveErr.Response.StatusCode)
		}
		if retrieveErr.ErrorDescription != "" {
			return fmt.Errorf("%s: %s", code, retrieveErr.ErrorDescription)
		}
		return errors.New(code)
	}
	return err
}
