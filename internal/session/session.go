// Package session provides the server-side session record and its storage.
//
// One record exists per browser, keyed by an opaque token delivered as a
// cookie. The record carries PKCE state while a login flow is in flight and
// the Salesforce tokens plus display identity once the flow completes.
package session

import "time"

// Record is the per-browser session state.
type Record struct {
	// CodeVerifier is the PKCE secret, present only between login and
	// callback. It is never sent to the browser.
	CodeVerifier string `json:"code_verifier,omitempty"`

	// DomainType is the chosen Salesforce environment: "production",
	// "sandbox" or "custom". It must survive the redirect round-trip so the
	// callback exchanges the code against the same environment.
	DomainType string `json:"domain_type,omitempty"`

	// CustomDomainHost is the caller-supplied My Domain host, set only when
	// DomainType is "custom".
	CustomDomainHost string `json:"custom_domain,omitempty"`

	// Tokens and org location, present only after a successful exchange.
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	InstanceURL  string `json:"instance_url,omitempty"`

	// Authenticated is true only after a completed exchange and identity
	// fetch. Authenticated implies AccessToken and InstanceURL are set.
	Authenticated bool `json:"authenticated,omitempty"`

	// Display identity, best-effort.
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	UserType string `json:"user_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a value copy of the record. Stores hold and return clones so
// callers can never mutate stored state through a shared pointer.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// ClearAuthFlow removes the in-flight PKCE state. Called the moment a token
// exchange succeeds, and implicitly when a record expires.
func (r *Record) ClearAuthFlow() {
	r.CodeVerifier = ""
	r.CustomDomainHost = ""
}
