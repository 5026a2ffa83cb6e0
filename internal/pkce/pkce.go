// Package pkce implements the Proof Key for Code Exchange pair (RFC 7636)
// used to bind the Salesforce authorization request to the token exchange.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// verifierBytes is the entropy of a code verifier. 32 random bytes encode to
// 43 base64url characters, the minimum length RFC 7636 permits.
const verifierBytes = 32

// GenerateCodeVerifier creates a cryptographically random PKCE code verifier,
// base64url-encoded without padding. Every call returns a fresh value; two
// concurrent login flows never share a verifier.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCodeChallenge derives the S256 code challenge from a verifier:
// BASE64URL(SHA256(ASCII(verifier))). Deterministic function of its input.
func GenerateCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
