package pkce

import (
	"regexp"
	"testing"
)

func TestGenerateCodeVerifier(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 32 bytes of entropy encode to 43 base64url characters, the RFC 7636
	// minimum.
	if len(verifier) != 43 {
		t.Errorf("expected verifier length 43, got %d", len(verifier))
	}

	validChars := regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	if !validChars.MatchString(verifier) {
		t.Errorf("verifier contains characters outside the base64url alphabet: %s", verifier)
	}
}

func TestGenerateCodeVerifierUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		verifier, err := GenerateCodeVerifier()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[verifier] {
			t.Fatalf("duplicate verifier generated: %s", verifier)
		}
		seen[verifier] = true
	}
}

func TestGenerateCodeChallenge(t *testing.T) {
	// Known-answer vector from RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	got := GenerateCodeChallenge(verifier)
	if got != want {
		t.Errorf("expected challenge %s, got %s", want, got)
	}
}

func TestGenerateCodeChallengeDeterministic(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := GenerateCodeChallenge(verifier)
	second := GenerateCodeChallenge(verifier)
	if first != second {
		t.Errorf("challenge not deterministic: %s != %s", first, second)
	}
}
