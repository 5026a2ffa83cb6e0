package salesforce

import (
	"fmt"
	"strings"
)

// DomainType selects which Salesforce login host the OAuth flow talks to.
type DomainType string

const (
	DomainProduction DomainType = "production"
	DomainSandbox    DomainType = "sandbox"
	DomainCustom     DomainType = "custom"
)

const (
	productionHost = "login.salesforce.com"
	sandboxHost    = "test.salesforce.com"
)

// ParseDomainType maps a user-supplied domain selector to a DomainType.
// Anything unrecognized falls back to production.
func ParseDomainType(s string) DomainType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sandbox":
		return DomainSandbox
	case "custom":
		return DomainCustom
	default:
		return DomainProduction
	}
}

// LoginHost returns the hostname to authenticate against. customHost is only
// consulted for DomainCustom.
func LoginHost(domain DomainType, customHost string) string {
	switch domain {
	case DomainSandbox:
		return sandboxHost
	case DomainCustom:
		if customHost != "" {
			return customHost
		}
		return productionHost
	default:
		return productionHost
	}
}

// AuthorizeURL returns the OAuth authorization endpoint for the given domain.
func AuthorizeURL(domain DomainType, customHost string) string {
	return "https://" + LoginHost(domain, customHost) + "/services/oauth2/authorize"
}

// TokenURL returns the OAuth token endpoint for the given domain.
func TokenURL(domain DomainType, customHost string) string {
	return "https://" + LoginHost(domain, customHost) + "/services/oauth2/token"
}

// ValidateCustomHost checks that a user-supplied My Domain host is a bare
// hostname, rejecting anything that could smuggle a scheme, path, port, or
// userinfo into the URLs built around it. Ownership of the host is not
// verified here; Salesforce rejects logins against hosts it does not serve.
func ValidateCustomHost(host string) error {
	if host == "" {
		return fmt.Errorf("custom domain is required")
	}
	if strings.ContainsAny(host, "/:@?#\\ ") {
		return fmt.Errorf("custom domain must be a bare hostname")
	}
	if !strings.Contains(host, ".") {
		return fmt.Errorf("custom domain must be a fully qualified hostname")
	}
	return nil
}
