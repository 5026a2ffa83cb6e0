// Package config loads and validates the bridge configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Server     ServerConfig     `yaml:"server"`
	Salesforce SalesforceConfig `yaml:"salesforce"`
	Session    SessionConfig    `yaml:"session"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Log        LogConfig        `yaml:"log"`
}

// ListenConfig defines where the HTTP server listens
type ListenConfig struct {
	HTTP string `yaml:"http"` // HTTP server address (e.g., ":3000")
}

// ServerConfig defines the public-facing URLs and environment
type ServerConfig struct {
	// Environment selects runtime behavior: "development" or "production".
	// Error responses include detail only outside production.
	Environment string `yaml:"environment"`

	// AppURL is the public base URL of this backend, used to derive the
	// OAuth redirect URI when salesforce.redirect_uri is not set explicitly
	AppURL string `yaml:"app_url"`

	// FrontendURL is where the browser is sent after login/logout/errors
	FrontendURL string `yaml:"frontend_url"`

	// AllowedOrigins are additional CORS origins besides FrontendURL
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SalesforceConfig defines the connected-app OAuth settings and Tooling API access
type SalesforceConfig struct {
	ClientID     string   `yaml:"client_id"`     // Connected app consumer key
	ClientSecret string   `yaml:"client_secret"` // Connected app consumer secret
	RedirectURI  string   `yaml:"redirect_uri"`  // OAuth callback URL
	Scopes       []string `yaml:"scopes"`        // Requested OAuth scopes

	// APIVersion is the Tooling API version path segment (e.g., "v59.0")
	APIVersion string `yaml:"api_version"`

	// RequestTimeout bounds every call to Salesforce, in seconds
	RequestTimeout int `yaml:"request_timeout"`
}

// SessionConfig defines server-side session behavior
type SessionConfig struct {
	// TTL is the rolling session lifetime in seconds, refreshed on each request
	TTL int `yaml:"ttl"`

	// CookieName is the session cookie name delivered to the browser
	CookieName string `yaml:"cookie_name"`

	// RedisURL enables the durable session store when set (redis:// URL).
	// When empty or unreachable, sessions fall back to an in-process store
	// and do not survive restarts.
	RedisURL string `yaml:"redis_url"`
}

// RateLimitConfig defines per-IP request rate limiting
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`   // sustained requests per second per IP
	Burst int     `yaml:"burst"` // burst allowance per IP
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads and parses the configuration file.
// A missing file is not an error: the service then runs on defaults plus
// environment overrides, which is the usual PaaS deployment shape.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config file not found, using defaults and environment", "path", path)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			HTTP: ":3000",
		},
		Server: ServerConfig{
			Environment: "development",
			FrontendURL: "http://localhost:5173",
		},
		Salesforce: SalesforceConfig{
			Scopes:         []string{"api", "web", "refresh_token", "openid", "profile", "email"},
			APIVersion:     "v59.0",
			RequestTimeout: 30,
		},
		Session: SessionConfig{
			TTL:        86400, // 24 hours, rolling
			CookieName: "sf.sid",
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// The SFVB_* names are canonical; the bare names (CLIENT_ID, REDIS_URL, ...)
// are kept for compatibility with existing deployments.
func (c *Config) applyEnvOverrides() {
	if v := envAny("SFVB_LISTEN_HTTP"); v != "" {
		c.Listen.HTTP = v
	}
	if v := envAny("PORT"); v != "" && !strings.Contains(v, ":") {
		c.Listen.HTTP = ":" + v
	}

	if v := envAny("SFVB_ENVIRONMENT", "NODE_ENV"); v != "" {
		c.Server.Environment = v
	}
	if v := envAny("SFVB_APP_URL", "APP_URL"); v != "" {
		c.Server.AppURL = cleanURL(v)
	}
	if v := envAny("SFVB_FRONTEND_URL", "FRONTEND_URL"); v != "" {
		c.Server.FrontendURL = cleanURL(v)
	}

	if v := envAny("SFVB_CLIENT_ID", "CLIENT_ID", "SALESFORCE_CLIENT_ID"); v != "" {
		c.Salesforce.ClientID = v
	}
	if v := envAny("SFVB_CLIENT_SECRET", "CLIENT_SECRET", "SALESFORCE_CLIENT_SECRET"); v != "" {
		c.Salesforce.ClientSecret = v
	}
	if v := envAny("SFVB_REDIRECT_URI", "REDIRECT_URI", "SALESFORCE_REDIRECT_URI"); v != "" {
		c.Salesforce.RedirectURI = cleanURL(v)
	}
	if v := envAny("SFVB_TOOLING_API_VERSION", "TOOLING_API_VERSION"); v != "" {
		c.Salesforce.APIVersion = v
	}
	if v := envAny("SFVB_REQUEST_TIMEOUT", "REQUEST_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Salesforce.RequestTimeout = n
		}
	}

	if v := envAny("SFVB_SESSION_TTL", "SESSION_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.TTL = n
		}
	}
	if v := envAny("SFVB_REDIS_URL", "REDIS_URL"); v != "" {
		c.Session.RedisURL = v
	}

	if v := envAny("SFVB_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := envAny("SFVB_LOG_FORMAT", "LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// applyDerivedDefaults fills values that depend on other settings.
func (c *Config) applyDerivedDefaults() {
	if c.Server.AppURL == "" && c.IsDevelopment() {
		c.Server.AppURL = "http://localhost" + normalizePort(c.Listen.HTTP)
	}
	if c.Salesforce.RedirectURI == "" && c.Server.AppURL != "" {
		c.Salesforce.RedirectURI = c.Server.AppURL + "/oauth/callback"
	}
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment != "production"
}

// envAny returns the first non-empty value among the named environment variables.
func envAny(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func normalizePort(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		return addr[idx:]
	}
	return ":" + addr
}

var duplicateProtoRe = regexp.MustCompile(`^https?://https?://`)

// cleanURL collapses duplicated protocols (a recurring deployment-config typo)
// and strips trailing slashes.
func cleanURL(u string) string {
	u = duplicateProtoRe.ReplaceAllString(u, "https://")
	return strings.TrimSuffix(u, "/")
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Listen.HTTP == "" {
		return fmt.Errorf("listen.http is required")
	}

	if c.Server.FrontendURL == "" {
		return fmt.Errorf("server.frontend_url is required")
	}
	if !isHTTPURL(c.Server.FrontendURL) {
		return fmt.Errorf("server.frontend_url must be a valid HTTP(S) URL")
	}

	if c.Salesforce.ClientID == "" {
		return fmt.Errorf("salesforce.client_id is required")
	}
	if c.Salesforce.ClientSecret == "" {
		return fmt.Errorf("salesforce.client_secret is required")
	}
	if c.Salesforce.RedirectURI == "" {
		return fmt.Errorf("salesforce.redirect_uri could not be determined (set it or server.app_url)")
	}
	if !isHTTPURL(c.Salesforce.RedirectURI) {
		return fmt.Errorf("salesforce.redirect_uri must be a valid HTTP(S) URL")
	}
	if len(c.Salesforce.Scopes) == 0 {
		return fmt.Errorf("salesforce.scopes must not be empty")
	}
	if !strings.HasPrefix(c.Salesforce.APIVersion, "v") {
		return fmt.Errorf("salesforce.api_version must look like \"v59.0\"")
	}
	if c.Salesforce.RequestTimeout <= 0 {
		return fmt.Errorf("salesforce.request_timeout must be positive")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: json, text")
	}

	return nil
}

// SetupLogging configures the global slog logger based on the LogConfig.
func SetupLogging(cfg *LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Redact returns a deep-enough copy of the config with secrets redacted for safe logging
func (c *Config) Redact() *Config {
	redacted := *c
	// Deep copy slices to avoid sharing underlying arrays with the original
	if c.Salesforce.Scopes != nil {
		redacted.Salesforce.Scopes = make([]string, len(c.Salesforce.Scopes))
		copy(redacted.Salesforce.Scopes, c.Salesforce.Scopes)
	}
	if c.Server.AllowedOrigins != nil {
		redacted.Server.AllowedOrigins = make([]string, len(c.Server.AllowedOrigins))
		copy(redacted.Server.AllowedOrigins, c.Server.AllowedOrigins)
	}
	if redacted.Salesforce.ClientSecret != "" {
		redacted.Salesforce.ClientSecret = "[REDACTED]"
	}
	if redacted.Session.RedisURL != "" {
		redacted.Session.RedisURL = "[REDACTED]"
	}
	return &redacted
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
