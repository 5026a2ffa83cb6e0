package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/svbridge/validation-bridge/internal/app"
	"github.com/svbridge/validation-bridge/internal/config"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitConfig  = 3
)

var rootCmd = &cobra.Command{
	Use:   "validation-bridge",
	Short: "Salesforce Validation Rules Bridge",
	Long: `Backend bridge between a browser frontend and the Salesforce Tooling API.

It authenticates users against Salesforce with OAuth 2.0 authorization code
plus PKCE, keeps their tokens in server-side sessions, and proxies
validation-rule listing and toggling so tokens never reach the browser.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge server",
	Long: `Start the HTTP server.

The server:
  - Handles the OAuth login and callback flow against Salesforce
  - Manages browser sessions in Redis or in-process memory
  - Proxies Tooling API validation-rule requests for logged-in users`,
	RunE: runServe,
}

// overrideExitCode is set by subcommands (check-config) so main() can call
// os.Exit() after cobra finishes.  This avoids calling os.Exit() inside RunE
// which would bypass deferred functions.  -1 means "use default".
var overrideExitCode = -1

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display version, commit hash, and build date.`,
	Run:   runVersion,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration",
	Long: `Load and validate the configuration without starting the server.

Checks for:
  - Valid YAML syntax
  - Required fields present
  - Valid URLs

Exit codes:
  0 = Configuration is valid
  3 = Configuration error`,
	RunE: runCheckConfig,
}

func init() {
	// Global flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to configuration file (optional, environment variables apply on top)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error) - overrides config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (json, text) - overrides config file")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}

	// If a subcommand set a specific exit code, use it.
	// This is done outside RunE so deferred functions run properly.
	if overrideExitCode >= 0 {
		os.Exit(overrideExitCode)
	}
}

// runServe starts the server
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override log settings from flags if provided
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	// Initialize structured logging based on config
	config.SetupLogging(&cfg.Log)

	slog.Info("starting validation rules bridge",
		"version", version,
		"commit", commit,
		"build_date", buildDate,
		"environment", cfg.Server.Environment,
	)

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to create application", "error", err)
		return fmt.Errorf("failed to create application: %w", err)
	}

	return a.Run()
}

// runVersion displays version information
func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("validation-bridge version %s\n", version)
	fmt.Printf("  Commit:     %s\n", commit)
	fmt.Printf("  Build date: %s\n", buildDate)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

// runCheckConfig validates the configuration
func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", err)
		overrideExitCode = ExitConfig
		return nil // exit code handled via overrideExitCode
	}

	red := cfg.Redact()

	fmt.Println("Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  HTTP Listen:     %s\n", red.Listen.HTTP)
	fmt.Printf("  Environment:     %s\n", red.Server.Environment)
	fmt.Printf("  App URL:         %s\n", red.Server.AppURL)
	fmt.Printf("  Frontend URL:    %s\n", red.Server.FrontendURL)
	fmt.Printf("  Client ID:       %s\n", red.Salesforce.ClientID)
	fmt.Printf("  Redirect URI:    %s\n", red.Salesforce.RedirectURI)
	fmt.Printf("  Scopes:          %v\n", red.Salesforce.Scopes)
	fmt.Printf("  API Version:     %s\n", red.Salesforce.APIVersion)
	fmt.Printf("  Session TTL:     %d seconds\n", red.Session.TTL)
	fmt.Printf("  Session Cookie:  %s\n", red.Session.CookieName)
	fmt.Printf("  Redis URL:       %s\n", redisSummary(cfg.Session.RedisURL))
	fmt.Printf("  Log Level:       %s\n", red.Log.Level)
	fmt.Printf("  Log Format:      %s\n", red.Log.Format)

	// Validate already rejected empty client_secret, so it is always set here.
	fmt.Println("\n  Client Secret:   [SET]")

	return nil
}

func redisSummary(url string) string {
	if url == "" {
		return "[NOT SET] (in-memory session store)"
	}
	return "[SET]"
}
