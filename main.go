package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.2.0"

// defaultAPIURL is the Misfit cloud endpoint. Override with MISFIT_API_URL
// to point the tool at a staging or fake provider.
const defaultAPIURL = "https://api.misfitwearables.com"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "misfit",
	Short:   "Command-line client for the Misfit fitness-tracker API",
	Version: version,
	Long: `misfit is a CLI client for the Misfit web API.

Run "misfit authorize" once to obtain an access token via your browser;
credentials are stored in a config file (default ./misfit.cfg) and reused
by the resource commands (profile, device, goal, summary, session, sleep).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nInterrupted.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"./misfit.cfg",
		"Path to the credentials config file",
	)
}

// getConfig resolves a setting with flag > environment > default precedence.
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// apiBaseURL returns the provider base URL, validated.
func apiBaseURL() (string, error) {
	base := getConfig("", "MISFIT_API_URL", defaultAPIURL)
	if err := validateAPIURL(base); err != nil {
		return "", fmt.Errorf("invalid MISFIT_API_URL: %w", err)
	}
	return base, nil
}

func validateAPIURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("API URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
