package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	authorizePath     = "/auth/dialog/authorize"
	tokenExchangePath = "/auth/tokens/exchange"

	// defaultScope is what the Misfit dialog grants a registered app.
	defaultScope = "public,birthday,email"

	// tokenExchangeTimeout bounds the single server-to-server exchange POST.
	tokenExchangeTimeout = 10 * time.Second
)

// openBrowserFn is swapped out by tests to drive the redirect themselves.
var openBrowserFn = openBrowser

// DeniedError means the provider redirected back with an error instead of a
// code (the user declined consent, or the request was rejected).
type DeniedError struct {
	Reason      string
	Description string
}

func (e *DeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s: %s", e.Reason, e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// ExchangeError means the code-for-token exchange failed. Status is the HTTP
// status the provider returned, or 0 when the request never completed.
type ExchangeError struct {
	Status int
	Detail string
}

func (e *ExchangeError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("token exchange failed: %s", e.Detail)
	}
	return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Detail)
}

// authProvider holds the provider endpoints and local redirect settings for
// one authorize invocation. Built once, never mutated.
type authProvider struct {
	authURL      string
	tokenURL     string
	scope        string
	callbackPort int
}

func (p authProvider) redirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/", p.callbackPort)
}

// newAuthProvider derives the provider configuration from the base API URL.
func newAuthProvider(baseURL string, callbackPort int) authProvider {
	return authProvider{
		authURL:      baseURL + authorizePath,
		tokenURL:     baseURL + tokenExchangePath,
		scope:        getConfig("", "MISFIT_SCOPE", defaultScope),
		callbackPort: callbackPort,
	}
}

// buildAuthURL constructs the consent-dialog URL the browser is sent to.
func buildAuthURL(prov authProvider, clientID, state string) string {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("redirect_uri", prov.redirectURI())
	params.Set("response_type", "code")
	params.Set("scope", prov.scope)
	params.Set("state", state)

	return prov.authURL + "?" + params.Encode()
}

// runAuthorizeFlow performs the full authorization-code flow and returns the
// access token. Every failure is terminal for the invocation; there are no
// retries. The callback socket is released on every exit path.
func runAuthorizeFlow(ctx context.Context, prov authProvider, clientID, clientSecret string) (string, error) {
	state := uuid.NewString()
	authURL := buildAuthURL(prov, clientID, state)

	// Bind before launching the browser so a fast redirect is never missed.
	listener, err := newCallbackListener(ctx, prov.callbackPort, state)
	if err != nil {
		return "", err
	}
	defer listener.close()

	fmt.Println("Opening the Misfit authorization page in your browser...")
	fmt.Printf("\n  %s\n\n", authURL)

	if err := openBrowserFn(authURL); err != nil {
		fmt.Println("Could not open browser automatically. Please open the URL above manually.")
	} else {
		fmt.Println("Browser opened. Please complete authorization in your browser.")
	}

	fmt.Printf("Waiting for callback on %s (up to %s)...\n", prov.redirectURI(), callbackTimeout)
	result, err := listener.wait(ctx, callbackTimeout)
	if err != nil {
		return "", err
	}
	if result.errCode != "" {
		return "", &DeniedError{Reason: result.errCode, Description: result.errDesc}
	}
	fmt.Println("Authorization code received!")

	fmt.Println("Exchanging authorization code for an access token...")
	return exchangeCode(ctx, prov, clientID, clientSecret, result.code)
}

// exchangeCode trades the authorization code for an access token. The code
// is single-use, so the POST is deliberately not retried: an ambiguous
// failure must surface to the user rather than burn the code on a replay.
func exchangeCode(ctx context.Context, prov authProvider, clientID, clientSecret, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", prov.redirectURI())
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		prov.tokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &ExchangeError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExchangeError{Detail: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(body))
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != "" {
			detail = errResp.Error
			if errResp.ErrorDescription != "" {
				detail += ": " + errResp.ErrorDescription
			}
		}
		return "", &ExchangeError{Status: resp.StatusCode, Detail: detail}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &ExchangeError{Status: resp.StatusCode, Detail: fmt.Sprintf("failed to parse token response: %v", err)}
	}
	if tokenResp.AccessToken == "" {
		return "", &ExchangeError{Status: resp.StatusCode, Detail: "token response has no access_token"}
	}

	return tokenResp.AccessToken, nil
}

var (
	flagClientID     string
	flagClientSecret string
	flagCallbackPort int
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize the CLI with the Misfit API via your browser",
	Long: `Authorize launches your browser to the Misfit consent page, captures the
redirect on a local listener, exchanges the authorization code for an access
token, and writes all credentials to the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID := getConfig(flagClientID, "MISFIT_CLIENT_ID", "")
		clientSecret := getConfig(flagClientSecret, "MISFIT_CLIENT_SECRET", "")
		if clientID == "" || clientSecret == "" {
			return errors.New(`client_id and client_secret are required; provide them via
  --client_id / --client_secret flags,
  MISFIT_CLIENT_ID / MISFIT_CLIENT_SECRET environment variables,
  or a .env file`)
		}

		base, err := apiBaseURL()
		if err != nil {
			return err
		}
		prov := newAuthProvider(base, flagCallbackPort)

		token, err := runAuthorizeFlow(cmd.Context(), prov, clientID, clientSecret)
		if err != nil {
			return err
		}

		creds := Credentials{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			AccessToken:  token,
		}
		if err := saveCredentials(configPath, creds); err != nil {
			return fmt.Errorf("credentials were NOT saved: %w", err)
		}
		return nil
	},
}

func init() {
	authorizeCmd.Flags().StringVar(&flagClientID, "client_id", "", "App key of your Misfit app")
	authorizeCmd.Flags().StringVar(&flagClientSecret, "client_secret", "", "App secret of your Misfit app")
	authorizeCmd.Flags().IntVar(&flagCallbackPort, "port", 8080,
		"Local port for the redirect listener (must match the redirect URI registered with Misfit)")

	rootCmd.AddCommand(authorizeCmd)
}
