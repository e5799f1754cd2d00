// Package oauth provides authenticators that obtain Salesforce OAuth
// credentials for the API client.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forcekit/sf-bulk-client/pkg/client"
	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is the production Salesforce login endpoint.
const DefaultEndpoint = "https://login.salesforce.com"

const tokenPath = "/services/oauth2/token"

// Config holds the settings for the password-grant authenticator.
type Config struct {
	// Endpoint is the login URL (default: DefaultEndpoint).
	Endpoint string

	// ClientID is the connected app consumer key (required).
	ClientID string

	// ClientSecret is the connected app consumer secret (required).
	ClientSecret string

	// Username and Password identify the integration user (required).
	Username string
	Password string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// PasswordAuthenticator returns an authenticate function implementing
// the OAuth 2.0 password grant. Each invocation posts the grant form to
// the login endpoint and decodes the returned token.
func PasswordAuthenticator(cfg Config) (client.AuthenticateFunc, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client id and client secret are required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := log.With().Str("component", "oauth").Logger()

	return func(ctx context.Context) (*client.Credential, error) {
		form := url.Values{
			"grant_type":    {"password"},
			"client_id":     {cfg.ClientID},
			"client_secret": {cfg.ClientSecret},
			"username":      {cfg.Username},
			"password":      {cfg.Password},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			endpoint+tokenPath, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("create token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send token request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 65536))
		if err != nil {
			return nil, fmt.Errorf("read token response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			logger.Warn().
				Int("status", resp.StatusCode).
				Msg("Token request rejected")
			return nil, &client.APIError{
				StatusCode: resp.StatusCode,
				Kind:       client.KindAuthentication,
				Message:    strings.TrimSpace(string(body)),
			}
		}

		var cred client.Credential
		if err := json.Unmarshal(body, &cred); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}

		logger.Debug().Str("instance_url", cred.InstanceURL).Msg("Token obtained")
		return &cred, nil
	}, nil
}
