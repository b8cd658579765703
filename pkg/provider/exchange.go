package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenResponse represents the OAuth2 token endpoint response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// ExchangeError carries the provider's raw diagnostic body when the token
// endpoint rejects an exchange. The body is for server-side logs only.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token request failed with status %d: %s", e.StatusCode, e.Body)
}

// TokenClient exchanges authorization codes for tokens against the provider's
// token endpoint. Exchanges are never retried: the code is single-use and a
// retry would fail identically.
type TokenClient struct {
	config     *Config
	httpClient *http.Client
}

// TokenClientOption is a function that configures a TokenClient
type TokenClientOption func(*TokenClient)

// WithHTTPClient sets the HTTP client used for the token exchange
func WithHTTPClient(client *http.Client) TokenClientOption {
	return func(c *TokenClient) {
		c.httpClient = client
	}
}

// NewTokenClient creates a token exchange client for the given provider
func NewTokenClient(config *Config, opts ...TokenClientOption) *TokenClient {
	client := &TokenClient{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Exchange posts the authorization code to the token endpoint and parses the
// token response. A non-2xx status yields an *ExchangeError; a response
// without an access token is a parse failure.
func (c *TokenClient) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.config.ClientID)
	data.Set("client_secret", c.config.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", c.config.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResponse TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	slog.Info("Token exchange successful", "token_type", tokenResponse.TokenType, "expires_in", tokenResponse.ExpiresIn)
	return &tokenResponse, nil
}
