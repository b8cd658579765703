package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// UserInfo represents the verified identity returned by the provider's
// userinfo endpoint. Immutable once obtained.
type UserInfo struct {
	Subject       string `json:"sub"`
	Issuer        string `json:"iss,omitempty"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// UserInfoClient fetches identity claims from the provider's userinfo
// endpoint using a bearer access token. It is the default implementation of
// the flow's userinfo mapper; integrators may substitute their own.
type UserInfoClient struct {
	config     *Config
	httpClient *http.Client
}

// NewUserInfoClient creates a userinfo client for the given provider
func NewUserInfoClient(config *Config, opts ...TokenClientOption) *UserInfoClient {
	tc := &TokenClient{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(tc)
	}
	return &UserInfoClient{config: tc.config, httpClient: tc.httpClient}
}

// Fetch retrieves and parses identity claims for the given access token
func (c *UserInfoClient) Fetch(ctx context.Context, accessToken string) (*UserInfo, error) {
	if c.config.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("user info endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make user info request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	userInfo, err := parseUserInfo(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}

	slog.Info("User info retrieved", "sub", userInfo.Subject, "email", userInfo.Email)
	return userInfo, nil
}

// parseUserInfo normalizes a generic OIDC userinfo document. Providers that
// return a numeric id instead of sub still map to a stable subject.
func parseUserInfo(data []byte) (*UserInfo, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user info: %w", err)
	}

	userInfo := &UserInfo{
		Subject:       getStringValue(raw, "sub"),
		Issuer:        getStringValue(raw, "iss"),
		Email:         getStringValue(raw, "email"),
		EmailVerified: getBoolValue(raw, "email_verified"),
		Name:          getStringValue(raw, "name"),
		GivenName:     getStringValue(raw, "given_name"),
		FamilyName:    getStringValue(raw, "family_name"),
		Picture:       getStringValue(raw, "picture"),
	}
	if userInfo.Subject == "" {
		if id, ok := raw["id"]; ok {
			userInfo.Subject = fmt.Sprintf("%v", id)
		}
	}

	if userInfo.Subject == "" {
		return nil, fmt.Errorf("no subject found in user info")
	}

	return userInfo, nil
}

func getStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getBoolValue(data map[string]interface{}, key string) bool {
	if val, ok := data[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
