package provider

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds the OAuth2/OIDC settings for the external identity provider
type Config struct {
	ClientID              string   `json:"client_id"`
	ClientSecret          string   `json:"client_secret"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	UserInfoEndpoint      string   `json:"user_info_endpoint,omitempty"`
	RedirectURI           string   `json:"redirect_uri"`
	Scopes                []string `json:"scopes"`
}

// Validate checks the provider configuration before first use
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if c.AuthorizationEndpoint == "" {
		return fmt.Errorf("authorization endpoint is required")
	}
	if c.TokenEndpoint == "" {
		return fmt.Errorf("token endpoint is required")
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("redirect URI is required")
	}

	if _, err := url.Parse(c.AuthorizationEndpoint); err != nil {
		return fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if _, err := url.Parse(c.TokenEndpoint); err != nil {
		return fmt.Errorf("invalid token endpoint: %w", err)
	}
	if _, err := url.Parse(c.RedirectURI); err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}

	return nil
}

// BuildAuthURL builds the provider authorization URL for the code flow.
// All parameters are query-encoded.
func (c *Config) BuildAuthURL(state string) (string, error) {
	authURL, err := url.Parse(c.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", c.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", c.RedirectURI)
	params.Set("state", state)
	if len(c.Scopes) > 0 {
		params.Set("scope", strings.Join(c.Scopes, " "))
	}

	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}

// CallbackPath derives the local callback route from the redirect URI
func (c *Config) CallbackPath() (string, error) {
	u, err := url.Parse(c.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

// DefaultScopes returns the configured scopes, or the standard OIDC set
func (c *Config) DefaultScopes() []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return []string{"openid", "profile", "email"}
}
