package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/cmskit/oidc-login/pkg/provider"
	"github.com/cmskit/oidc-login/pkg/session"
)

// AppConfig holds the server and host-framework settings
type AppConfig struct {
	Addr                   string `env:"SERVER_ADDR" env-default:":4000"`
	UserCollectionSlug     string `env:"USER_COLLECTION_SLUG" env-default:"users"`
	RedirectPathAfterLogin string `env:"REDIRECT_PATH_AFTER_LOGIN" env-default:"/admin"`
}

// OIDCConfig holds the identity-provider settings
type OIDCConfig struct {
	ClientID              string `env:"OIDC_CLIENT_ID"`
	ClientSecret          string `env:"OIDC_CLIENT_SECRET"`
	AuthorizationEndpoint string `env:"OIDC_AUTHORIZATION_ENDPOINT"`
	TokenEndpoint         string `env:"OIDC_TOKEN_ENDPOINT"`
	UserInfoEndpoint      string `env:"OIDC_USERINFO_ENDPOINT"`
	RedirectURI           string `env:"OIDC_REDIRECT_URI"`
	Scope                 string `env:"OIDC_SCOPE" env-default:"openid profile email"`
	InitPath              string `env:"OIDC_INIT_PATH" env-default:"/oidc/login"`
	CallbackPath          string `env:"OIDC_CALLBACK_PATH"`
	StateTTLSeconds       int    `env:"OIDC_STATE_TTL_SECONDS" env-default:"300"`
}

// ProviderConfig converts the env settings to a provider configuration
func (c OIDCConfig) ProviderConfig() *provider.Config {
	return &provider.Config{
		ClientID:              c.ClientID,
		ClientSecret:          c.ClientSecret,
		AuthorizationEndpoint: c.AuthorizationEndpoint,
		TokenEndpoint:         c.TokenEndpoint,
		UserInfoEndpoint:      c.UserInfoEndpoint,
		RedirectURI:           c.RedirectURI,
		Scopes:                strings.Fields(c.Scope),
	}
}

// StateTTL returns the state cookie lifetime
func (c OIDCConfig) StateTTL() time.Duration {
	return time.Duration(c.StateTTLSeconds) * time.Second
}

// ResolveCallbackPath returns the configured callback path, falling back to
// the redirect URI's path
func (c OIDCConfig) ResolveCallbackPath() (string, error) {
	if c.CallbackPath != "" {
		return c.CallbackPath, nil
	}
	return c.ProviderConfig().CallbackPath()
}

// SessionConfig holds the session token and cookie settings
type SessionConfig struct {
	Secret          string `env:"SESSION_SECRET" env-default:"unsafe-dev-secret"`
	CookiePrefix    string `env:"COOKIE_PREFIX" env-default:"cms"`
	TokenTTLSeconds int    `env:"TOKEN_TTL_SECONDS" env-default:"7200"`
	CookieSecure    bool   `env:"COOKIE_SECURE" env-default:"true"`
	CookieSameSite  string `env:"COOKIE_SAME_SITE" env-default:"lax"`
	CookieDomain    string `env:"COOKIE_DOMAIN"`
}

// TokenTTL returns the session token lifetime
func (c SessionConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

// CookiePolicy converts the env settings to the session cookie policy
func (c SessionConfig) CookiePolicy() session.CookiePolicy {
	return session.CookiePolicy{
		Secure:   c.CookieSecure,
		SameSite: ParseSameSite(c.CookieSameSite),
		Domain:   c.CookieDomain,
	}
}

// DbConfig holds the user store settings. An empty URL selects the
// in-memory store.
type DbConfig struct {
	URL string `env:"DATABASE_URL"`
}

// SMTPConfig holds the optional welcome-mail settings. Notifications are
// disabled when Host is empty.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// Config is the full configuration surface of the server
type Config struct {
	App     AppConfig
	OIDC    OIDCConfig
	Session SessionConfig
	Db      DbConfig
	SMTP    SMTPConfig
}

// ParseSameSite maps a policy string to the cookie attribute, defaulting to
// Lax
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteLaxMode
	}
}
