package provider

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ClientID:              "client-id",
		ClientSecret:          "client-secret",
		AuthorizationEndpoint: "https://idp.example.com/authorize",
		TokenEndpoint:         "https://idp.example.com/token",
		UserInfoEndpoint:      "https://idp.example.com/userinfo",
		RedirectURI:           "https://cms.example.com/oidc/callback",
		Scopes:                []string{"openid", "profile", "email"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("MissingClientID", func(t *testing.T) {
		config := validConfig()
		config.ClientID = ""
		assert.ErrorContains(t, config.Validate(), "client ID")
	})

	t.Run("MissingClientSecret", func(t *testing.T) {
		config := validConfig()
		config.ClientSecret = ""
		assert.ErrorContains(t, config.Validate(), "client secret")
	})

	t.Run("MissingTokenEndpoint", func(t *testing.T) {
		config := validConfig()
		config.TokenEndpoint = ""
		assert.ErrorContains(t, config.Validate(), "token endpoint")
	})

	t.Run("MissingRedirectURI", func(t *testing.T) {
		config := validConfig()
		config.RedirectURI = ""
		assert.ErrorContains(t, config.Validate(), "redirect URI")
	})
}

func TestBuildAuthURL(t *testing.T) {
	t.Run("CodeFlowParameters", func(t *testing.T) {
		authURL, err := validConfig().BuildAuthURL("my-state")
		require.NoError(t, err)

		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.Equal(t, "idp.example.com", parsed.Host)
		assert.Equal(t, "/authorize", parsed.Path)

		query := parsed.Query()
		assert.Equal(t, "code", query.Get("response_type"))
		assert.Equal(t, "client-id", query.Get("client_id"))
		assert.Equal(t, "https://cms.example.com/oidc/callback", query.Get("redirect_uri"))
		assert.Equal(t, "my-state", query.Get("state"))
		assert.Equal(t, "openid profile email", query.Get("scope"))
	})

	t.Run("ParametersAreEncoded", func(t *testing.T) {
		config := validConfig()
		config.ClientID = "id with spaces&and=chars"
		authURL, err := config.BuildAuthURL("a+b/c")
		require.NoError(t, err)

		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.Equal(t, "id with spaces&and=chars", parsed.Query().Get("client_id"))
		assert.Equal(t, "a+b/c", parsed.Query().Get("state"))
	})

	t.Run("NoScopes", func(t *testing.T) {
		config := validConfig()
		config.Scopes = nil
		authURL, err := config.BuildAuthURL("state")
		require.NoError(t, err)

		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.False(t, parsed.Query().Has("scope"))
	})
}

func TestCallbackPath(t *testing.T) {
	t.Run("PathFromRedirectURI", func(t *testing.T) {
		path, err := validConfig().CallbackPath()
		require.NoError(t, err)
		assert.Equal(t, "/oidc/callback", path)
	})

	t.Run("RootWhenNoPath", func(t *testing.T) {
		config := validConfig()
		config.RedirectURI = "https://cms.example.com"
		path, err := config.CallbackPath()
		require.NoError(t, err)
		assert.Equal(t, "/", path)
	})
}

func TestDefaultScopes(t *testing.T) {
	t.Run("ConfiguredScopes", func(t *testing.T) {
		config := validConfig()
		config.Scopes = []string{"openid"}
		assert.Equal(t, []string{"openid"}, config.DefaultScopes())
	})

	t.Run("StandardSetWhenEmpty", func(t *testing.T) {
		config := validConfig()
		config.Scopes = nil
		assert.Equal(t, []string{"openid", "profile", "email"}, config.DefaultScopes())
	})
}
