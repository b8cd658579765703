package oidcflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cmskit/oidc-login/pkg/oidcstate"
	"github.com/cmskit/oidc-login/pkg/provider"
	"github.com/cmskit/oidc-login/pkg/resolver"
	"github.com/cmskit/oidc-login/pkg/schema"
	"github.com/cmskit/oidc-login/pkg/session"
	"github.com/cmskit/oidc-login/pkg/userstore"
)

type fakeExchanger struct {
	calls  atomic.Int32
	tokens *provider.TokenResponse
	err    error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*provider.TokenResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

type countingStore struct {
	userstore.Store
	calls atomic.Int32
}

func (c *countingStore) FindByEmail(ctx context.Context, collection, email string) (userstore.User, error) {
	c.calls.Add(1)
	return c.Store.FindByEmail(ctx, collection, email)
}

func (c *countingStore) Create(ctx context.Context, params userstore.CreateParams) (userstore.User, error) {
	c.calls.Add(1)
	return c.Store.Create(ctx, params)
}

type flowFixture struct {
	router    *chi.Mux
	exchanger *fakeExchanger
	store     *countingStore
	sessions  *session.Issuer
}

func identityMapper(info *provider.UserInfo) UserinfoMapper {
	return func(ctx context.Context, accessToken string) (*provider.UserInfo, error) {
		return info, nil
	}
}

func newFixture(t *testing.T, opts ...func(*flowFixture, *[]ServiceOption, *[]HandleOption)) *flowFixture {
	t.Helper()

	fixture := &flowFixture{
		exchanger: &fakeExchanger{tokens: &provider.TokenResponse{AccessToken: "at-123", TokenType: "Bearer"}},
		store:     &countingStore{Store: userstore.NewInMemoryStore()},
		sessions:  session.NewIssuer("secret", "cms"),
	}

	serviceOpts := []ServiceOption{
		WithUserinfoMapper(identityMapper(&provider.UserInfo{Subject: "sub-1", Email: "a@b.com", Name: "Ada"})),
		WithFields([]schema.Field{
			schema.Group("profile", schema.Leaf("bio", schema.KindText, true)),
		}),
	}
	handleOpts := []HandleOption{WithRedirectPathAfterLogin("/admin")}

	for _, opt := range opts {
		opt(fixture, &serviceOpts, &handleOpts)
	}

	providerConfig := &provider.Config{
		ClientID:              "client-id",
		ClientSecret:          "client-secret",
		AuthorizationEndpoint: "https://idp.example.com/authorize",
		TokenEndpoint:         "https://idp.example.com/token",
		RedirectURI:           "https://cms.example.com/oidc/callback",
		Scopes:                []string{"openid", "email"},
	}

	resolverService := resolver.NewService(fixture.store, "users", resolver.WithBcryptCost(bcrypt.MinCost))
	flow := NewService(providerConfig, fixture.exchanger, resolverService, "users", serviceOpts...)
	handle := NewHandle(flow, oidcstate.NewIssuer(), fixture.sessions, handleOpts...)

	fixture.router = chi.NewRouter()
	handle.Register(fixture.router, "/oidc/login", "/oidc/callback")
	return fixture
}

// callback issues a GET with a state cookie and the given query parameters
func (f *flowFixture) callback(t *testing.T, cookieState string, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/oidc/callback?"+query.Encode(), nil)
	if cookieState != "" {
		r.AddCookie(&http.Cookie{Name: oidcstate.CookieName, Value: cookieState})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func sessionCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var found []*http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "cms-token" {
			found = append(found, cookie)
		}
	}
	return found
}

func TestHandleInit(t *testing.T) {
	fixture := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/oidc/login", nil)
	w := httptest.NewRecorder()
	fixture.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", location.Host)
	assert.Equal(t, "code", location.Query().Get("response_type"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, oidcstate.CookieName, cookies[0].Name)
	assert.Equal(t, location.Query().Get("state"), cookies[0].Value, "cookie state matches redirected state")
}

func TestHandleCallback(t *testing.T) {
	t.Run("SuccessfulLogin", func(t *testing.T) {
		fixture := newFixture(t)

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin", w.Header().Get("Location"))

		cookies := sessionCookies(w)
		require.Len(t, cookies, 1, "exactly one session cookie")

		claims, err := fixture.sessions.Parse(cookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", claims["email"])
		assert.Equal(t, "users", claims["collection"])
		assert.NotEmpty(t, claims["id"])

		assert.Equal(t, int32(1), fixture.exchanger.calls.Load())

		user, err := fixture.store.FindByEmail(context.Background(), "users", "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, "Ada", user.Name)
	})

	t.Run("ProjectedFieldInSession", func(t *testing.T) {
		fixture := newFixture(t)

		// The account already exists with a collection field flagged for the JWT
		_, err := fixture.store.Store.Create(context.Background(), userstore.CreateParams{
			Collection:   "users",
			Email:        "a@b.com",
			PasswordHash: "hash",
			Custom:       map[string]any{"bio": "hi"},
		})
		require.NoError(t, err)

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})
		require.Equal(t, http.StatusFound, w.Code)

		cookies := sessionCookies(w)
		require.Len(t, cookies, 1)

		claims, err := fixture.sessions.Parse(cookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, "hi", claims["bio"])
	})

	t.Run("StateCookieClearedAfterUse", func(t *testing.T) {
		fixture := newFixture(t)

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		var stateCookie *http.Cookie
		for _, cookie := range w.Result().Cookies() {
			if cookie.Name == oidcstate.CookieName {
				stateCookie = cookie
			}
		}
		require.NotNil(t, stateCookie)
		assert.Empty(t, stateCookie.Value)
		assert.Negative(t, stateCookie.MaxAge)
	})

	t.Run("StateMismatch", func(t *testing.T) {
		fixture := newFixture(t)

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-2"}, "code": {"auth-code"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int32(0), fixture.exchanger.calls.Load(), "no exchange on forged callbacks")
		assert.Empty(t, sessionCookies(w))
	})

	t.Run("StateCookieAbsent", func(t *testing.T) {
		fixture := newFixture(t)

		w := fixture.callback(t, "", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int32(0), fixture.exchanger.calls.Load())
	})

	t.Run("MissingCode", func(t *testing.T) {
		fixture := newFixture(t)

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int32(0), fixture.store.calls.Load(), "no store call without a code")
		assert.Empty(t, sessionCookies(w))
	})

	t.Run("ExchangeRejected", func(t *testing.T) {
		fixture := newFixture(t, func(f *flowFixture, _ *[]ServiceOption, _ *[]HandleOption) {
			f.exchanger.err = &provider.ExchangeError{StatusCode: http.StatusBadRequest, Body: `{"error":"invalid_grant"}`}
		})

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Empty(t, sessionCookies(w), "no session cookie on exchange failure")
		assert.Equal(t, int32(0), fixture.store.calls.Load(), "no store call on exchange failure")
		assert.NotContains(t, w.Body.String(), "invalid_grant", "provider diagnostics stay out of responses")
	})

	t.Run("ExchangeTimeout", func(t *testing.T) {
		fixture := newFixture(t, func(f *flowFixture, _ *[]ServiceOption, _ *[]HandleOption) {
			f.exchanger.err = context.DeadlineExceeded
		})

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "exchange_timeout")
	})

	t.Run("IdentityMissingEmail", func(t *testing.T) {
		fixture := newFixture(t, func(_ *flowFixture, serviceOpts *[]ServiceOption, _ *[]HandleOption) {
			*serviceOpts = append(*serviceOpts, WithUserinfoMapper(identityMapper(&provider.UserInfo{Subject: "sub-1"})))
		})

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no_email")
		assert.Empty(t, sessionCookies(w))
		assert.Equal(t, int32(0), fixture.store.calls.Load(), "no user created without an email")
	})

	t.Run("NoUserinfoMapperConfigured", func(t *testing.T) {
		fixture := newFixture(t, func(_ *flowFixture, serviceOpts *[]ServiceOption, _ *[]HandleOption) {
			*serviceOpts = append(*serviceOpts, WithUserinfoMapper(nil))
		})

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "unconfigured")
	})

	t.Run("NoRedirectPathRespondsOK", func(t *testing.T) {
		fixture := newFixture(t, func(_ *flowFixture, _ *[]ServiceOption, handleOpts *[]HandleOption) {
			*handleOpts = []HandleOption{}
		})

		w := fixture.callback(t, "state-1", url.Values{"state": {"state-1"}, "code": {"auth-code"}})

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, sessionCookies(w), 1)
	})
}
