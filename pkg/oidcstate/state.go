package oidcstate

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

// CookieName is the cookie that binds a callback to its originating redirect
const CookieName = "oidc_state"

// DefaultTTL bounds how long a login attempt may stay in flight
const DefaultTTL = 5 * time.Minute

// stateBytes is the entropy of the state token (128 bits minimum required,
// 16 bytes hex-encoded here)
const stateBytes = 16

// Issuer creates and checks the anti-CSRF state value round-tripped through
// the browser between the authorization redirect and the provider callback.
type Issuer struct {
	TTL    time.Duration
	Secure bool
}

// Option is a function that configures an Issuer
type Option func(*Issuer)

// WithTTL sets how long an issued state cookie stays valid
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		i.TTL = ttl
	}
}

// WithSecure controls the Secure attribute on the state cookie
func WithSecure(secure bool) Option {
	return func(i *Issuer) {
		i.Secure = secure
	}
}

// NewIssuer creates a state issuer with secure defaults
func NewIssuer(opts ...Option) *Issuer {
	issuer := &Issuer{
		TTL:    DefaultTTL,
		Secure: true,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// Issue generates a cryptographically strong state token and attaches it to
// the response as a short-lived cookie.
func (i *Issuer) Issue(w http.ResponseWriter) (string, error) {
	bytes := make([]byte, stateBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(bytes)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(i.TTL.Seconds()),
		HttpOnly: true,
		Secure:   i.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// Validate reports whether the state echoed back by the provider matches the
// state carried in the browser cookie. Both must be present; comparison is
// constant time.
func Validate(queryState, cookieState string) bool {
	if queryState == "" || cookieState == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(queryState), []byte(cookieState)) == 1
}

// FromRequest extracts the state cookie value from a callback request.
// Returns an empty string if the cookie is absent or expired.
func FromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Clear invalidates the state cookie so a state value is never replayable
func (i *Issuer) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
