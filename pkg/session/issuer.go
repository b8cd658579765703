package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL matches the host framework's default token expiration
const DefaultTTL = 2 * time.Hour

// CookiePolicy drives the security attributes of the session cookie.
// HttpOnly is not part of the policy: the session cookie is never readable
// by scripts.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// DefaultCookiePolicy returns the production-safe policy: Secure on,
// SameSite Lax
func DefaultCookiePolicy() CookiePolicy {
	return CookiePolicy{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Issuer signs session claims into a JWT and emits the session cookie with
// the collection's security attributes.
type Issuer struct {
	secret []byte
	prefix string
	ttl    time.Duration
	policy CookiePolicy
}

// IssuerOption is a function that configures an Issuer
type IssuerOption func(*Issuer)

// WithTTL sets the session token lifetime
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

// WithCookiePolicy sets the cookie security attributes
func WithCookiePolicy(policy CookiePolicy) IssuerOption {
	return func(i *Issuer) {
		i.policy = policy
	}
}

// NewIssuer creates a session issuer. The cookie is named <prefix>-token.
func NewIssuer(secret, prefix string, opts ...IssuerOption) *Issuer {
	issuer := &Issuer{
		secret: []byte(secret),
		prefix: prefix,
		ttl:    DefaultTTL,
		policy: DefaultCookiePolicy(),
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// CookieName returns the name of the session cookie
func (i *Issuer) CookieName() string {
	return i.prefix + "-token"
}

// TTL returns the session token lifetime
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Sign signs the claim set with the symmetric secret and an expiration of
// the issuer's TTL. Claims land at the root of the token payload.
func (i *Issuer) Sign(claims map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(i.ttl)

	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		mapClaims[k] = v
	}
	mapClaims["exp"] = jwt.NewNumericDate(expires)
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["jti"] = uuid.New().String()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, expires, nil
}

// Issue signs the claims and sets the session cookie on the response.
// Returns the signed token for hosts that also deliver it out of band.
func (i *Issuer) Issue(w http.ResponseWriter, claims map[string]any) (string, error) {
	signed, expires, err := i.Sign(claims)
	if err != nil {
		return "", err
	}

	cookie := &http.Cookie{
		Name:     i.CookieName(),
		Value:    signed,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   i.policy.Secure,
		SameSite: i.policy.SameSite,
	}
	if i.policy.Domain != "" {
		cookie.Domain = i.policy.Domain
	}

	http.SetCookie(w, cookie)
	return signed, nil
}

// Parse validates a session token and returns its claims
func (i *Issuer) Parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}
