package session

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
)

// NewAuth creates the jwtauth verifier for session tokens signed by an
// Issuer with the same secret
func NewAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// Verifier verifies session tokens from the Authorization header or the
// session cookie
func Verifier(ja *jwtauth.JWTAuth, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie(cookieName))(next)
	}
}

// TokenFromCookie extracts a session token from the named cookie
func TokenFromCookie(cookieName string) func(r *http.Request) string {
	return func(r *http.Request) string {
		cookie, err := r.Cookie(cookieName)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
}
