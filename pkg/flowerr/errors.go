package flowerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a login-flow failure
type Code string

const (
	// Configuration errors: missing userinfo mapper, missing client credentials.
	// Fatal at first use, never retried.
	CodeConfig Code = "CONFIG"

	// CSRF errors: state mismatch or missing state. The attempt is abandoned
	// and the user must restart the login.
	CodeCSRF Code = "CSRF"

	// Protocol errors: missing authorization code, malformed token response.
	CodeProtocol Code = "PROTOCOL"

	// Upstream errors: token endpoint non-2xx or network failure. Not retried
	// because the authorization code is single-use.
	CodeUpstream Code = "UPSTREAM"

	// Store errors: user lookup or create failure. Safe to retry the whole
	// login from the browser.
	CodeStore Code = "STORE"
)

// Well-known failure reasons surfaced in responses and logs
const (
	ReasonInvalidState    = "invalid_state"
	ReasonMissingCode     = "missing_code"
	ReasonExchangeError   = "exchange_error"
	ReasonExchangeTimeout = "exchange_timeout"
	ReasonNoEmail         = "no_email"
	ReasonUnconfigured    = "unconfigured"
	ReasonStoreError      = "store_error"
	ReasonStoreTimeout    = "store_timeout"
)

// Error is a structured login-flow error with a code, a stable reason and a
// wrapped underlying error. Underlying errors may carry provider diagnostics
// and are for server-side logs only, never for response bodies.
type Error struct {
	Code    Code
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the flow responds with for this error
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeCSRF, CodeProtocol:
		return http.StatusBadRequest
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeConfig:
		return http.StatusInternalServerError
	case CodeStore:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new Error with the given code, reason and message
func New(code Code, reason, message string) *Error {
	return &Error{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

// Wrap wraps an existing error with code and reason
func Wrap(err error, code Code, reason, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// IsCode checks whether an error carries a specific flow error code
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetReason extracts the stable failure reason from an error.
// Unstructured errors report as a store error.
func GetReason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonStoreError
}
