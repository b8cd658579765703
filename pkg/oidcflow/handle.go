package oidcflow

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/cmskit/oidc-login/pkg/flowerr"
	"github.com/cmskit/oidc-login/pkg/oidcstate"
	"github.com/cmskit/oidc-login/pkg/session"
)

// ErrorResponse is the JSON body for failed login attempts. It carries the
// stable failure reason only; diagnostics stay in server logs.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Handle serves the redirect and callback endpoints of the login flow
type Handle struct {
	flow          *Service
	states        *oidcstate.Issuer
	sessions      *session.Issuer
	redirectAfter string
}

// HandleOption is a function that configures a Handle
type HandleOption func(*Handle)

// WithRedirectPathAfterLogin sets where the browser lands after a
// successful login. When empty the callback responds 200 instead of
// redirecting.
func WithRedirectPathAfterLogin(path string) HandleOption {
	return func(h *Handle) {
		h.redirectAfter = path
	}
}

// NewHandle creates the HTTP handler for the login flow
func NewHandle(flow *Service, states *oidcstate.Issuer, sessions *session.Issuer, opts ...HandleOption) *Handle {
	handle := &Handle{
		flow:     flow,
		states:   states,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(handle)
	}
	return handle
}

// Register mounts the flow's endpoints on the router
func (h *Handle) Register(r chi.Router, initPath, callbackPath string) {
	r.Get(initPath, h.HandleInit)
	r.Get(callbackPath, h.HandleCallback)
}

// HandleInit starts a login attempt: issues a fresh state, attaches the
// state cookie and redirects the browser to the provider.
func (h *Handle) HandleInit(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(w)
	if err != nil {
		slog.Error("Failed to issue login state", "err", err)
		h.fail(w, r, flowerr.Wrap(err, flowerr.CodeConfig, flowerr.ReasonUnconfigured, "failed to issue state"))
		return
	}

	authURL, err := h.flow.BuildAuthURL(state)
	if err != nil {
		slog.Error("Failed to build authorization URL", "err", err)
		h.fail(w, r, err)
		return
	}

	slog.Info("Redirecting to identity provider")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback finishes a login attempt. State validation runs strictly
// before the code exchange so forged callbacks never cost an exchange.
func (h *Handle) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	queryState := r.URL.Query().Get("state")
	cookieState := oidcstate.FromRequest(r)
	if !oidcstate.Validate(queryState, cookieState) {
		slog.Warn("Login callback rejected: state mismatch or missing")
		h.fail(w, r, flowerr.New(flowerr.CodeCSRF, flowerr.ReasonInvalidState, "state mismatch or missing"))
		return
	}

	// The state is single use
	h.states.Clear(w)

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("Login callback rejected: missing code")
		h.fail(w, r, flowerr.New(flowerr.CodeProtocol, flowerr.ReasonMissingCode, "authorization code is required"))
		return
	}

	claims, err := h.flow.Callback(ctx, code)
	if err != nil {
		slog.Error("Login callback failed", "reason", flowerr.GetReason(err), "err", err)
		h.fail(w, r, err)
		return
	}

	if _, err := h.sessions.Issue(w, claims); err != nil {
		slog.Error("Failed to issue session", "err", err)
		h.fail(w, r, flowerr.Wrap(err, flowerr.CodeConfig, flowerr.ReasonUnconfigured, "failed to issue session"))
		return
	}

	slog.Info("Login successful", "collection", h.flow.collection)

	if h.redirectAfter == "" {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "ok"})
		return
	}
	http.Redirect(w, r, h.redirectAfter, http.StatusFound)
}

// fail converts any error to an HTTP response. No request is ever left
// unanswered; bodies never carry tokens or secrets.
func (h *Handle) fail(w http.ResponseWriter, r *http.Request, err error) {
	var flowErr *flowerr.Error
	if !errors.As(err, &flowErr) {
		flowErr = flowerr.Wrap(err, flowerr.CodeStore, flowerr.ReasonStoreError, "login failed")
	}

	render.Status(r, flowErr.HTTPStatus())
	render.JSON(w, r, ErrorResponse{
		Error:            flowErr.Reason,
		ErrorDescription: flowErr.Message,
	})
}
