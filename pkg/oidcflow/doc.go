// Package oidcflow implements the server side of the OpenID Connect
// authorization-code login flow for a pluggable CMS.
//
// The flow is a stateless request-response state machine:
//
//	START → REDIRECTED → CALLBACK_RECEIVED → STATE_VALIDATED →
//	CODE_EXCHANGED → USER_RESOLVED → CLAIMS_PROJECTED →
//	SESSION_ISSUED → RESPONSE_SENT
//
// with FAILED(reason) reachable from any state. The init endpoint issues an
// anti-CSRF state cookie and redirects the browser to the identity provider.
// The callback endpoint validates the state strictly before exchanging the
// authorization code, maps the access token to identity claims through the
// configured userinfo mapper, resolves or provisions the local user, projects
// the collection schema into session claims and sets the signed session
// cookie.
//
// No server-side state is held between redirect and callback: the browser's
// state cookie is the only link, so the flow scales horizontally across
// stateless instances. Every failure is converted to an HTTP response with a
// stable reason code; provider diagnostics and secrets stay in server logs.
package oidcflow
