package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	// RedirectURI is the in-app destination after a successful login.
	RedirectURI string
	// RequestedUser selects a mock test user. Ignored by protocol drivers.
	RequestedUser string
}

// CallbackInput groups the identity-provider response parameters. Which
// fields are populated depends on the active protocol: Code/State for OIDC,
// SAMLResponse/RelayState for SAML POST binding, MockUserID for mock.
type CallbackInput struct {
	Code         string
	State        string
	SAMLResponse string
	RelayState   string
	MockUserID   string
}

// Redirect is the instruction returned by login initiation and logout.
// An empty URL means the operation completed locally with no redirect.
type Redirect struct {
	URL string
}

// Driver implements login-initiate, callback-complete, and logout for one
// authentication protocol. Exactly one driver is active per process lifetime.
//
// BeginLogin may write transient per-attempt artifacts (PKCE verifier, state
// nonce, mock selection) into the session's Pending field; the caller is
// responsible for persisting the session afterwards. CompleteLogin consumes
// those artifacts; the orchestrator clears them on both success and failure.
type Driver interface {
	// Name returns the stable driver identifier ("mock", "saml", "entra-id").
	Name() string

	// BeginLogin produces the URL the browser must follow to start
	// authentication.
	BeginLogin(ctx context.Context, sess *domainauth.Session, in BeginInput) (Redirect, error)

	// CompleteLogin validates the identity-provider response and returns the
	// canonical user. It never returns a partially populated user: on any
	// validation failure the error carries the authentication code and the
	// session user is left untouched.
	CompleteLogin(ctx context.Context, sess *domainauth.Session, in CallbackInput) (domainauth.User, error)

	// Logout returns the single-logout redirect when the IdP supports it and
	// a logout URL is configured; otherwise an empty Redirect. Local session
	// destruction is the orchestrator's job.
	Logout(ctx context.Context, sess *domainauth.Session) (Redirect, error)
}

// ErrSessionNotFound is returned by SessionStore.Get when no live record
// exists for the id. Expired records behave identically to missing ones.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists and retrieves server-side sessions.
type SessionStore interface {
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Save(ctx context.Context, sess domainauth.Session) error
	Delete(ctx context.Context, id string) error
}
