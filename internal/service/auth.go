package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
)

// DefaultSessionTTL is the absolute session lifetime. Sessions are not
// extended by activity; after this long the user re-authenticates.
const DefaultSessionTTL = 24 * time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Driver     ports.Driver
	Sessions   ports.SessionStore
	Logger     *slog.Logger
	SessionTTL time.Duration
}

// AuthService orchestrates authentication flows over exactly one driver.
// It owns session lifecycle (creation, regeneration on login, destruction on
// logout) and keeps protocol detail out of the HTTP layer: driver failures
// are logged here and surface to callers as generic authentication errors.
type AuthService struct {
	driver   ports.Driver
	sessions ports.SessionStore
	logger   *slog.Logger
	ttl      time.Duration
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		driver:   opts.Driver,
		sessions: opts.Sessions,
		logger:   logger.With("component", "auth"),
		ttl:      ttl,
	}
}

// DriverName reports the active driver identifier.
func (s *AuthService) DriverName() string {
	return s.driver.Name()
}

// NewAnonymousSession creates and persists an unauthenticated session with a
// fresh CSRF secret.
func (s *AuthService) NewAnonymousSession(ctx context.Context) (domainauth.Session, error) {
	sess, err := s.freshSession()
	if err != nil {
		return domainauth.Session{}, err
	}
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", saveErr)
	}
	return sess, nil
}

// GetSession loads a session by ID. Missing and expired records both return
// ports.ErrSessionNotFound; any other store failure is a session error and
// callers fail closed to anonymous.
func (s *AuthService) GetSession(ctx context.Context, id string) (domainauth.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return domainauth.Session{}, err
		}
		s.logger.ErrorContext(ctx, "session store read failed", "err", err)
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeSession, "load session")
	}
	return sess, nil
}

// BeginLogin asks the driver for the authentication redirect and persists any
// per-attempt transients it wrote into the session. A repeated Begin on the
// same session overwrites the previous pending attempt.
func (s *AuthService) BeginLogin(ctx context.Context, sess domainauth.Session, in ports.BeginInput) (ports.Redirect, error) {
	redirect, err := s.driver.BeginLogin(ctx, &sess, in)
	if err != nil {
		s.logger.ErrorContext(ctx, "begin login failed", "driver", s.driver.Name(), "err", err)
		return ports.Redirect{}, apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "begin login")
	}
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return ports.Redirect{}, fmt.Errorf("save session: %w", saveErr)
	}
	return redirect, nil
}

// CompleteLoginResult is the outcome of a successful callback.
type CompleteLoginResult struct {
	// Session is the regenerated, authenticated session. Its ID differs from
	// the session that initiated the login.
	Session domainauth.Session
	// RedirectURI is the in-app destination captured at login initiation,
	// empty when none was requested.
	RedirectURI string
}

// CompleteLogin validates the identity-provider response via the driver.
// Pending transients are single-use: they are cleared and the session
// persisted on success and failure alike, so a replayed callback cannot
// reuse them. On success the session ID is regenerated and the old record
// destroyed, which also rotates the CSRF secret.
func (s *AuthService) CompleteLogin(ctx context.Context, sess domainauth.Session, in ports.CallbackInput) (*CompleteLoginResult, error) {
	var redirectURI string
	if sess.Pending != nil {
		redirectURI = sess.Pending.RedirectURI
	}

	user, err := s.driver.CompleteLogin(ctx, &sess, in)
	if err != nil {
		sess.ClearPending()
		if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
			s.logger.ErrorContext(ctx, "clear pending login failed", "err", saveErr)
		}
		s.logger.WarnContext(ctx, "login rejected", "driver", s.driver.Name(), "err", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "login failed")
	}

	authed, err := s.freshSession()
	if err != nil {
		return nil, err
	}
	authed.User = &user

	if saveErr := s.sessions.Save(ctx, authed); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}
	if deleteErr := s.sessions.Delete(ctx, sess.ID); deleteErr != nil {
		s.logger.ErrorContext(ctx, "destroy pre-login session failed", "err", deleteErr)
	}

	s.logger.InfoContext(ctx, "login completed",
		"driver", s.driver.Name(), "user_id", user.ID, "roles", user.Roles)
	return &CompleteLoginResult{Session: authed, RedirectURI: redirectURI}, nil
}

// Logout destroys the session and returns the IdP single-logout redirect if
// the driver provides one. The local session is destroyed even when the
// driver's logout step fails.
func (s *AuthService) Logout(ctx context.Context, sess domainauth.Session) (ports.Redirect, error) {
	redirect, err := s.driver.Logout(ctx, &sess)
	if err != nil {
		s.logger.ErrorContext(ctx, "driver logout failed", "driver", s.driver.Name(), "err", err)
		redirect = ports.Redirect{}
	}
	if deleteErr := s.sessions.Delete(ctx, sess.ID); deleteErr != nil {
		return ports.Redirect{}, fmt.Errorf("delete session: %w", deleteErr)
	}
	return redirect, nil
}

// CurrentUser returns the authenticated user on the session, or false for an
// anonymous session.
func (s *AuthService) CurrentUser(sess domainauth.Session) (domainauth.User, bool) {
	if !sess.IsAuthenticated() {
		return domainauth.User{}, false
	}
	return *sess.User, true
}

// HasRole reports whether the session's user holds at least one of the
// required roles. Anonymous sessions never do.
func (s *AuthService) HasRole(sess domainauth.Session, required ...string) bool {
	if !sess.IsAuthenticated() {
		return false
	}
	return sess.User.HasAnyRole(required...)
}

func (s *AuthService) freshSession() (domainauth.Session, error) {
	id, err := domainauth.NewSessionID()
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("generate session ID: %w", err)
	}
	secret, err := domainauth.RandomToken(32)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("generate CSRF secret: %w", err)
	}
	now := time.Now()
	return domainauth.Session{
		ID:         id,
		CSRFSecret: secret,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}, nil
}
