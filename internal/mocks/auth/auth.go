package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.Driver       = (*StubDriver)(nil)
	_ ports.SessionStore = (*MemorySessionStore)(nil)
)

// StubDriver simulates an IdP driver with deterministic state handling.
// Override the Func fields to script specific behaviors.
type StubDriver struct {
	DriverName   string
	BeginFunc    func(ctx context.Context, sess *domainauth.Session, in ports.BeginInput) (ports.Redirect, error)
	CompleteFunc func(ctx context.Context, sess *domainauth.Session, in ports.CallbackInput) (domainauth.User, error)
	LogoutFunc   func(ctx context.Context, sess *domainauth.Session) (ports.Redirect, error)

	AuthURL     string
	DefaultUser domainauth.User

	beginCount int
}

// NewStubDriver creates a StubDriver with sensible defaults.
func NewStubDriver() *StubDriver {
	return &StubDriver{
		DriverName: "stub",
		AuthURL:    "https://stub-idp/auth",
		DefaultUser: domainauth.User{
			ID:          "stub-user-1",
			Email:       "stub.user@example.com",
			DisplayName: "Stub User",
			Roles:       []string{"user"},
		},
	}
}

func (d *StubDriver) Name() string { return d.DriverName }

func (d *StubDriver) BeginLogin(ctx context.Context, sess *domainauth.Session, in ports.BeginInput) (ports.Redirect, error) {
	if d.BeginFunc != nil {
		return d.BeginFunc(ctx, sess, in)
	}
	d.beginCount++
	sess.Pending = &domainauth.PendingLogin{
		State:       fmt.Sprintf("state-%d", d.beginCount),
		Nonce:       fmt.Sprintf("nonce-%d", d.beginCount),
		RedirectURI: in.RedirectURI,
	}
	return ports.Redirect{URL: d.AuthURL}, nil
}

func (d *StubDriver) CompleteLogin(ctx context.Context, sess *domainauth.Session, in ports.CallbackInput) (domainauth.User, error) {
	if d.CompleteFunc != nil {
		return d.CompleteFunc(ctx, sess, in)
	}
	if sess.Pending == nil || sess.Pending.State == "" {
		return domainauth.User{}, apperrors.Authentication("no pending login for session")
	}
	if in.State != sess.Pending.State {
		return domainauth.User{}, apperrors.Authentication("state mismatch")
	}
	return d.DefaultUser, nil
}

func (d *StubDriver) Logout(_ context.Context, _ *domainauth.Session) (ports.Redirect, error) {
	if d.LogoutFunc != nil {
		return d.LogoutFunc(context.Background(), nil)
	}
	return ports.Redirect{}, nil
}

// MemorySessionStore is a mutex-guarded map store for tests. Unlike the
// production adapters it never expires records unless asked via Get.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.Session

	// FailSave / FailGet / FailDelete force errors for failure-path tests.
	FailSave   error
	FailGet    error
	FailDelete error
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (s *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if s.FailSave != nil {
		return s.FailSave
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if s.FailGet != nil {
		return domainauth.Session{}, s.FailGet
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Expired(time.Now()) {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	if s.FailDelete != nil {
		return s.FailDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len reports the number of stored sessions (test assertions).
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
