package mockauth

// Package mockauth provides a local, dependency-free auth driver for
// development and testing. It short-circuits the redirect dance by sending
// the browser straight back to the application's own callback endpoint.

import (
	"context"
	"net/url"
	"strconv"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
)

// DriverName is the stable identifier for the mock driver.
const DriverName = "mock"

// Config controls the mock driver.
type Config struct {
	// Users is the static list of candidate test users. The first entry is
	// the default returned when an unknown id is requested.
	Users []domainauth.User
	// CallbackPath is the local callback route (default "/auth/callback").
	CallbackPath string
}

// DefaultUsers returns the built-in test users used when none are configured.
func DefaultUsers() []domainauth.User {
	return []domainauth.User{
		{
			ID:          "mock-user-1",
			Email:       "dev.user@example.com",
			DisplayName: "Dev User",
			Roles:       []string{"user"},
		},
		{
			ID:          "mock-user-2",
			Email:       "dev.admin@example.com",
			DisplayName: "Dev Admin",
			Roles:       []string{"admin", "user"},
		},
	}
}

// Driver implements ports.Driver against a static user list.
type Driver struct {
	users        []domainauth.User
	callbackPath string
}

// New constructs the mock driver.
func New(cfg Config) (*Driver, error) {
	users := cfg.Users
	if len(users) == 0 {
		users = DefaultUsers()
	}
	for _, u := range users {
		if u.ID == "" {
			return nil, apperrors.Configuration("mock auth: every configured user needs an id")
		}
	}
	callbackPath := cfg.CallbackPath
	if callbackPath == "" {
		callbackPath = "/auth/callback"
	}
	return &Driver{users: users, callbackPath: callbackPath}, nil
}

func (d *Driver) Name() string { return DriverName }

// BeginLogin encodes the desired test-user selection into the local callback
// URL. The state value is generated for parity with the protocol drivers but
// the mock flow does not depend on it.
func (d *Driver) BeginLogin(_ context.Context, sess *domainauth.Session, in ports.BeginInput) (ports.Redirect, error) {
	selected := d.resolve(in.RequestedUser)

	state, err := domainauth.RandomToken(24)
	if err != nil {
		return ports.Redirect{}, err
	}

	sess.Pending = &domainauth.PendingLogin{
		State:       state,
		MockUserID:  selected.ID,
		RedirectURI: in.RedirectURI,
	}

	q := url.Values{}
	q.Set("mockUserId", selected.ID)
	q.Set("state", state)
	return ports.Redirect{URL: d.callbackPath + "?" + q.Encode()}, nil
}

// CompleteLogin returns the requested test user. An unknown or absent id
// falls back to the first default user rather than failing; the mock flow is
// deliberately lenient where the protocol drivers fail hard.
func (d *Driver) CompleteLogin(_ context.Context, sess *domainauth.Session, in ports.CallbackInput) (domainauth.User, error) {
	requested := in.MockUserID
	if requested == "" && sess.Pending != nil {
		requested = sess.Pending.MockUserID
	}
	return d.resolve(requested), nil
}

// Logout completes locally; there is no IdP to sign out of.
func (d *Driver) Logout(_ context.Context, _ *domainauth.Session) (ports.Redirect, error) {
	return ports.Redirect{}, nil
}

// resolve matches by user id first, then by 1-based position ("user=2"),
// falling back to the first default user.
func (d *Driver) resolve(requested string) domainauth.User {
	if requested != "" {
		for _, u := range d.users {
			if u.ID == requested {
				return u
			}
		}
		if idx, err := strconv.Atoi(requested); err == nil && idx >= 1 && idx <= len(d.users) {
			return d.users[idx-1]
		}
	}
	return d.users[0]
}
