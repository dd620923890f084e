package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// User is the canonical identity record all drivers normalize into.
// It is constructed fresh on every successful callback and never mutated
// in place.
type User struct {
	// ID is the stable unique identifier from the identity source
	// (subject claim, SAML NameID, or mock user key). Never empty after a
	// successful authentication.
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Roles       []string       `json:"roles"`
	// Attributes is a free-form passthrough of source-specific claims
	// (tenant id, session index). Opaque metadata, not validated.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HasAnyRole reports whether the user's role set intersects the required set.
// A nil user or an empty required set yields false.
func (u *User) HasAnyRole(required ...string) bool {
	if u == nil || len(required) == 0 {
		return false
	}
	have := make(map[string]struct{}, len(u.Roles))
	for _, r := range u.Roles {
		have[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; ok {
			return true
		}
	}
	return false
}

// PendingLogin holds the transient per-attempt artifacts written by
// BeginLogin and consumed by exactly one CompleteLogin. It must be cleared
// from the session on both success and failure to prevent replay.
type PendingLogin struct {
	State       string `json:"state,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	Verifier    string `json:"verifier,omitempty"`
	RelayState  string `json:"relay_state,omitempty"`
	MockUserID  string `json:"mock_user_id,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// Session is the server-side record keyed by the opaque cookie value.
// A session with no User is anonymous.
type Session struct {
	ID         string        `json:"id"`
	User       *User         `json:"user,omitempty"`
	CSRFSecret string        `json:"csrf_secret,omitempty"`
	Pending    *PendingLogin `json:"pending,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// IsAuthenticated reports whether the session carries a user.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.User != nil && s.User.ID != ""
}

// Expired reports whether the session expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ClearPending drops any in-flight login artifacts. Called after every
// CompleteLogin regardless of outcome.
func (s *Session) ClearPending() {
	s.Pending = nil
}

// sessionIDBytes gives 256 bits of entropy in the cookie value.
const sessionIDBytes = 32

// NewSessionID returns a cryptographically random URL-safe session identifier.
func NewSessionID() (string, error) {
	return RandomToken(sessionIDBytes)
}

// RandomToken returns n random bytes encoded base64 URL-safe without padding.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
