package config

import "time"

const minSessionSecretLength = 32

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// MaxConns caps concurrent accepted connections (0 disables the cap).
	MaxConns int `env:"HTTP_MAX_CONNS" envDefault:"0"`

	// RateLimitWindow is the fixed rate-limit window.
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	// RateLimitMax caps non-exempt requests per client per window.
	RateLimitMax int `env:"RATE_LIMIT_MAX" envDefault:"300"`

	// AuthRateLimitMax caps login-flow requests per client per window.
	AuthRateLimitMax int `env:"AUTH_RATE_LIMIT_MAX" envDefault:"5"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.RateLimitWindow <= 0 {
		h.RateLimitWindow = 15 * time.Minute
	}
	if h.RateLimitMax <= 0 {
		h.RateLimitMax = 300
	}
	if h.AuthRateLimitMax <= 0 {
		h.AuthRateLimitMax = 5
	}
}

// SessionConfig contains session persistence configuration.
type SessionConfig struct {
	// Secret signs session cookies. Required, at least 32 characters;
	// rotating it invalidates every outstanding cookie.
	Secret string `env:"SESSION_SECRET,required"`

	// Store selects the backend (postgres, redis, memory).
	Store SessionStoreKind `env:"SESSION_STORE" envDefault:"postgres"`

	// TTL is the absolute session lifetime.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.TTL <= 0 {
		s.TTL = 24 * time.Hour
	}
}
