package config

import (
	"os"
	"strings"

	apperrors "github.com/crestline/webstack/internal/errors"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Auth driver selection and per-driver settings
//   - database.go: Session store backends (Postgres, Redis)
//   - http.go: HTTP server, cookies, rate limits
type AppConfig struct {
	// IsDev controls development mode behavior. Set DEV=true or
	// NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Auth driver configuration
	Auth AuthConfig

	// Session store configuration
	Postgres DBConfig     `envPrefix:"DB_"`
	Redis    RedisConfig  `envPrefix:"REDIS_"`
	Session  SessionConfig

	// HTTP server configuration
	HTTP HTTPConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Session.Sanitize()
	c.detectDevMode()
}

// Validate rejects configurations the process must not start with.
func (c *AppConfig) Validate() error {
	if len(c.Session.Secret) < minSessionSecretLength {
		return apperrors.Configurationf(
			"SESSION_SECRET must be at least %d characters", minSessionSecretLength)
	}
	return nil
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
