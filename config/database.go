package config

import (
	"fmt"
	"strings"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"webstack"`
	Password string `env:"PASSWORD" envDefault:"webstack"`
	Name     string `env:"NAME"     envDefault:"webstack"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// DSN builds the connection string for database/sql over the pgx driver.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// SessionStoreKind selects the session store backend.
type SessionStoreKind string

const (
	// SessionStorePostgres is the durable default for production.
	SessionStorePostgres SessionStoreKind = "postgres"
	// SessionStoreRedis shares sessions across instances via Redis.
	SessionStoreRedis SessionStoreKind = "redis"
	// SessionStoreMemory is in-process only; sessions vanish on restart.
	SessionStoreMemory SessionStoreKind = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (s *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "postgres", "redis", "memory":
		*s = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SESSION_STORE: %q (valid options: postgres, redis, memory)", v)
	}
}
