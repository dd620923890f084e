package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/crestline/webstack/config"
	"github.com/crestline/webstack/internal/adapters/entra"
	"github.com/crestline/webstack/internal/adapters/memory"
	"github.com/crestline/webstack/internal/adapters/mockauth"
	"github.com/crestline/webstack/internal/adapters/postgres"
	redisadapter "github.com/crestline/webstack/internal/adapters/redis"
	"github.com/crestline/webstack/internal/adapters/saml"
	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
	"github.com/crestline/webstack/internal/service"
)

// AuthDeps groups the inputs for building the auth service.
type AuthDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// BuildAuthService wires the configured driver and session store into the
// orchestrator. Configuration errors here are fatal by design; the process
// must not come up half-authenticated.
func BuildAuthService(ctx context.Context, deps AuthDeps) (*service.AuthService, error) {
	driver, err := buildDriver(ctx, deps.Config)
	if err != nil {
		return nil, err
	}

	store, err := buildSessionStore(deps)
	if err != nil {
		return nil, err
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Driver:     driver,
		Sessions:   store,
		Logger:     deps.Logger,
		SessionTTL: deps.Config.Session.TTL,
	}), nil
}

//nolint:ireturn // the whole point is returning whichever driver is configured.
func buildDriver(ctx context.Context, cfg *config.AppConfig) (ports.Driver, error) {
	claims := domainauth.ClaimMapping{
		ID:          cfg.Auth.Claims.ID,
		Email:       cfg.Auth.Claims.Email,
		DisplayName: cfg.Auth.Claims.DisplayName,
		Roles:       cfg.Auth.Claims.Roles,
		DefaultRole: cfg.Auth.Claims.DefaultRole,
	}

	switch cfg.Auth.Driver {
	case config.AuthDriverMock:
		users, err := parseMockUsers(cfg.Auth.Mock.Users)
		if err != nil {
			return nil, err
		}
		return mockauth.New(mockauth.Config{Users: users})
	case config.AuthDriverEntra:
		return entra.New(ctx, entra.Config{
			TenantID:     cfg.Auth.Entra.TenantID,
			Authority:    cfg.Auth.Entra.Authority,
			ClientID:     cfg.Auth.Entra.ClientID,
			ClientSecret: cfg.Auth.Entra.ClientSecret,
			RedirectURL:  cfg.Auth.CallbackURL,
			Scope:        cfg.Auth.Entra.Scope,
			ResponseMode: cfg.Auth.Entra.ResponseMode,
			LogoutURL:    cfg.Auth.Entra.LogoutURL,
			ClaimMapping: claims,
		})
	case config.AuthDriverSAML:
		return saml.New(saml.Config{
			EntryPoint:   cfg.Auth.SAML.EntryPoint,
			Issuer:       cfg.Auth.SAML.Issuer,
			IdPIssuer:    cfg.Auth.SAML.IdPIssuer,
			Cert:         cfg.Auth.SAML.Cert,
			PrivateKey:   cfg.Auth.SAML.PrivateKey,
			CallbackURL:  cfg.Auth.CallbackURL,
			AudienceURI:  cfg.Auth.SAML.AudienceURI,
			NameIDFormat: cfg.Auth.SAML.NameIDFormat,
			LogoutURL:    cfg.Auth.SAML.LogoutURL,
			ClaimMapping: claims,
		})
	default:
		// Unreachable when config came through env parsing, which already
		// rejects unknown drivers; kept for programmatic construction.
		return nil, apperrors.Configurationf("unknown auth driver %q", cfg.Auth.Driver)
	}
}

//nolint:ireturn // selects among store implementations by configuration.
func buildSessionStore(deps AuthDeps) (ports.SessionStore, error) {
	switch deps.Config.Session.Store {
	case config.SessionStorePostgres:
		if deps.DB == nil {
			return nil, apperrors.Configuration("SESSION_STORE=postgres requires a database connection")
		}
		return postgres.NewSessionStore(deps.DB), nil
	case config.SessionStoreRedis:
		if deps.Redis == nil {
			return nil, apperrors.Configuration("SESSION_STORE=redis requires a redis connection")
		}
		return redisadapter.NewSessionStore(deps.Redis), nil
	case config.SessionStoreMemory:
		if deps.Logger != nil {
			deps.Logger.Warn("using in-memory session store; sessions will not survive a restart")
		}
		return memory.NewSessionStore(), nil
	default:
		return nil, apperrors.Configurationf("unknown session store %q", deps.Config.Session.Store)
	}
}

// parseMockUsers decodes "id:email:display name:role1|role2" entries.
func parseMockUsers(entries []string) ([]domainauth.User, error) {
	users := make([]domainauth.User, 0, len(entries))
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, apperrors.Configurationf("invalid MOCK_AUTH_USERS entry %q", entry)
		}
		var roles []string
		if parts[3] != "" {
			roles = strings.Split(parts[3], "|")
		}
		users = append(users, domainauth.User{
			ID:          parts[0],
			Email:       parts[1],
			DisplayName: parts[2],
			Roles:       roles,
		})
	}
	return users, nil
}
