package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/crestline/webstack/config"
	"github.com/crestline/webstack/internal/adapters/postgres"
	"github.com/crestline/webstack/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting webstack",
		"auth_driver", cfg.Auth.Driver,
		"session_store", cfg.Session.Store,
		"addr", cfg.HTTP.Addr)

	db, redisClient, err := connectBackends(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	authSvc, err := bootstrap.BuildAuthService(ctx, bootstrap.AuthDeps{
		Config: &cfg,
		DB:     db,
		Redis:  redisClient,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunHTTPServer(ctx, bootstrap.HTTPServerConfig{
		Config:         &cfg,
		Auth:           authSvc,
		Redis:          redisClient,
		SessionSweeper: sessionSweeper(&cfg, db),
		Logger:         logger,
	})
}

// connectBackends opens only the backends the configuration actually uses.
//
//nolint:ireturn // redis.UniversalClient keeps the client type open for cluster setups.
func connectBackends(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	var (
		db          *sql.DB
		redisClient redis.UniversalClient
		err         error
	)

	if cfg.Session.Store == config.SessionStorePostgres {
		db, err = bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
			DBConfig: cfg.Postgres,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrationsOnStart {
			if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
				return nil, nil, err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	if cfg.Session.Store == config.SessionStoreRedis {
		redisClient, err = bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{
			RedisConfig: cfg.Redis,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	return db, redisClient, nil
}

// sessionSweeper returns the periodic purge hook for stores that do not
// expire records on their own. Redis handles expiry via TTLs and the memory
// store cleans up lazily on reads.
func sessionSweeper(cfg *config.AppConfig, db *sql.DB) bootstrap.SessionSweeper {
	if cfg.Session.Store == config.SessionStorePostgres && db != nil {
		return postgres.NewSessionStore(db)
	}
	return nil
}
