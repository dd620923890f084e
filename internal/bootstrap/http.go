package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/crestline/webstack/config"
	httpx "github.com/crestline/webstack/internal/http"
	"github.com/crestline/webstack/internal/service"
)

const sessionSweepInterval = time.Hour

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config *config.AppConfig
	Auth   *service.AuthService
	// Redis enables the distributed rate-limit counter when set; otherwise
	// limits are counted per instance in memory.
	Redis redis.UniversalClient
	// SessionSweeper runs periodically to purge expired sessions; nil when
	// the selected store expires records itself.
	SessionSweeper SessionSweeper
	Logger         *slog.Logger
}

// SessionSweeper removes expired session records.
type SessionSweeper interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// RunHTTPServer builds the handler stack, serves until the context is
// canceled, then drains connections gracefully.
func RunHTTPServer(ctx context.Context, cfg HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var counter httpx.RequestCounter
	if cfg.Redis != nil {
		counter = httpx.NewRedisCounter(cfg.Redis)
	} else {
		counter = httpx.NewMemoryCounter()
	}

	sessions := &httpx.SessionManager{
		Svc:          cfg.Auth,
		Secret:       cfg.Config.Session.Secret,
		CookieDomain: cfg.Config.HTTP.CookieDomain,
		Logger:       logger,
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Auth:     cfg.Auth,
		Sessions: sessions,
		RateLimit: httpx.RateLimitConfig{
			Counter:    counter,
			Window:     cfg.Config.HTTP.RateLimitWindow,
			GeneralMax: cfg.Config.HTTP.RateLimitMax,
			AuthMax:    cfg.Config.HTTP.AuthRateLimitMax,
			Logger:     logger,
		},
		SuccessRedirect: cfg.Config.Auth.SuccessRedirect,
		ErrorRedirect:   cfg.Config.Auth.ErrorRedirect,
		Logger:          logger,
	})

	addr := cfg.Config.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if cfg.Config.HTTP.MaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.Config.HTTP.MaxConns)
	}

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(gctx, "starting HTTP server",
			"addr", addr, "driver", cfg.Auth.DriverName())
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	})

	if cfg.SessionSweeper != nil {
		g.Go(func() error {
			runSessionSweeper(gctx, cfg.SessionSweeper, logger)
			return nil
		})
	}

	return g.Wait()
}

func runSessionSweeper(ctx context.Context, sweeper SessionSweeper, logger *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := sweeper.PurgeExpired(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "session sweep failed", "err", err)
				continue
			}
			if purged > 0 {
				logger.InfoContext(ctx, "purged expired sessions", "count", purged)
			}
		}
	}
}
