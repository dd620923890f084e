package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRateLimitWindow is the fixed counting window. Counts reset at
	// window boundaries; there is no sliding behavior.
	DefaultRateLimitWindow = 15 * time.Minute
	// DefaultGeneralRateLimit caps all non-exempt traffic per client IP.
	DefaultGeneralRateLimit = 300
	// DefaultAuthRateLimit caps login attempts per client IP. Deliberately
	// tight; a browser-driven login flow uses two requests per attempt.
	DefaultAuthRateLimit = 5
)

// rateLimitExemptPaths are never counted or limited.
var rateLimitExemptPaths = map[string]bool{
	"/healthz":     true,
	"/auth/status": true,
}

// rateLimitAuthPaths get the strict tier on top of their own counter.
var rateLimitAuthPaths = map[string]bool{
	"/auth/login":    true,
	"/auth/callback": true,
}

// RequestCounter counts hits per key within a fixed window and reports the
// time remaining until the window resets.
type RequestCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	Counter    RequestCounter
	Window     time.Duration
	GeneralMax int
	AuthMax    int
	Logger     *slog.Logger
}

// RateLimit enforces two fixed-window tiers per client IP: a strict tier on
// the login endpoints and a general tier on everything else. Counter errors
// fail open with a log line; availability wins over strictness here.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}
	if cfg.GeneralMax <= 0 {
		cfg.GeneralMax = DefaultGeneralRateLimit
	}
	if cfg.AuthMax <= 0 {
		cfg.AuthMax = DefaultAuthRateLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rateLimitExemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			tier, limit := "general", cfg.GeneralMax
			if rateLimitAuthPaths[r.URL.Path] {
				tier, limit = "auth", cfg.AuthMax
			}

			count, resetIn, err := cfg.Counter.Incr(r.Context(), tier+":"+ip, cfg.Window)
			if err != nil {
				cfg.Logger.ErrorContext(r.Context(), "rate limit counter failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				retryAfter := int(resetIn.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				WriteError(w, ErrorParams{Code: http.StatusTooManyRequests, ErrCode: "rate_limited"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the originating client address, trusting the leftmost
// X-Forwarded-For entry when present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryCounter is a single-process fixed-window counter.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++

	// Opportunistic cleanup keeps the map from growing unbounded.
	if len(c.windows) > 10000 {
		for k, win := range c.windows {
			if now.After(win.resetAt) {
				delete(c.windows, k)
			}
		}
	}

	return w.count, time.Until(w.resetAt), nil
}

// RedisCounter is a fixed-window counter shared across instances.
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCounter creates a Redis-backed counter.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client, prefix: "ratelimit:"}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	fullKey := c.prefix + key

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	ttl := pipe.TTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = window
	}
	return incr.Val(), resetIn, nil
}
