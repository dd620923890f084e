package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitedHandler(cfg RateLimitConfig) http.Handler {
	return RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(handler http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_GeneralTier(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{
		Counter:    NewMemoryCounter(),
		GeneralMax: 3,
		Logger:     slog.New(slog.DiscardHandler),
	})

	for i := 0; i < 3; i++ {
		rec := doRequest(handler, http.MethodGet, "/auth/me", "10.0.0.1")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(handler, http.MethodGet, "/auth/me", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"rate_limited"`)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_AuthTierIsStricter(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{
		Counter:    NewMemoryCounter(),
		GeneralMax: 100,
		AuthMax:    2,
		Logger:     slog.New(slog.DiscardHandler),
	})

	for i := 0; i < 2; i++ {
		rec := doRequest(handler, http.MethodGet, "/auth/login", "10.0.0.1")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doRequest(handler, http.MethodGet, "/auth/login", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The general tier still has headroom for the same client.
	rec = doRequest(handler, http.MethodGet, "/auth/me", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{
		Counter:    NewMemoryCounter(),
		GeneralMax: 1,
		Logger:     slog.New(slog.DiscardHandler),
	})

	assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/auth/me", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, http.MethodGet, "/auth/me", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/auth/me", "10.0.0.2").Code)
}

func TestRateLimit_ExemptPaths(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{
		Counter:    NewMemoryCounter(),
		GeneralMax: 1,
		Logger:     slog.New(slog.DiscardHandler),
	})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/healthz", "10.0.0.1").Code)
		assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/auth/status", "10.0.0.1").Code)
	}
}

func TestRateLimit_ForwardedForTakesPrecedence(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{
		Counter:    NewMemoryCounter(),
		GeneralMax: 1,
		Logger:     slog.New(slog.DiscardHandler),
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.RemoteAddr = "10.0.0.1:40000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same proxy, different origin client: separate budget.
	req2 := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req2.RemoteAddr = "10.0.0.1:40000"
	req2.Header.Set("X-Forwarded-For", "203.0.113.8")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, assert.AnError
}

func TestRateLimit_CounterFailureFailsOpen(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{
		Counter: failingCounter{},
		Logger:  slog.New(slog.DiscardHandler),
	})

	rec := doRequest(handler, http.MethodGet, "/auth/me", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryCounter_WindowReset(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()

	count, resetIn, err := counter.Incr(ctx, "general:10.0.0.1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Greater(t, resetIn, time.Duration(0))

	count, _, err = counter.Incr(ctx, "general:10.0.0.1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	time.Sleep(60 * time.Millisecond)
	count, _, err = counter.Incr(ctx, "general:10.0.0.1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "window must reset")
}

func TestRedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counter := NewRedisCounter(client)
	ctx := context.Background()

	count, resetIn, err := counter.Incr(ctx, "auth:10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Greater(t, resetIn, time.Duration(0))

	count, _, err = counter.Incr(ctx, "auth:10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	mr.FastForward(2 * time.Minute)
	count, _, err = counter.Incr(ctx, "auth:10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expiry must reset the window")
}
