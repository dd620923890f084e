package httpx

import (
	"log/slog"
	"net/http"

	"github.com/crestline/webstack/internal/service"
)

// RouterServices holds the dependencies for the HTTP router.
type RouterServices struct {
	Auth            *service.AuthService
	Sessions        *SessionManager
	RateLimit       RateLimitConfig
	SuccessRedirect string
	ErrorRedirect   string
	Logger          *slog.Logger
}

// NewRouter builds the full handler: router plus the middleware chain.
// Chain order matters: recovery wraps everything, limits run before session
// resolution so rejected requests never touch the store, and CSRF runs after
// sessions because tokens derive from the session secret.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandlers := &AuthHandlers{
		Svc:             services.Auth,
		Sessions:        services.Sessions,
		SuccessRedirect: services.SuccessRedirect,
		ErrorRedirect:   services.ErrorRedirect,
		Logger:          logger,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	registerAuthRoutes(mux, authHandlers)

	var handler http.Handler = mux
	handler = CSRFProtection()(handler)
	handler = services.Sessions.Middleware(handler)
	handler = RateLimit(services.RateLimit)(handler)
	handler = SecurityHeaders(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.Handle("GET /auth/login", http.HandlerFunc(h.Login))
	mux.Handle("GET /auth/callback", http.HandlerFunc(h.Callback))
	mux.Handle("POST /auth/callback", http.HandlerFunc(h.Callback))
	mux.Handle("POST /auth/logout", http.HandlerFunc(h.Logout))
	mux.Handle("GET /auth/me", http.HandlerFunc(h.Me))
	mux.Handle("GET /auth/status", http.HandlerFunc(h.Status))
	mux.Handle("GET /csrf-token", http.HandlerFunc(h.CSRFToken))
}
