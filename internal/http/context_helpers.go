package httpx

import (
	"context"
	"net/http"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
)

// sessionKey is an unexported context key type for session storage.
type sessionKey struct{}

// requestIDKey is an unexported context key type for request ID storage.
type requestIDKey struct{}

// SetSessionInContext stores the session in the request context.
func SetSessionInContext(ctx context.Context, sess domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext retrieves the session placed by the session middleware.
// The second return is false when no session middleware ran for this request.
func SessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return sess, ok
}

// SessionFromRequest is a convenience wrapper over SessionFromContext.
func SessionFromRequest(r *http.Request) (domainauth.Session, bool) {
	return SessionFromContext(r.Context())
}

// setRequestIDInContext stores the request ID in the context.
func setRequestIDInContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID assigned by the logging
// middleware, or empty when none was assigned.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
