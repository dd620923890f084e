package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	"github.com/crestline/webstack/internal/ports"
)

// SessionCookieName is the fixed session cookie name. Clients never see the
// bare session ID; the cookie value is "<id>.<signature>".
const SessionCookieName = "webstack_session"

// SessionManager resolves the session for each request and lazily creates an
// anonymous one when the browser presents no valid cookie. A cookie whose
// signature does not verify is indistinguishable from no cookie at all.
type SessionManager struct {
	Svc          SessionService
	Secret       string
	CookieDomain string
	Logger       *slog.Logger
}

// SessionService is the slice of the auth service the session middleware needs.
type SessionService interface {
	GetSession(ctx context.Context, id string) (domainauth.Session, error)
	NewAnonymousSession(ctx context.Context) (domainauth.Session, error)
}

func (m *SessionManager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Middleware attaches the request's session to the context, creating and
// persisting an anonymous session when needed. Store failures fail closed:
// the request proceeds anonymous rather than erroring.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := m.resolve(r)
		if !ok {
			fresh, err := m.Svc.NewAnonymousSession(r.Context())
			if err != nil {
				m.logger().ErrorContext(r.Context(), "create anonymous session failed", "err", err)
				WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
				return
			}
			sess = fresh
			m.WriteCookie(w, r, sess)
		}

		ctx := SetSessionInContext(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve validates the cookie signature and loads the session record.
func (m *SessionManager) resolve(r *http.Request) (domainauth.Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return domainauth.Session{}, false
	}

	id, err := m.verifyCookieValue(cookie.Value)
	if err != nil {
		return domainauth.Session{}, false
	}

	sess, err := m.Svc.GetSession(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ports.ErrSessionNotFound) {
			m.logger().ErrorContext(r.Context(), "session lookup failed", "err", err)
		}
		return domainauth.Session{}, false
	}
	return sess, true
}

// WriteCookie sets the signed session cookie for the given session.
func (m *SessionManager) WriteCookie(w http.ResponseWriter, r *http.Request, sess domainauth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    m.signCookieValue(sess.ID),
		Path:     "/",
		Domain:   m.CookieDomain,
		HttpOnly: true,
		Secure:   isRequestSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
	})
}

// ClearCookie expires the session cookie on the client.
func (m *SessionManager) ClearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.CookieDomain,
		HttpOnly: true,
		Secure:   isRequestSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

func (m *SessionManager) signCookieValue(id string) string {
	return id + "." + m.signature(id)
}

func (m *SessionManager) verifyCookieValue(value string) (string, error) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", errors.New("malformed session cookie")
	}
	expected := m.signature(id)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", errors.New("session cookie signature mismatch")
	}
	return id, nil
}

func (m *SessionManager) signature(id string) string {
	mac := hmac.New(sha256.New, []byte(m.Secret))
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// isRequestSecure reports whether the request arrived over HTTPS, directly or
// via a forwarding proxy.
func isRequestSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
