package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	"github.com/crestline/webstack/internal/ports"
	"github.com/crestline/webstack/internal/service"
)

// DefaultSuccessRedirect is where the browser lands after login when no
// redirect_uri was requested.
const DefaultSuccessRedirect = "/"

// DefaultErrorRedirect is where failed logins land. Provider detail stays in
// the server log; the browser only sees the generic marker.
const DefaultErrorRedirect = "/auth/error?error=auth_failed"

// AuthServiceInterface defines the slice of the auth service the handlers use.
type AuthServiceInterface interface {
	DriverName() string
	BeginLogin(ctx context.Context, sess domainauth.Session, in ports.BeginInput) (ports.Redirect, error)
	CompleteLogin(ctx context.Context, sess domainauth.Session, in ports.CallbackInput) (*service.CompleteLoginResult, error)
	Logout(ctx context.Context, sess domainauth.Session) (ports.Redirect, error)
	CurrentUser(sess domainauth.Session) (domainauth.User, bool)
}

// AuthHandlers provides HTTP handlers for the authentication surface.
type AuthHandlers struct {
	Svc             AuthServiceInterface
	Sessions        *SessionManager
	SuccessRedirect string
	ErrorRedirect   string
	Logger          *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) successRedirect() string {
	if h.SuccessRedirect != "" {
		return h.SuccessRedirect
	}
	return DefaultSuccessRedirect
}

func (h *AuthHandlers) errorRedirect() string {
	if h.ErrorRedirect != "" {
		return h.ErrorRedirect
	}
	return DefaultErrorRedirect
}

// Login initiates the authentication flow.
// GET /auth/login?redirect_uri=<optional path>&user=<optional mock user>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromRequest(r)
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
		return
	}

	in := ports.BeginInput{
		RedirectURI:   safeRedirectPath(r.URL.Query().Get("redirect_uri")),
		RequestedUser: r.URL.Query().Get("user"),
	}

	redirect, err := h.Svc.BeginLogin(r.Context(), sess, in)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "err", err)
		http.Redirect(w, r, h.errorRedirect(), http.StatusFound)
		return
	}

	target := redirect.URL
	if target == "" {
		target = h.successRedirect()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback completes the authentication flow. Registered for both GET (OIDC
// query response, mock) and POST (SAML ACS binding, OIDC form_post).
// GET|POST /auth/callback.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromRequest(r)
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
		return
	}

	in := callbackInput(r)
	result, err := h.Svc.CompleteLogin(r.Context(), sess, in)
	if err != nil {
		// Detail was already logged inside the service with protocol context.
		http.Redirect(w, r, h.errorRedirect(), http.StatusFound)
		return
	}

	// The session was regenerated; hand the browser the new cookie.
	h.Sessions.WriteCookie(w, r, result.Session)

	target := safeRedirectPath(result.RedirectURI)
	if target == "/" {
		target = h.successRedirect()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout destroys the session.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromRequest(r)
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
		return
	}

	redirect, err := h.Svc.Logout(r.Context(), sess)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "logout failed", "err", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "logout_failed"})
		return
	}

	h.Sessions.ClearCookie(w, r)

	target := redirect.URL
	if target == "" {
		target = "/"
	}

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": target,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Me returns the authenticated user.
// GET /auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromRequest(r)
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
		return
	}

	user, authed := h.Svc.CurrentUser(sess)
	if !authed {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required"})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"roles":        user.Roles,
		"expires_at":   sess.ExpiresAt,
	})
}

// Status reports whether the caller is authenticated. Always 200 so SPAs can
// poll it without tripping error interceptors.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if sess, ok := SessionFromRequest(r); ok {
		_, authenticated = h.Svc.CurrentUser(sess)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": authenticated,
		"driver":        h.Svc.DriverName(),
	})
}

// CSRFToken mints a token bound to the caller's session.
// GET /csrf-token.
func (h *AuthHandlers) CSRFToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromRequest(r)
	if !ok || sess.CSRFSecret == "" {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
		return
	}

	token, err := MintCSRFToken(sess.CSRFSecret)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// callbackInput collects the protocol response fields from query or form.
func callbackInput(r *http.Request) ports.CallbackInput {
	read := func(name string) string {
		if v := r.URL.Query().Get(name); v != "" {
			return v
		}
		return r.PostFormValue(name)
	}
	return ports.CallbackInput{
		Code:         read("code"),
		State:        read("state"),
		SAMLResponse: read("SAMLResponse"),
		RelayState:   read("RelayState"),
		MockUserID:   read("mockUserId"),
	}
}

// wantsJSON reports whether the client prefers a JSON payload over a redirect.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

// safeRedirectPath ensures the provided redirect is a same-origin relative
// path starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	if strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
