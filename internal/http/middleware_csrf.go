package httpx

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	// CSRFHeaderName is the header carrying the token, both directions.
	CSRFHeaderName = "X-Csrf-Token"
	// CSRFFormFieldName is the form field fallback for plain form posts.
	CSRFFormFieldName = "csrf_token"

	csrfSaltLength = 16
)

// csrfExemptPaths never require a token: health probes carry no session, and
// the login/callback legs are protected by the protocol's own state checks
// (OIDC state/PKCE, SAML assertion validation).
var csrfExemptPaths = map[string]bool{
	"/healthz":       true,
	"/auth/login":    true,
	"/auth/callback": true,
}

// CSRFProtection validates tokens derived from the session's CSRF secret.
// Tokens are not stored server-side: a token is base64url(salt) + "." +
// base64url(HMAC-SHA256(secret, salt)), so any token minted for the session
// verifies until the secret rotates (which happens on login).
//
// Safe methods pass through and receive a fresh token in the response header.
// Unsafe methods must present a valid token in the header or form field;
// anything else is a 403.
func CSRFProtection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if csrfExemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			sess, ok := SessionFromRequest(r)
			if !ok || sess.CSRFSecret == "" {
				// Session middleware must run first; without a secret there is
				// nothing to verify against, so fail closed on unsafe methods.
				if requiresCSRFValidation(r.Method) {
					WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf_invalid"})
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !requiresCSRFValidation(r.Method) {
				token, err := MintCSRFToken(sess.CSRFSecret)
				if err != nil {
					WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal"})
					return
				}
				w.Header().Set(CSRFHeaderName, token)
				next.ServeHTTP(w, r)
				return
			}

			if !VerifyCSRFToken(sess.CSRFSecret, tokenFromRequest(r)) {
				WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf_invalid"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requiresCSRFValidation returns true if the HTTP method requires CSRF validation.
// Safe methods (GET, HEAD, OPTIONS, TRACE) are exempt.
func requiresCSRFValidation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// MintCSRFToken derives a fresh token from the session secret.
func MintCSRFToken(secret string) (string, error) {
	salt := make([]byte, csrfSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(salt) + "." +
		base64.RawURLEncoding.EncodeToString(csrfMAC(secret, salt)), nil
}

// VerifyCSRFToken checks a presented token against the session secret using
// a constant-time comparison.
func VerifyCSRFToken(secret, token string) bool {
	saltPart, macPart, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	salt, err := base64.RawURLEncoding.DecodeString(saltPart)
	if err != nil {
		return false
	}
	mac, err := base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return false
	}
	return hmac.Equal(mac, csrfMAC(secret, salt))
}

func csrfMAC(secret string, salt []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(salt)
	return mac.Sum(nil)
}

// tokenFromRequest reads the token from the header, falling back to the form
// field for form-encoded posts.
func tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(CSRFHeaderName); token != "" {
		return token
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return r.FormValue(CSRFFormFieldName)
	}
	return ""
}
