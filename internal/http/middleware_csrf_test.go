package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
)

func csrfTestHandler() http.Handler {
	return CSRFProtection()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func withTestSession(r *http.Request, secret string) *http.Request {
	sess := domainauth.Session{ID: "sess-1", CSRFSecret: secret}
	return r.WithContext(SetSessionInContext(r.Context(), sess))
}

func TestCSRF_SafeMethodIssuesToken(t *testing.T) {
	handler := csrfTestHandler()

	req := withTestSession(httptest.NewRequest(http.MethodGet, "/auth/me", nil), "secret-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Header().Get(CSRFHeaderName)
	require.NotEmpty(t, token)
	assert.True(t, VerifyCSRFToken("secret-1", token))
}

func TestCSRF_UnsafeMethodWithoutTokenIs403(t *testing.T) {
	handler := csrfTestHandler()

	req := withTestSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "secret-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"csrf_invalid"`)
}

func TestCSRF_ValidHeaderTokenPasses(t *testing.T) {
	handler := csrfTestHandler()
	token, err := MintCSRFToken("secret-1")
	require.NoError(t, err)

	req := withTestSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "secret-1")
	req.Header.Set(CSRFHeaderName, token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRF_FormFieldTokenPasses(t *testing.T) {
	handler := csrfTestHandler()
	token, err := MintCSRFToken("secret-1")
	require.NoError(t, err)

	form := url.Values{CSRFFormFieldName: {token}}
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withTestSession(req, "secret-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRF_TokenBoundToSessionSecret(t *testing.T) {
	handler := csrfTestHandler()
	token, err := MintCSRFToken("someone-elses-secret")
	require.NoError(t, err)

	req := withTestSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "secret-1")
	req.Header.Set(CSRFHeaderName, token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRF_ExemptPathsSkipValidation(t *testing.T) {
	handler := csrfTestHandler()

	for _, path := range []string{"/auth/callback", "/auth/login", "/healthz"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestCSRF_NoSessionFailsClosed(t *testing.T) {
	handler := csrfTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyCSRFToken_Malformed(t *testing.T) {
	assert.False(t, VerifyCSRFToken("secret", ""))
	assert.False(t, VerifyCSRFToken("secret", "no-dot"))
	assert.False(t, VerifyCSRFToken("secret", "!!!.!!!"))

	token, err := MintCSRFToken("secret")
	require.NoError(t, err)
	assert.True(t, VerifyCSRFToken("secret", token))

	// Each mint produces a distinct salt but all verify.
	token2, err := MintCSRFToken("secret")
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	assert.True(t, VerifyCSRFToken("secret", token2))
}
