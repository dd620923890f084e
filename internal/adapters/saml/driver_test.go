package saml

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	saml2 "github.com/russellhaering/gosaml2"
	samltypes "github.com/russellhaering/gosaml2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
)

func testKeyPair(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return certPEM, keyPEM
}

func testConfig(t *testing.T) Config {
	t.Helper()
	certPEM, _ := testKeyPair(t)
	return Config{
		EntryPoint:  "https://idp.test/sso",
		Issuer:      "https://app.test",
		Cert:        certPEM,
		CallbackURL: "https://app.test/auth/callback",
	}
}

func TestNew_ValidationErrors(t *testing.T) {
	certPEM, _ := testKeyPair(t)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing entry point", Config{Issuer: "sp", Cert: certPEM, CallbackURL: "https://app.test/cb"}},
		{"missing issuer", Config{EntryPoint: "https://idp.test/sso", Cert: certPEM, CallbackURL: "https://app.test/cb"}},
		{"missing callback URL", Config{EntryPoint: "https://idp.test/sso", Issuer: "sp", Cert: certPEM}},
		{"missing cert", Config{EntryPoint: "https://idp.test/sso", Issuer: "sp", CallbackURL: "https://app.test/cb"}},
		{"garbage cert", Config{EntryPoint: "https://idp.test/sso", Issuer: "sp", CallbackURL: "https://app.test/cb", Cert: "not pem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err))
		})
	}
}

func TestNew_BadClaimExpression(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClaimMapping = domainauth.ClaimMapping{Roles: "groups[?"}
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestNew_WithSigningKey(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t)
	cfg := testConfig(t)
	cfg.Cert = certPEM
	cfg.PrivateKey = keyPEM

	d, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, d.sp.SignAuthnRequests)
	assert.NotNil(t, d.sp.SPKeyStore)
}

func TestNew_BadSigningKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrivateKey = "not a key"
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestBeginLogin(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	sess := &domainauth.Session{ID: "sess-1"}
	redirect, err := d.BeginLogin(context.Background(), sess, ports.BeginInput{RedirectURI: "/dashboard"})
	require.NoError(t, err)

	assert.Contains(t, redirect.URL, "https://idp.test/sso")
	assert.Contains(t, redirect.URL, "SAMLRequest=")
	require.NotNil(t, sess.Pending)
	assert.NotEmpty(t, sess.Pending.RelayState)
	assert.Equal(t, "/dashboard", sess.Pending.RedirectURI)
	assert.Contains(t, redirect.URL, "RelayState="+sess.Pending.RelayState)
}

func TestBeginLogin_FreshRelayStatePerAttempt(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	sess := &domainauth.Session{ID: "sess-1"}
	_, err = d.BeginLogin(context.Background(), sess, ports.BeginInput{})
	require.NoError(t, err)
	first := sess.Pending.RelayState

	_, err = d.BeginLogin(context.Background(), sess, ports.BeginInput{})
	require.NoError(t, err)
	assert.NotEqual(t, first, sess.Pending.RelayState)
}

func TestCompleteLogin_MissingResponse(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	sess := &domainauth.Session{ID: "sess-1"}
	_, err = d.CompleteLogin(context.Background(), sess, ports.CallbackInput{})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Nil(t, sess.User)
}

func TestCompleteLogin_MalformedResponse(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	sess := &domainauth.Session{ID: "sess-1"}
	_, err = d.CompleteLogin(context.Background(), sess, ports.CallbackInput{SAMLResponse: "bm90IHhtbA=="})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Nil(t, sess.User)
}

func TestLogout(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogoutURL = "https://idp.test/slo"
	d, err := New(cfg)
	require.NoError(t, err)

	redirect, err := d.Logout(context.Background(), &domainauth.Session{ID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://idp.test/slo", redirect.URL)
}

func TestLogout_NoSLO(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	redirect, err := d.Logout(context.Background(), &domainauth.Session{ID: "sess-1"})
	require.NoError(t, err)
	assert.Empty(t, redirect.URL)
}

func Test_assertionClaims(t *testing.T) {
	info := &saml2.AssertionInfo{
		NameID:       "jdoe@corp.test",
		SessionIndex: "idx-42",
		Values: saml2.Values{
			"email": samltypes.Attribute{
				Name:   "email",
				Values: []samltypes.AttributeValue{{Value: "jdoe@corp.test"}},
			},
			"groups": samltypes.Attribute{
				Name: "groups",
				Values: []samltypes.AttributeValue{
					{Value: "admins"},
					{Value: "users"},
				},
			},
			"empty": samltypes.Attribute{Name: "empty"},
		},
	}

	claims := assertionClaims(info)
	assert.Equal(t, "jdoe@corp.test", claims["email"])
	assert.Equal(t, []any{"admins", "users"}, claims["groups"])
	assert.Equal(t, "jdoe@corp.test", claims["nameID"])
	assert.Equal(t, "idx-42", claims["sessionIndex"])
	_, ok := claims["empty"]
	assert.False(t, ok)
}

func Test_assertionClaims_FeedsMapper(t *testing.T) {
	mapper, err := domainauth.NewClaimMapper(domainauth.ClaimMapping{Roles: "groups"})
	require.NoError(t, err)

	info := &saml2.AssertionInfo{
		NameID: "jdoe",
		Values: saml2.Values{
			"email": samltypes.Attribute{
				Name:   "email",
				Values: []samltypes.AttributeValue{{Value: "jdoe@corp.test"}},
			},
			"groups": samltypes.Attribute{
				Name:   "groups",
				Values: []samltypes.AttributeValue{{Value: "admins"}},
			},
		},
	}

	user, err := mapper.MapUser(assertionClaims(info))
	require.NoError(t, err)
	assert.Equal(t, "jdoe", user.ID)
	assert.Equal(t, "jdoe@corp.test", user.Email)
	assert.Equal(t, []string{"admins"}, user.Roles)
}

func TestDriver_ImplementsInterface(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)
	var _ ports.Driver = d
	assert.Equal(t, "saml", d.Name())
}
