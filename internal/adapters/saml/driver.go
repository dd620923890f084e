package saml

// Package saml implements the SAML 2.0 driver (redirect binding out, POST
// binding back). Protocol validation is delegated to gosaml2; this adapter
// only wires configuration and maps validated assertions into the canonical
// user record.

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
)

// DriverName is the stable identifier for the SAML driver.
const DriverName = "saml"

// Config holds configuration for the SAML driver.
type Config struct {
	// EntryPoint is the IdP single-sign-on URL the browser is redirected to.
	EntryPoint string
	// Issuer is our service-provider entity id.
	Issuer string
	// IdPIssuer is the identity provider's entity id as it appears in
	// assertions. Defaults to EntryPoint when empty.
	IdPIssuer string
	// Cert is the IdP's public signing certificate, PEM encoded.
	Cert string
	// PrivateKey optionally enables signed AuthnRequests (PEM, PKCS1/PKCS8).
	PrivateKey string
	// CallbackURL is the assertion consumer service URL.
	CallbackURL string
	// AudienceURI defaults to Issuer when empty.
	AudienceURI string
	// NameIDFormat overrides the requested NameID format.
	NameIDFormat string
	// LogoutURL is the IdP single-logout endpoint, if any.
	LogoutURL    string
	ClaimMapping domainauth.ClaimMapping
}

// Driver implements ports.Driver over SAML 2.0.
type Driver struct {
	sp        *saml2.SAMLServiceProvider
	claims    *domainauth.ClaimMapper
	logoutURL string
}

// New constructs the driver, parsing the IdP certificate and optional SP key.
func New(cfg Config) (*Driver, error) {
	if cfg.EntryPoint == "" {
		return nil, apperrors.Configuration("saml: entry point is required")
	}
	if cfg.Issuer == "" {
		return nil, apperrors.Configuration("saml: issuer is required")
	}
	if cfg.CallbackURL == "" {
		return nil, apperrors.Configuration("saml: callback URL is required")
	}

	certStore, err := parseIdPCert(cfg.Cert)
	if err != nil {
		return nil, err
	}

	mapper, err := domainauth.NewClaimMapper(cfg.ClaimMapping)
	if err != nil {
		return nil, err
	}

	idpIssuer := cfg.IdPIssuer
	if idpIssuer == "" {
		idpIssuer = cfg.EntryPoint
	}
	audience := cfg.AudienceURI
	if audience == "" {
		audience = cfg.Issuer
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.EntryPoint,
		IdentityProviderIssuer:      idpIssuer,
		ServiceProviderIssuer:       cfg.Issuer,
		AssertionConsumerServiceURL: cfg.CallbackURL,
		AudienceURI:                 audience,
		IDPCertificateStore:         certStore,
	}
	if cfg.NameIDFormat != "" {
		sp.NameIdFormat = cfg.NameIDFormat
	}
	if cfg.PrivateKey != "" {
		keyStore, keyErr := parseSPKey(cfg.PrivateKey, cfg.Cert)
		if keyErr != nil {
			return nil, keyErr
		}
		sp.SPKeyStore = keyStore
		sp.SignAuthnRequests = true
	}

	return &Driver{sp: sp, claims: mapper, logoutURL: cfg.LogoutURL}, nil
}

func (d *Driver) Name() string { return DriverName }

// BeginLogin builds the redirect-binding authentication URL. The flow itself
// is stateless on our side; only the post-login destination is remembered,
// carried both in RelayState and in the session for defense in depth.
func (d *Driver) BeginLogin(_ context.Context, sess *domainauth.Session, in ports.BeginInput) (ports.Redirect, error) {
	relayState, err := domainauth.RandomToken(16)
	if err != nil {
		return ports.Redirect{}, err
	}

	sess.Pending = &domainauth.PendingLogin{
		RelayState:  relayState,
		RedirectURI: in.RedirectURI,
	}

	authURL, err := d.sp.BuildAuthURL(relayState)
	if err != nil {
		return ports.Redirect{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build SAML auth URL")
	}
	return ports.Redirect{URL: authURL}, nil
}

// CompleteLogin validates the posted assertion (signature, issuer, time
// window, audience) and maps its attributes into the canonical user. Any
// validation failure is an authentication error; the session user is never
// touched on failure.
func (d *Driver) CompleteLogin(_ context.Context, _ *domainauth.Session, in ports.CallbackInput) (domainauth.User, error) {
	if in.SAMLResponse == "" {
		return domainauth.User{}, apperrors.Authentication("SAMLResponse is missing")
	}

	info, err := d.sp.RetrieveAssertionInfo(in.SAMLResponse)
	if err != nil {
		return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "assertion validation failed")
	}
	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime {
			return domainauth.User{}, apperrors.Authentication("assertion outside its validity window")
		}
		if info.WarningInfo.NotInAudience {
			return domainauth.User{}, apperrors.Authentication("assertion not addressed to this service provider")
		}
	}

	claims := assertionClaims(info)
	user, err := d.claims.MapUser(claims)
	if err != nil {
		return domainauth.User{}, err
	}
	return user, nil
}

// Logout redirects to the IdP single-logout endpoint when configured,
// otherwise completes locally.
func (d *Driver) Logout(_ context.Context, _ *domainauth.Session) (ports.Redirect, error) {
	return ports.Redirect{URL: d.logoutURL}, nil
}

// assertionClaims flattens a validated assertion into a claim document the
// shared mapper understands. The NameID is exposed under "nameID", which the
// mapper already treats as an id fallback.
func assertionClaims(info *saml2.AssertionInfo) map[string]any {
	claims := make(map[string]any, len(info.Values)+2)
	for _, attr := range info.Values {
		switch len(attr.Values) {
		case 0:
		case 1:
			claims[attr.Name] = attr.Values[0].Value
		default:
			vals := make([]any, 0, len(attr.Values))
			for _, v := range attr.Values {
				vals = append(vals, v.Value)
			}
			claims[attr.Name] = vals
		}
	}
	if info.NameID != "" {
		claims["nameID"] = info.NameID
	}
	if info.SessionIndex != "" {
		claims["sessionIndex"] = info.SessionIndex
	}
	return claims
}

func parseIdPCert(certPEM string) (*dsig.MemoryX509CertificateStore, error) {
	if certPEM == "" {
		return nil, apperrors.Configuration("saml: IdP certificate is required")
	}
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, apperrors.Configuration("saml: IdP certificate is not valid PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfiguration, "saml: parse IdP certificate")
	}
	return &dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{cert}}, nil
}

func parseSPKey(keyPEM, certPEM string) (dsig.X509KeyStore, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, apperrors.Configuration("saml: SP private key is not valid PEM")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		pkcs8Key, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, apperrors.Wrap(pkcs8Err, apperrors.ErrCodeConfiguration, "saml: parse SP private key")
		}
		rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
		if !ok {
			return nil, apperrors.Configuration("saml: SP private key is not RSA")
		}
		privateKey = rsaKey
	}

	certBlock, _ := pem.Decode([]byte(certPEM))
	if certBlock == nil {
		return nil, apperrors.Configuration("saml: SP certificate is not valid PEM")
	}

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{certBlock.Bytes},
		PrivateKey:  privateKey,
	})
	return keyStore, nil
}
