package entra

// Package entra implements the OIDC authorization-code-with-PKCE driver for
// Microsoft Entra ID (and any spec-compliant OIDC provider via the Authority
// override).

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
)

// DriverName is the stable identifier for the Entra ID driver.
const DriverName = "entra-id"

// exchangeTimeout bounds the outbound token exchange so an IdP hang cannot
// block the handling goroutine indefinitely.
const exchangeTimeout = 15 * time.Second

// Config holds configuration for the Entra ID driver.
type Config struct {
	// TenantID selects the Entra tenant; ignored when Authority is set.
	TenantID string
	// Authority overrides the issuer URL (useful for sovereign clouds and
	// non-Entra OIDC providers).
	Authority    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	// ResponseMode is passed through to the authorization request ("query"
	// when empty).
	ResponseMode string
	LogoutURL    string
	ClaimMapping domainauth.ClaimMapping
	// HTTPClient is optional; a 15s-timeout client is used when nil.
	HTTPClient *http.Client
}

// Driver implements ports.Driver over OIDC code + PKCE.
//
// Provider discovery runs once at construction and the resulting metadata
// (endpoints, JWKS) is cached for the process lifetime; a provider key
// rotation therefore requires a restart.
type Driver struct {
	oauth        *oauth2.Config
	verifier     *gooidc.IDTokenVerifier
	claims       *domainauth.ClaimMapper
	responseMode string
	logoutURL    string
	client       *http.Client
}

// New constructs the driver, fetching the provider discovery document.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.ClientID == "" {
		return nil, apperrors.Configuration("entra: client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, apperrors.Configuration("entra: client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, apperrors.Configuration("entra: redirect URL is required")
	}
	issuer := cfg.Authority
	if issuer == "" {
		if cfg.TenantID == "" {
			return nil, apperrors.Configuration("entra: tenant ID or authority is required")
		}
		issuer = "https://login.microsoftonline.com/" + cfg.TenantID + "/v2.0"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: exchangeTimeout}
	}

	mapper, err := domainauth.NewClaimMapper(cfg.ClaimMapping)
	if err != nil {
		return nil, err
	}

	ctx = gooidc.ClientContext(ctx, client)
	provider, err := gooidc.NewProvider(ctx, strings.TrimSuffix(issuer, "/"))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfiguration, "entra: provider discovery failed")
	}

	scope := cfg.Scope
	if scope == "" {
		scope = "openid profile email"
	}

	d := &Driver{
		verifier:  provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		claims:    mapper,
		logoutURL: cfg.LogoutURL,
		client:    client,
	}
	d.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       strings.Fields(scope),
		Endpoint:     provider.Endpoint(),
	}
	d.responseMode = cfg.ResponseMode
	return d, nil
}

func (d *Driver) Name() string { return DriverName }

// BeginLogin stores a fresh PKCE verifier, state, and nonce in the session
// and returns the authorization URL. Each Begin overwrites any previous
// pending attempt on the session (last write wins across tabs).
func (d *Driver) BeginLogin(_ context.Context, sess *domainauth.Session, in ports.BeginInput) (ports.Redirect, error) {
	state, err := domainauth.RandomToken(24)
	if err != nil {
		return ports.Redirect{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := domainauth.RandomToken(24)
	if err != nil {
		return ports.Redirect{}, fmt.Errorf("generate nonce: %w", err)
	}
	pkce := oauth2.GenerateVerifier()

	sess.Pending = &domainauth.PendingLogin{
		State:       state,
		Nonce:       nonce,
		Verifier:    pkce,
		RedirectURI: in.RedirectURI,
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(pkce),
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	}
	if d.responseMode != "" {
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", d.responseMode))
	}

	return ports.Redirect{URL: d.oauth.AuthCodeURL(state, opts...)}, nil
}

// CompleteLogin exchanges the authorization code using the session's PKCE
// verifier and validates the resulting ID token (signature, nonce). Every
// failure surfaces as an authentication error and leaves the session user
// untouched.
func (d *Driver) CompleteLogin(ctx context.Context, sess *domainauth.Session, in ports.CallbackInput) (domainauth.User, error) {
	if in.Code == "" {
		return domainauth.User{}, apperrors.Authentication("authorization code is missing")
	}
	pending := sess.Pending
	if pending == nil || pending.Verifier == "" {
		return domainauth.User{}, apperrors.Authentication("no PKCE verifier in session; login was not initiated here")
	}
	if in.State == "" || in.State != pending.State {
		return domainauth.User{}, apperrors.Authentication("state parameter mismatch")
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	ctx = gooidc.ClientContext(ctx, d.client)

	token, err := d.oauth.Exchange(ctx, in.Code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "token exchange failed")
	}

	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return domainauth.User{}, apperrors.Authentication("token response carries no id_token")
	}

	idToken, err := d.verifier.Verify(ctx, rawID)
	if err != nil {
		return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "id_token verification failed")
	}
	if idToken.Nonce != pending.Nonce {
		return domainauth.User{}, apperrors.Authentication("id_token nonce mismatch")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "decode id_token claims")
	}

	return d.claims.MapUser(claims)
}

// Logout returns the configured front-channel logout redirect, or completes
// locally when none is set.
func (d *Driver) Logout(_ context.Context, _ *domainauth.Session) (ports.Redirect, error) {
	return ports.Redirect{URL: d.logoutURL}, nil
}
