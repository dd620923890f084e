package config

import (
	"fmt"
	"strings"
)

// AuthDriver selects which authentication driver the process runs with.
type AuthDriver string

const (
	// AuthDriverMock uses the static test-user driver (development only).
	AuthDriverMock AuthDriver = "mock"
	// AuthDriverSAML uses SAML 2.0 against a configured IdP.
	AuthDriverSAML AuthDriver = "saml"
	// AuthDriverEntra uses OIDC code + PKCE against Microsoft Entra ID.
	AuthDriverEntra AuthDriver = "entra-id"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthDriver. An
// unrecognized value is a hard error: auth must never silently fall back to
// a different driver.
func (a *AuthDriver) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "mock", "saml", "entra-id":
		*a = AuthDriver(v)
		return nil
	default:
		return fmt.Errorf("invalid AUTH_DRIVER: %q (valid options: mock, saml, entra-id)", v)
	}
}

// EntraConfig contains Entra ID (OIDC) driver configuration.
type EntraConfig struct {
	TenantID     string `env:"TENANT_ID"`
	Authority    string `env:"AUTHORITY"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	ResponseMode string `env:"RESPONSE_MODE"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// SAMLConfig contains SAML 2.0 driver configuration. Cert and PrivateKey are
// PEM blobs, typically injected from a secrets mount.
type SAMLConfig struct {
	EntryPoint   string `env:"ENTRY_POINT"`
	Issuer       string `env:"ISSUER"`
	IdPIssuer    string `env:"IDP_ISSUER"`
	Cert         string `env:"CERT"`
	PrivateKey   string `env:"PRIVATE_KEY"`
	AudienceURI  string `env:"AUDIENCE_URI"`
	NameIDFormat string `env:"NAMEID_FORMAT"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// ClaimMappingConfig controls how raw IdP claims map onto the canonical user.
// Each value is a claim name or a JMESPath expression evaluated against the
// claim document.
type ClaimMappingConfig struct {
	ID          string `env:"ID"`
	Email       string `env:"EMAIL"`
	DisplayName string `env:"DISPLAY_NAME"`
	Roles       string `env:"ROLES"`
	DefaultRole string `env:"DEFAULT_ROLE"`
}

// MockAuthConfig controls the mock driver's test users.
type MockAuthConfig struct {
	// Users is a semicolon-separated list of "id:email:display name:role1|role2"
	// entries. Empty uses the built-in defaults.
	Users []string `env:"USERS" envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Driver determines which authentication driver to use. Required; there
	// is no default.
	Driver AuthDriver `env:"AUTH_DRIVER,required"`

	// CallbackURL is the absolute URL of our callback endpoint, as registered
	// with the IdP.
	CallbackURL string `env:"AUTH_CALLBACK_URL" envDefault:"http://localhost:8080/auth/callback"`

	// SuccessRedirect is the in-app landing path after login.
	SuccessRedirect string `env:"AUTH_SUCCESS_REDIRECT" envDefault:"/"`

	// ErrorRedirect is where failed logins land. Only the generic marker ever
	// reaches the browser.
	ErrorRedirect string `env:"AUTH_ERROR_REDIRECT" envDefault:"/auth/error?error=auth_failed"`

	Entra  EntraConfig        `envPrefix:"ENTRA_"`
	SAML   SAMLConfig         `envPrefix:"SAML_"`
	Mock   MockAuthConfig     `envPrefix:"MOCK_AUTH_"`
	Claims ClaimMappingConfig `envPrefix:"AUTH_CLAIM_"`
}
