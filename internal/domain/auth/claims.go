package auth

import (
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	apperrors "github.com/crestline/webstack/internal/errors"
)

// ClaimMapping names the source claims that feed the canonical User fields.
// Each value may be a plain claim name or a JMESPath expression evaluated
// against the raw claim document.
type ClaimMapping struct {
	ID          string
	Email       string
	DisplayName string
	Roles       string
	// DefaultRole is assigned as the only role when no role claim is present.
	// Role absence is never an authentication failure.
	DefaultRole string
}

// ClaimMapper extracts a canonical User from a provider claim document using
// the configured mapping first and a small set of well-known fallbacks after.
type ClaimMapper struct {
	mapping ClaimMapping
}

// NewClaimMapper validates the mapping expressions and returns a mapper.
func NewClaimMapper(mapping ClaimMapping) (*ClaimMapper, error) {
	for field, expr := range map[string]string{
		"id":           mapping.ID,
		"email":        mapping.Email,
		"display_name": mapping.DisplayName,
		"roles":        mapping.Roles,
	} {
		if expr == "" {
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeConfiguration,
				"invalid claim mapping for %s: %q", field, expr)
		}
	}
	return &ClaimMapper{mapping: mapping}, nil
}

// Fallback claim names tried when the configured mapping yields nothing.
var (
	idFallbacks      = []string{"sub", "oid", "nameID"}
	emailFallbacks   = []string{"email", "preferred_username", "upn", "mail"}
	displayFallbacks = []string{"name"}
	roleFallbacks    = []string{"roles", "groups"}
)

// MapUser builds the canonical User from a raw claim document. It fails only
// when no usable subject identifier can be found; every other field degrades
// to a fallback or stays empty.
func (m *ClaimMapper) MapUser(claims map[string]any) (User, error) {
	id := m.lookupString(claims, m.mapping.ID, idFallbacks)
	if id == "" {
		return User{}, apperrors.Authentication("identity response carries no usable subject identifier")
	}

	email := m.lookupString(claims, m.mapping.Email, emailFallbacks)

	display := m.lookupString(claims, m.mapping.DisplayName, displayFallbacks)
	if display == "" {
		display = joinNames(
			firstString(claims, "given_name", "firstname", "first_name"),
			firstString(claims, "family_name", "lastname", "last_name"),
		)
	}
	if display == "" {
		display = email
	}

	roles := m.lookupStrings(claims, m.mapping.Roles, roleFallbacks)
	if len(roles) == 0 && m.mapping.DefaultRole != "" {
		roles = []string{m.mapping.DefaultRole}
	}

	return User{
		ID:          id,
		Email:       email,
		DisplayName: display,
		Roles:       roles,
		Attributes:  claims,
	}, nil
}

// lookupString evaluates the configured expression first, then the fallback
// claim names, returning the first non-empty string.
func (m *ClaimMapper) lookupString(claims map[string]any, expr string, fallbacks []string) string {
	if expr != "" {
		if s := asString(search(expr, claims)); s != "" {
			return s
		}
	}
	return firstString(claims, fallbacks...)
}

func (m *ClaimMapper) lookupStrings(claims map[string]any, expr string, fallbacks []string) []string {
	if expr != "" {
		if vals := asStrings(search(expr, claims)); len(vals) > 0 {
			return vals
		}
	}
	for _, name := range fallbacks {
		if vals := asStrings(claims[name]); len(vals) > 0 {
			return vals
		}
	}
	return nil
}

func search(expr string, claims map[string]any) any {
	v, err := jmespath.Search(expr, claims)
	if err != nil {
		return nil
	}
	return v
}

func firstString(claims map[string]any, names ...string) string {
	for _, name := range names {
		if s := asString(claims[name]); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asStrings normalizes a claim value into a string slice; providers send role
// claims as a JSON array, a single string, or a space-separated string.
func asStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return compactStrings(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return compactStrings(strings.Fields(val))
	default:
		return nil
	}
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func joinNames(first, last string) string {
	switch {
	case first != "" && last != "":
		return fmt.Sprintf("%s %s", first, last)
	case first != "":
		return first
	default:
		return last
	}
}
