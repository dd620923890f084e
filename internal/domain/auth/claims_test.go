package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/crestline/webstack/internal/errors"
)

func newMapper(t *testing.T, mapping ClaimMapping) *ClaimMapper {
	t.Helper()
	m, err := NewClaimMapper(mapping)
	require.NoError(t, err)
	return m
}

func TestNewClaimMapper_InvalidExpression(t *testing.T) {
	_, err := NewClaimMapper(ClaimMapping{ID: "sub["})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestMapUser_ConfiguredMappingWins(t *testing.T) {
	m := newMapper(t, ClaimMapping{ID: "employee_id", Email: "contact_mail"})

	user, err := m.MapUser(map[string]any{
		"employee_id":  "E-1001",
		"sub":          "ignored-sub",
		"contact_mail": "jan@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "E-1001", user.ID)
	assert.Equal(t, "jan@example.com", user.Email)
}

func TestMapUser_FallbackChain(t *testing.T) {
	m := newMapper(t, ClaimMapping{})

	user, err := m.MapUser(map[string]any{
		"oid":                "obj-42",
		"preferred_username": "sam@corp.example",
		"given_name":         "Sam",
		"family_name":        "Rivera",
	})

	require.NoError(t, err)
	assert.Equal(t, "obj-42", user.ID)
	assert.Equal(t, "sam@corp.example", user.Email)
	assert.Equal(t, "Sam Rivera", user.DisplayName)
}

func TestMapUser_DisplayNameFallsBackToEmail(t *testing.T) {
	m := newMapper(t, ClaimMapping{})

	user, err := m.MapUser(map[string]any{
		"sub":   "u-1",
		"email": "anon@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "anon@example.com", user.DisplayName)
}

func TestMapUser_NoSubjectFails(t *testing.T) {
	m := newMapper(t, ClaimMapping{})

	_, err := m.MapUser(map[string]any{"email": "nobody@example.com"})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
}

func TestMapUser_RoleExtraction(t *testing.T) {
	tests := []struct {
		name    string
		mapping ClaimMapping
		claims  map[string]any
		want    []string
	}{
		{
			name:   "roles array claim",
			claims: map[string]any{"sub": "u", "roles": []any{"admin", "user"}},
			want:   []string{"admin", "user"},
		},
		{
			name:   "groups fallback",
			claims: map[string]any{"sub": "u", "groups": []any{"ops"}},
			want:   []string{"ops"},
		},
		{
			name:   "single string role",
			claims: map[string]any{"sub": "u", "roles": "admin"},
			want:   []string{"admin"},
		},
		{
			name:    "default role when absent",
			mapping: ClaimMapping{DefaultRole: "user"},
			claims:  map[string]any{"sub": "u"},
			want:    []string{"user"},
		},
		{
			name:   "no roles and no default is empty, not an error",
			claims: map[string]any{"sub": "u"},
			want:   nil,
		},
		{
			name:    "jmespath expression over nested claim",
			mapping: ClaimMapping{Roles: "realm_access.roles"},
			claims: map[string]any{
				"sub":          "u",
				"realm_access": map[string]any{"roles": []any{"editor"}},
			},
			want: []string{"editor"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMapper(t, tt.mapping)
			user, err := m.MapUser(tt.claims)
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.Roles)
		})
	}
}

func TestMapUser_AttributesPassthrough(t *testing.T) {
	m := newMapper(t, ClaimMapping{})
	claims := map[string]any{"sub": "u-1", "tid": "tenant-9"}

	user, err := m.MapUser(claims)
	require.NoError(t, err)
	assert.Equal(t, "tenant-9", user.Attributes["tid"])
}
