package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := Authentication("token exchange failed")
	assert.Equal(t, "token exchange failed", err.Error())

	wrapped := Wrap(errors.New("connection refused"), ErrCodeSession, "load session")
	assert.Equal(t, "load session: connection refused", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrCodeAuthentication, "exchange")
	assert.ErrorIs(t, err, cause)
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "nothing %d", 1))
}

func TestCodePredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"configuration", Configuration("bad driver"), IsConfiguration},
		{"authentication", Authentication("bad assertion"), IsAuthentication},
		{"session", Session("store unreachable"), IsSession},
		{"csrf", CSRF("missing token"), IsCSRF},
		{"rate_limited", RateLimited("too many requests"), IsRateLimited},
		{"not_found", NotFound("no such session"), IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(errors.New("plain")))
		})
	}
}

func TestCodePredicates_WrappedChain(t *testing.T) {
	inner := Authentication("nonce mismatch")
	outer := fmt.Errorf("complete login: %w", inner)

	require.True(t, IsAuthentication(outer))
	assert.Equal(t, ErrCodeAuthentication, GetCode(outer))
}

func TestGetCode_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
}
