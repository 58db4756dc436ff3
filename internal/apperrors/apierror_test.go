package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{TokenExpired, http.StatusUnauthorized},
		{TokenInvalid, http.StatusUnauthorized},
		{TokenRevoked, http.StatusUnauthorized},
		{Unauthorized, http.StatusUnauthorized},
		{RateLimited, http.StatusTooManyRequests},
		{NotFound, http.StatusNotFound},
		{ValidationError, http.StatusBadRequest},
		{InternalDefect, http.StatusInternalServerError},
		{Kind("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			require.Equal(t, tt.status, tt.kind.Status())
		})
	}
}

func TestError_New(t *testing.T) {
	err := New(TokenRevoked, "Token revoked")

	assert.Equal(t, TokenRevoked, err.Kind)
	assert.Equal(t, http.StatusUnauthorized, err.StatusCode)
	assert.Equal(t, "Token revoked", err.Message)
	assert.True(t, err.Operational)
	assert.Equal(t, "token_revoked: Token revoked", err.Error())
}

func TestError_Is(t *testing.T) {
	wrapped := fmt.Errorf("service error: %w", New(TokenExpired, "Token expired"))

	require.ErrorIs(t, wrapped, TokenExpired)
	require.NotErrorIs(t, wrapped, TokenInvalid)
}

func TestError_Stack(t *testing.T) {
	t.Run("captured without constructor", func(t *testing.T) {
		err := New(NotFound, "Not found")

		stack := err.Stack()
		require.NotEmpty(t, stack)
		assert.Contains(t, stack, "TestError_Stack", "first frame has to be the caller")
		assert.NotContains(t, stack, "apperrors.New\n", "constructor frame must be skipped")
		assert.NotContains(t, stack, "apperrors.callers", "helper frame must be skipped")
	})

	t.Run("explicit stack wins", func(t *testing.T) {
		err := New(NotFound, "Not found").WithStack("custom stack")

		require.Equal(t, "custom stack", err.Stack())
	})
}

func TestConvert(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		require.Nil(t, Convert(nil))
	})

	t.Run("api error kept as is", func(t *testing.T) {
		orig := New(ValidationError, "Email already taken")

		got := Convert(fmt.Errorf("wrapped: %w", orig))

		require.Same(t, orig, got)
	})

	t.Run("unknown error becomes defect", func(t *testing.T) {
		cause := errors.New("connection reset by peer")

		got := Convert(cause)

		require.Equal(t, InternalDefect, got.Kind)
		require.Equal(t, http.StatusInternalServerError, got.StatusCode)
		require.False(t, got.Operational)
		require.Equal(t, "Internal server error", got.Message, "message must not leak the cause")
		require.ErrorIs(t, got, cause, "cause has to be kept for logs")
	})
}
