package userctx

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authbase/internal/models"
)

func TestUserCtx(t *testing.T) {
	t.Run("user", func(t *testing.T) {
		u := models.User{ID: uuid.New(), Email: "user@example.com"}

		got, ok := FromContext(New(context.Background(), u))

		require.True(t, ok)
		require.Equal(t, u, got)
	})

	t.Run("no user", func(t *testing.T) {
		_, ok := FromContext(context.Background())
		require.False(t, ok)
	})

	t.Run("auth error", func(t *testing.T) {
		failure := errors.New("bad token")

		require.NoError(t, AuthError(context.Background()))
		require.Equal(t, failure, AuthError(WithAuthError(context.Background(), failure)))
	})
}
