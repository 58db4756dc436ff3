package userctx

import (
	"context"

	"github.com/nkiryanov/authbase/internal/models"
)

type ctxKey string

const (
	userKey    ctxKey = "user"
	authErrKey ctxKey = "authErr"
)

// Create a new context with the user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Extract the user from the context
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}

// Remember why credentials sent with the request were rejected
func WithAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrKey, err)
}

func AuthError(ctx context.Context) error {
	err, _ := ctx.Value(authErrKey).(error)
	return err
}
