package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/handlers/userctx"
	"github.com/nkiryanov/authbase/internal/models"
)

const bearerScheme = "Bearer"

type authenticator interface {
	// Return owner of the access token
	Authenticate(ctx context.Context, access string) (models.User, error)
}

// AuthMiddleware identifies user by 'Authorization: Bearer <access>' header
// Requests without credentials pass as anonymous, rejected credentials are remembered
// and reported by RequireUser on protected routes only
func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			scheme, access, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, bearerScheme) || access == "" {
				ctx = userctx.WithAuthError(ctx, apperrors.New(apperrors.Unauthorized, "Please authenticate"))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			user, err := a.Authenticate(ctx, strings.TrimSpace(access))
			if err != nil {
				ctx = userctx.WithAuthError(ctx, err)
			} else {
				ctx = userctx.New(ctx, user)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser guards protected routes
func RequireUser(respond ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := userctx.FromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			err := userctx.AuthError(r.Context())
			if err == nil {
				err = apperrors.New(apperrors.Unauthorized, "Please authenticate")
			}
			respond(w, r, err)
		})
	}
}
