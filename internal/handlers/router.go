package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/deploy"
	"github.com/nkiryanov/authbase/internal/handlers/middleware"
	"github.com/nkiryanov/authbase/internal/logger"
)

type rateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
	Window() time.Duration
}

type RouterConfig struct {
	Mode deploy.Mode

	// Max request body size, default is used if not set
	BodyLimit int64

	// Origins allowed to make cross origin requests, any if empty
	CORSOrigins []string
}

// NewRouter builds the request pipeline once
// limiter may be nil, then auth requests are never limited
func NewRouter(cfg RouterConfig, authService authService, limiter rateLimiter, l logger.Logger) *Pipeline {
	errs := NewErrorResponder(l, cfg.Mode.ExposeStack())
	handle := errs.Handle
	withUser := middleware.RequireUser(errs.Respond)

	mux := http.NewServeMux()

	mux.Handle("POST /v1/auth/register", handle(handleRegister(authService)))
	mux.Handle("POST /v1/auth/login", handle(handleLogin(authService)))
	mux.Handle("POST /v1/auth/logout", handle(handleLogout(authService)))
	mux.Handle("POST /v1/auth/refresh-tokens", handle(handleRefreshTokens(authService)))
	mux.Handle("POST /v1/auth/forgot-password", handle(handleForgotPassword(authService)))
	mux.Handle("POST /v1/auth/reset-password", handle(handleResetPassword(authService)))
	mux.Handle("POST /v1/auth/send-verification-email", withUser(handle(handleSendVerificationEmail(authService))))
	mux.Handle("POST /v1/auth/verify-email", handle(handleVerifyEmail(authService)))

	mux.Handle("GET /v1/users/me", withUser(handle(handleUserMe())))
	mux.Handle("GET /v1/health", handle(handleHealth()))

	rateLimitAuth := cfg.Mode.RateLimitAuth() && limiter != nil
	var authLimit func(http.Handler) http.Handler
	if rateLimitAuth {
		authLimit = onlyPrefix("/v1/auth/", middleware.RateLimitMiddleware(limiter, errs.Respond, l))
	}

	return Compose(notFound(mux, errs),
		Stage{Name: "access log", Wrap: when(cfg.Mode.LogRequests(), middleware.LoggerMiddleware(l))},
		Stage{Name: "recover", Wrap: middleware.RecoverMiddleware(errs.Respond)},
		Stage{Name: "security headers", Wrap: middleware.SecurityMiddleware(cfg.Mode == deploy.Production)},
		Stage{Name: "body parsing", Wrap: middleware.BodyParseMiddleware(cfg.BodyLimit, errs.Respond)},
		Stage{Name: "sanitization", Wrap: middleware.SanitizeMiddleware(errs.Respond)},
		Stage{Name: "compression", Wrap: middleware.CompressMiddleware()},
		Stage{Name: "cors", Wrap: middleware.CORSMiddleware(cfg.CORSOrigins)},
		Stage{Name: "authentication", Wrap: middleware.AuthMiddleware(authService)},
		Stage{Name: "auth rate limit", Wrap: authLimit},
	)
}

// notFound answers with NotFound error when no route matches, method included
func notFound(mux *http.ServeMux, errs *ErrorResponder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern == "" {
			errs.Respond(w, r, apperrors.New(apperrors.NotFound, "Not found"))
			return
		}
		mux.ServeHTTP(w, r)
	})
}
