package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/authbase/internal/apperrors"
)

type limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
	Window() time.Duration
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Client address without port
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware counts failed requests per client address
// The attempt is counted before handler runs and forgotten if response is successful,
// so only failed attempts are limited. Limiter failures let requests through.
func RateLimitMiddleware(l limiter, respond ErrorResponder, log errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			allowed, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Error("Rate limiter failed, request is not limited", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.Window().Seconds())))
				respond(w, r, apperrors.New(apperrors.RateLimited, "Too many requests, please try again later"))
				return
			}

			lw := newLogWriter(w)
			next.ServeHTTP(lw, r)

			if lw.status < http.StatusBadRequest {
				if err := l.Forget(context.WithoutCancel(r.Context()), key); err != nil {
					log.Error("Rate limiter failed to forget successful attempt", "error", err)
				}
			}
		})
	}
}
