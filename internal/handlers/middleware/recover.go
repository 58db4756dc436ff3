package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nkiryanov/authbase/internal/apperrors"
)

// RecoverMiddleware turns panics into InternalDefect responses
func RecoverMiddleware(respond ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let the server abort the response as it does by default
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := apperrors.Internal(fmt.Errorf("panic: %v", rec)).WithStack(string(debug.Stack()))
				respond(w, r, err)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
