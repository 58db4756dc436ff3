package middleware

import (
	"net/http"
	"time"
)

type logger interface {
	Info(msg string, args ...any)
}

// logWriter remembers status and size of the response
type logWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func newLogWriter(w http.ResponseWriter) *logWriter {
	return &logWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

// Only the first status is the one sent to client
func (w *logWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	if !w.wroteHeader {
		w.status = statusCode
		w.wroteHeader = true
	}
}

// Unwrap lets http.ResponseController reach the original writer
func (w *logWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Access log. Query is not logged: reset password and verify email tokens travel in it
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := newLogWriter(w)

			next.ServeHTTP(lw, r)

			l.Info(
				"got HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"ip", clientIP(r),
				"duration", time.Since(start),
				"status", lw.status,
				"size", lw.size,
			)
		})
	}
}
