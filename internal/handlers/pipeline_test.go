package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Middleware that appends its name to X-Trace header before calling next
func trace(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Add("X-Trace", name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestCompose(t *testing.T) {
	var got []string
	h := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Header.Values("X-Trace")
	})

	p := Compose(h,
		Stage{Name: "first", Wrap: trace("first")},
		Stage{Name: "disabled", Wrap: when(false, trace("disabled"))},
		Stage{Name: "second", Wrap: when(true, trace("second"))},
		Stage{Name: "third", Wrap: trace("third")},
	)

	p.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"first", "second", "third"}, got, "stages have to run in declared order")
	require.Equal(t, []string{"first", "second", "third"}, p.Stages())
}

func TestOnlyPrefix(t *testing.T) {
	var got string
	h := onlyPrefix("/v1/auth/", trace("limited"))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = strings.Join(r.Header.Values("X-Trace"), ",")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	require.Equal(t, "limited", got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/users/me", nil))
	require.Empty(t, got)
}
