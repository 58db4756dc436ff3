package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nkiryanov/authbase/internal/handlers/render"
)

// Keys starting with '$' or containing '.' are operators and paths for document stores,
// they are never valid field names of the API
func forbiddenKey(key string) bool {
	return strings.HasPrefix(key, "$") || strings.Contains(key, ".")
}

// sanitizeValue drops forbidden keys from objects at any depth
func sanitizeValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for key, value := range v {
			if forbiddenKey(key) {
				delete(v, key)
				continue
			}
			v[key] = sanitizeValue(value)
		}
		return v
	case []any:
		for i, value := range v {
			v[i] = sanitizeValue(value)
		}
		return v
	default:
		return v
	}
}

func sanitizeValues(values url.Values) (url.Values, bool) {
	changed := false
	for key := range values {
		if forbiddenKey(key) {
			delete(values, key)
			changed = true
		}
	}
	return values, changed
}

// SanitizeMiddleware removes forbidden keys from query, form and JSON body
func SanitizeMiddleware(respond ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if query, changed := sanitizeValues(r.URL.Query()); changed {
				r.URL.RawQuery = query.Encode()
			}
			if r.PostForm != nil {
				r.PostForm, _ = sanitizeValues(r.PostForm)
			}

			// Any body that parses as JSON is sanitized, whatever Content-Type says:
			// the binder decodes JSON regardless of it
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				respond(w, r, render.DecodeError(err))
				return
			}

			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()

			var doc any
			if err := dec.Decode(&doc); err != nil {
				// Not a JSON document, handler reports it or reads it as is
				r.Body = io.NopCloser(bytes.NewReader(body))
				next.ServeHTTP(w, r)
				return
			}

			sanitized, err := json.Marshal(sanitizeValue(doc))
			if err != nil {
				respond(w, r, err)
				return
			}
			replaceBody(r, sanitized)

			next.ServeHTTP(w, r)
		})
	}
}
