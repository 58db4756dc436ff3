package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/nkiryanov/authbase/internal/handlers/render"
)

const DefaultBodyLimit = 100 << 10 // 100KB

func mediaType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

// replaceBody swaps request body with JSON document
func replaceBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	r.Header.Set("Content-Type", "application/json")
}

// BodyParseMiddleware limits request body size and turns url encoded forms into JSON,
// so handlers read JSON only
func BodyParseMiddleware(limit int64, respond ErrorResponder) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)

			if mediaType(r) != "application/x-www-form-urlencoded" {
				next.ServeHTTP(w, r)
				return
			}

			if err := r.ParseForm(); err != nil {
				respond(w, r, render.DecodeError(err))
				return
			}

			doc := make(map[string]any, len(r.PostForm))
			for key, values := range r.PostForm {
				if len(values) == 1 {
					doc[key] = values[0]
				} else {
					doc[key] = values
				}
			}

			body, err := json.Marshal(doc)
			if err != nil {
				respond(w, r, err)
				return
			}
			replaceBody(r, body)

			next.ServeHTTP(w, r)
		})
	}
}
