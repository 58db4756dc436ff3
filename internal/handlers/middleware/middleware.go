// Package middleware holds stages of the request pipeline.
package middleware

import "net/http"

// ErrorResponder renders error as API error response
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)
