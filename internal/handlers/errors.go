package handlers

import (
	"net/http"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/handlers/render"
	"github.com/nkiryanov/authbase/internal/logger"
)

// Handler that reports failures by returning error
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorResponder converts any error into API error and renders it
type ErrorResponder struct {
	logger      logger.Logger
	exposeStack bool
}

func NewErrorResponder(l logger.Logger, exposeStack bool) *ErrorResponder {
	return &ErrorResponder{logger: l, exposeStack: exposeStack}
}

func (e *ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apperrors.Convert(err)

	if !apiErr.Operational {
		e.logger.Error(
			"Request failed",
			"method", r.Method,
			"uri", r.RequestURI,
			"error", err,
			"stack", apiErr.Stack(),
		)
	}

	render.Error(w, apiErr, e.exposeStack)
}

// Handle adapts handlerFunc to http.Handler
func (e *ErrorResponder) Handle(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			e.Respond(w, r, err)
		}
	})
}
