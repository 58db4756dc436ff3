package handlers

import (
	"net/http"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/handlers/render"
	"github.com/nkiryanov/authbase/internal/handlers/userctx"
)

func handleUserMe() handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			return apperrors.New(apperrors.Unauthorized, "Please authenticate")
		}

		render.JSON(w, newUserView(user))
		return nil
	}
}

func handleHealth() handlerFunc {
	type response struct {
		Status string `json:"status"`
	}

	return func(w http.ResponseWriter, _ *http.Request) error {
		render.JSON(w, response{Status: "ok"})
		return nil
	}
}
