package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/handlers/render"
	"github.com/nkiryanov/authbase/internal/handlers/userctx"
	"github.com/nkiryanov/authbase/internal/models"
)

type authService interface {
	// Register user and issue token pair
	// Has to return ValidationError if email is taken
	Register(ctx context.Context, name string, email string, password string) (models.User, models.TokenPair, error)

	// Login user with email and password
	// Has to return Unauthorized if credentials are wrong
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Revoke refresh token
	Logout(ctx context.Context, refresh string) error

	// Rotate refresh token
	// Has to return TokenExpired, TokenInvalid or TokenRevoked if the token is not usable
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, password string) error
	SendVerificationEmail(ctx context.Context, u models.User) error
	VerifyEmail(ctx context.Context, token string) error

	// Return owner of the access token
	Authenticate(ctx context.Context, access string) (models.User, error)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type tokenQuery struct {
	Token string `json:"token" validate:"required"`
}

func queryToken(r *http.Request) (string, error) {
	q := tokenQuery{Token: r.URL.Query().Get("token")}
	return q.Token, render.Validate(q)
}

func handleRegister(as authService) handlerFunc {
	type request struct {
		Name     string `json:"name" validate:"required,max=100"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,password"`
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		data, err := render.BindAndValidate[request](r)
		if err != nil {
			return err
		}

		user, pair, err := as.Register(r.Context(), data.Name, data.Email, data.Password)
		if err != nil {
			return err
		}

		render.JSONWithStatus(w, newAuthView(user, pair), http.StatusCreated)
		return nil
	}
}

func handleLogin(as authService) handlerFunc {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		data, err := render.BindAndValidate[request](r)
		if err != nil {
			return err
		}

		user, pair, err := as.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			return err
		}

		render.JSON(w, newAuthView(user, pair))
		return nil
	}
}

func handleLogout(as authService) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		data, err := render.BindAndValidate[refreshRequest](r)
		if err != nil {
			return err
		}

		if err := as.Logout(r.Context(), data.RefreshToken); err != nil {
			return err
		}

		render.NoContent(w)
		return nil
	}
}

func handleRefreshTokens(as authService) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		data, err := render.BindAndValidate[refreshRequest](r)
		if err != nil {
			return err
		}

		pair, err := as.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			return err
		}

		render.JSON(w, newTokensView(pair))
		return nil
	}
}

func handleForgotPassword(as authService) handlerFunc {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		data, err := render.BindAndValidate[request](r)
		if err != nil {
			return err
		}

		if err := as.ForgotPassword(r.Context(), data.Email); err != nil {
			return err
		}

		render.NoContent(w)
		return nil
	}
}

func handleResetPassword(as authService) handlerFunc {
	type request struct {
		Password string `json:"password" validate:"required,password"`
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		token, err := queryToken(r)
		if err != nil {
			return err
		}

		data, err := render.BindAndValidate[request](r)
		if err != nil {
			return err
		}

		if err := as.ResetPassword(r.Context(), token, data.Password); err != nil {
			return err
		}

		render.NoContent(w)
		return nil
	}
}

func handleSendVerificationEmail(as authService) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			return apperrors.New(apperrors.Unauthorized, "Please authenticate")
		}

		if err := as.SendVerificationEmail(r.Context(), user); err != nil {
			return err
		}

		render.NoContent(w)
		return nil
	}
}

func handleVerifyEmail(as authService) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		token, err := queryToken(r)
		if err != nil {
			return err
		}

		if err := as.VerifyEmail(r.Context(), token); err != nil {
			return err
		}

		render.NoContent(w)
		return nil
	}
}
