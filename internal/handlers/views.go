package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authbase/internal/models"
)

// Views are the only representation of models sent to clients

type userView struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
}

func newUserView(u models.User) userView {
	return userView{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
	}
}

type tokenView struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

func newTokenView(t models.IssuedToken) tokenView {
	return tokenView{Token: t.Value, Expires: t.ExpiresAt.UTC()}
}

type tokensView struct {
	Access  tokenView `json:"access"`
	Refresh tokenView `json:"refresh"`
}

func newTokensView(pair models.TokenPair) tokensView {
	return tokensView{
		Access:  newTokenView(pair.Access),
		Refresh: newTokenView(pair.Refresh),
	}
}

type authView struct {
	User   userView   `json:"user"`
	Tokens tokensView `json:"tokens"`
}

func newAuthView(u models.User, pair models.TokenPair) authView {
	return authView{User: newUserView(u), Tokens: newTokensView(pair)}
}
