package models

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypeResetPassword TokenType = "resetPassword"
	TokenTypeVerifyEmail   TokenType = "verifyEmail"
)

// Persisted reports whether tokens of the type are stored and may be revoked
// Access tokens are verified by signature only
func (t TokenType) Persisted() bool {
	switch t {
	case TokenTypeRefresh, TokenTypeResetPassword, TokenTypeVerifyEmail:
		return true
	default:
		return false
	}
}

func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t.Persisted()
}

// Token record of an issued refresh, reset password or verify email token
type Token struct {
	ID          uuid.UUID
	Token       string
	UserID      uuid.UUID
	Type        TokenType
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Blacklisted bool
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on login, registration and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
