package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authbase/internal/models"
)

type Storage interface {
	User() UserRepo
	Token() TokenRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, user models.User) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Must return apperrors.ErrUserNotFound if user not exists
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
}

// Token record repository interface
// Token string is the unique key of the record
type TokenRepo interface {
	// Create token record
	// If the token string is taken already has to return apperrors.ErrTokenAlreadyExists
	Create(ctx context.Context, token models.Token) (models.Token, error)

	// Find token of the type, blacklisted or not
	// If not found must return apperrors.ErrTokenNotFound
	FindByToken(ctx context.Context, tokenString string, tokenType models.TokenType) (models.Token, error)

	// Blacklist token
	// Idempotent: blacklisting already blacklisted or unknown token is not an error
	Blacklist(ctx context.Context, tokenString string) error

	// Atomically blacklist not blacklisted token of the type and return it
	// Only one of concurrent callers may succeed, others get apperrors.ErrTokenNotFound
	Consume(ctx context.Context, tokenString string, tokenType models.TokenType) (models.Token, error)

	// Delete all user tokens of the type
	DeleteByUser(ctx context.Context, userID uuid.UUID, tokenType models.TokenType) error

	// Delete tokens expired before the moment, return number of deleted tokens
	// Safe to run concurrently with other methods
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
