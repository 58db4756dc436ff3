package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/logger"
	"github.com/nkiryanov/authbase/internal/models"
	"github.com/nkiryanov/authbase/internal/repository"
	"github.com/nkiryanov/authbase/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authbase/internal/service/email"
	"github.com/nkiryanov/authbase/internal/service/user"
)

// Auth service
type AuthService struct {
	// Manager to issue, verify and revoke tokens
	tokens *tokenmanager.TokenManager

	// Users and their passwords
	users *user.UserService

	// Reset password and verification emails
	mailer *email.Service

	logger logger.Logger
}

func NewService(tokens *tokenmanager.TokenManager, users *user.UserService, mailer *email.Service, l logger.Logger) (*AuthService, error) {
	if tokens == nil || users == nil || mailer == nil {
		return nil, errors.New("token manager, user service and mailer must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthService{
		tokens: tokens,
		users:  users,
		mailer: mailer,
		logger: l,
	}, nil
}

// Register new user and get login TokenPair
// User is not kept if tokens can't be issued
func (s *AuthService) Register(ctx context.Context, name string, email string, password string) (models.User, models.TokenPair, error) {
	var u models.User
	var pair models.TokenPair

	err := s.inTx(ctx, func(tokens *tokenmanager.TokenManager, users *user.UserService) error {
		var err error
		u, err = users.CreateUser(ctx, name, email, password)
		if err != nil {
			return err
		}

		pair, err = tokens.IssuePair(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("token could not generated. Err: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return u, pair, nil
}

// Login with existed user and get fresh TokenPair
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	u, err := s.users.Login(ctx, email, password)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(ctx, u.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("token could not generated. Err: %w", err)
	}

	return u, pair, nil
}

// Logout revokes refresh token
// Logging out with already revoked token is fine
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	_, err := s.tokens.Verify(ctx, refresh, models.TokenTypeRefresh)
	switch {
	case errors.Is(err, apperrors.TokenRevoked):
		return nil
	case err != nil:
		return err
	}

	return s.tokens.Revoke(ctx, refresh)
}

// Refresh user tokens with valid refresh token
// The refresh token can be used once only
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	return s.tokens.Rotate(ctx, refresh)
}

// ForgotPassword emails reset password token
// Unknown email is not an error, so it's not possible to find out whether the email is registered
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.logger.Debug("Reset password requested for unknown email")
		return nil
	case err != nil:
		return fmt.Errorf("can't get user. Err: %w", err)
	}

	token, err := s.tokens.IssueResetPassword(ctx, u.ID)
	if err != nil {
		return err
	}

	return s.mailer.SendResetPassword(ctx, u.Email, token.Value)
}

// ResetPassword sets new password with reset password token
// Every reset password token of the user becomes unusable
// The token stays usable if the password can't be changed
func (s *AuthService) ResetPassword(ctx context.Context, token string, password string) error {
	return s.inTx(ctx, func(tokens *tokenmanager.TokenManager, users *user.UserService) error {
		userID, err := tokens.Use(ctx, token, models.TokenTypeResetPassword)
		if err != nil {
			return err
		}

		err = users.SetPassword(ctx, userID, password)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			return apperrors.New(apperrors.Unauthorized, "Password reset failed").WithCause(err)
		case err != nil:
			return err
		}

		return tokens.DeleteUserTokens(ctx, userID, models.TokenTypeResetPassword)
	})
}

// SendVerificationEmail emails verify email token to the user
func (s *AuthService) SendVerificationEmail(ctx context.Context, u models.User) error {
	token, err := s.tokens.IssueVerifyEmail(ctx, u.ID)
	if err != nil {
		return err
	}

	return s.mailer.SendVerificationEmail(ctx, u.Email, token.Value)
}

// VerifyEmail marks user email verified with verify email token
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	return s.inTx(ctx, func(tokens *tokenmanager.TokenManager, users *user.UserService) error {
		userID, err := tokens.Use(ctx, token, models.TokenTypeVerifyEmail)
		if err != nil {
			return err
		}

		if err := tokens.DeleteUserTokens(ctx, userID, models.TokenTypeVerifyEmail); err != nil {
			return err
		}

		err = users.MarkEmailVerified(ctx, userID)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return apperrors.New(apperrors.Unauthorized, "Email verification failed").WithCause(err)
		}
		return err
	})
}

// Authenticate returns owner of the access token
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	userID, err := s.tokens.Verify(ctx, access, models.TokenTypeAccess)
	if err != nil {
		return models.User{}, err
	}

	return s.user(ctx, userID)
}

func (s *AuthService) user(ctx context.Context, userID uuid.UUID) (models.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperrors.NotFound) {
		return u, apperrors.New(apperrors.Unauthorized, "Please authenticate").WithCause(err)
	}
	return u, err
}

// Run fn with token manager and user service bound to one storage transaction
func (s *AuthService) inTx(ctx context.Context, fn func(tokens *tokenmanager.TokenManager, users *user.UserService) error) error {
	return s.tokens.InTx(ctx, func(tokens *tokenmanager.TokenManager, tx repository.Storage) error {
		return fn(tokens, s.users.WithRepo(tx.User()))
	})
}
