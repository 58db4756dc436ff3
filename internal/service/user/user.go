package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/models"
	"github.com/nkiryanov/authbase/internal/repository"
)

type UserService struct {
	hasher   PasswordHasher
	userRepo repository.UserRepo
}

func NewService(hasher PasswordHasher, userRepo repository.UserRepo) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
	}
}

// Same service working with another repository, e.g. bound to transaction
func (s *UserService) WithRepo(userRepo repository.UserRepo) *UserService {
	return &UserService{hasher: s.hasher, userRepo: userRepo}
}

// Emails are compared case insensitive, so stored lower cased
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) CreateUser(ctx context.Context, name string, email string, password string) (models.User, error) {
	var user models.User
	if password == "" {
		return user, apperrors.Validation("Password must not be empty", map[string]string{"password": "required"})
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, models.User{
		ID:             uuid.New(),
		CreatedAt:      time.Now(),
		Name:           name,
		Email:          normalizeEmail(email),
		Role:           models.RoleUser,
		HashedPassword: hash,
	})
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		return user, apperrors.Validation("Email already taken", map[string]string{"email": "already taken"}).WithCause(err)
	case err != nil:
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Login returns user when email and password match
// Unknown email and wrong password are the same Unauthorized error
func (s *UserService) Login(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, apperrors.New(apperrors.Unauthorized, "Incorrect email or password")
	case err != nil:
		return user, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.New(apperrors.Unauthorized, "Incorrect email or password")
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, apperrors.New(apperrors.NotFound, "User not found").WithCause(err)
	case err != nil:
		return user, fmt.Errorf("can't get user. Err: %w", err)
	}
	return user, nil
}

// Returns apperrors.ErrUserNotFound as is when there is no such user
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
}

func (s *UserService) SetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("can't update password. Err: %w", err)
	}
	return nil
}

func (s *UserService) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.SetEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("can't mark email verified. Err: %w", err)
	}
	return nil
}
