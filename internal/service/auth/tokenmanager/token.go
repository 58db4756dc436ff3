package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/models"
	"github.com/nkiryanov/authbase/internal/repository"
)

const (
	defaultSigningMethod    = "HS256"
	defaultAccessTokenTTL   = 30 * time.Minute
	defaultRefreshTokenTTL  = 30 * 24 * time.Hour
	defaultResetPasswordTTL = 10 * time.Minute
	defaultVerifyEmailTTL   = 10 * time.Minute
)

// Claims of every token the manager signs
type Claims struct {
	jwt.RegisteredClaims
	Type models.TokenType `json:"type"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Token lifetimes
	// If not set than default is used
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ResetPasswordTTL time.Duration
	VerifyEmailTTL   time.Duration

	// Time source, time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	ttl map[models.TokenType]time.Duration
	now func() time.Time

	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)
	setDefaultDuration(&cfg.ResetPasswordTTL, defaultResetPasswordTTL)
	setDefaultDuration(&cfg.VerifyEmailTTL, defaultVerifyEmailTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		key: []byte(cfg.SecretKey),
		alg: alg,
		ttl: map[models.TokenType]time.Duration{
			models.TokenTypeAccess:        cfg.AccessTTL,
			models.TokenTypeRefresh:       cfg.RefreshTTL,
			models.TokenTypeResetPassword: cfg.ResetPasswordTTL,
			models.TokenTypeVerifyEmail:   cfg.VerifyEmailTTL,
		},
		now:     cfg.Now,
		storage: storage,
	}, nil
}

// Configured lifetime of the token type
func (m *TokenManager) TTL(tokenType models.TokenType) time.Duration {
	return m.ttl[tokenType]
}

// Issue signed token for the user
// Refresh, reset password and verify email tokens are persisted too
func (m *TokenManager) Issue(ctx context.Context, userID uuid.UUID, tokenType models.TokenType, ttl time.Duration) (models.IssuedToken, error) {
	return m.issue(ctx, m.storage.Token(), userID, tokenType, ttl)
}

func (m *TokenManager) issue(ctx context.Context, repo repository.TokenRepo, userID uuid.UUID, tokenType models.TokenType, ttl time.Duration) (models.IssuedToken, error) {
	var issued models.IssuedToken

	if !tokenType.Valid() {
		return issued, fmt.Errorf("unknown token type %q", tokenType)
	}
	// ExpiresAt has seconds precision, so shorter ttl would not be after creation
	if ttl < time.Second {
		return issued, fmt.Errorf("token ttl must be at least one second, got %s", ttl)
	}

	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: tokenType,
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return issued, fmt.Errorf("error while signing %s token. Err: %w", tokenType, err)
	}

	if tokenType.Persisted() {
		_, err = repo.Create(ctx, models.Token{
			ID:          uuid.New(),
			Token:       signed,
			UserID:      userID,
			Type:        tokenType,
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
			Blacklisted: false,
		})
		if err != nil {
			return issued, fmt.Errorf("error while saving %s token. Err: %w", tokenType, err)
		}
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Issue access and refresh tokens
func (m *TokenManager) IssuePair(ctx context.Context, userID uuid.UUID) (models.TokenPair, error) {
	return m.issuePair(ctx, m.storage.Token(), userID)
}

func (m *TokenManager) issuePair(ctx context.Context, repo repository.TokenRepo, userID uuid.UUID) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.issue(ctx, repo, userID, models.TokenTypeAccess, m.ttl[models.TokenTypeAccess])
	if err != nil {
		return pair, err
	}

	refresh, err := m.issue(ctx, repo, userID, models.TokenTypeRefresh, m.ttl[models.TokenTypeRefresh])
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) IssueResetPassword(ctx context.Context, userID uuid.UUID) (models.IssuedToken, error) {
	return m.Issue(ctx, userID, models.TokenTypeResetPassword, m.ttl[models.TokenTypeResetPassword])
}

func (m *TokenManager) IssueVerifyEmail(ctx context.Context, userID uuid.UUID) (models.IssuedToken, error) {
	return m.Issue(ctx, userID, models.TokenTypeVerifyEmail, m.ttl[models.TokenTypeVerifyEmail])
}

// Verify token signature, expiry and type; persisted tokens have to be stored and not blacklisted
// Returns owner of the token
func (m *TokenManager) Verify(ctx context.Context, token string, expected models.TokenType) (uuid.UUID, error) {
	userID, err := m.parse(token, expected)
	if err != nil {
		return uuid.Nil, err
	}

	if !expected.Persisted() {
		return userID, nil
	}

	record, err := m.storage.Token().FindByToken(ctx, token, expected)
	switch {
	case errors.Is(err, apperrors.ErrTokenNotFound):
		return uuid.Nil, apperrors.New(apperrors.TokenRevoked, "Token revoked")
	case err != nil:
		return uuid.Nil, fmt.Errorf("error while looking up %s token. Err: %w", expected, err)
	case record.Blacklisted:
		return uuid.Nil, apperrors.New(apperrors.TokenRevoked, "Token revoked")
	case record.UserID != userID:
		return uuid.Nil, apperrors.New(apperrors.TokenInvalid, "Invalid token")
	}

	return userID, nil
}

// Verify single use token and blacklist it atomically
// Only one of concurrent callers gets the owner, others get TokenRevoked
func (m *TokenManager) Use(ctx context.Context, token string, expected models.TokenType) (uuid.UUID, error) {
	return m.use(ctx, m.storage.Token(), token, expected)
}

func (m *TokenManager) use(ctx context.Context, repo repository.TokenRepo, token string, expected models.TokenType) (uuid.UUID, error) {
	if !expected.Persisted() {
		return uuid.Nil, fmt.Errorf("%s tokens are not persisted and can't be used once", expected)
	}

	userID, err := m.parse(token, expected)
	if err != nil {
		return uuid.Nil, err
	}

	record, err := repo.Consume(ctx, token, expected)
	switch {
	case errors.Is(err, apperrors.ErrTokenNotFound):
		return uuid.Nil, apperrors.New(apperrors.TokenRevoked, "Token revoked")
	case err != nil:
		return uuid.Nil, fmt.Errorf("error while consuming %s token. Err: %w", expected, err)
	case record.UserID != userID:
		return uuid.Nil, apperrors.New(apperrors.TokenInvalid, "Invalid token")
	}

	return userID, nil
}

// Revoke (blacklist) persisted token
// Revoking revoked or unknown token is not an error
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	if err := m.storage.Token().Blacklist(ctx, token); err != nil {
		return fmt.Errorf("error while revoking token. Err: %w", err)
	}
	return nil
}

// Rotate refresh token: blacklist it and issue new pair in one transaction
func (m *TokenManager) Rotate(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	err := m.storage.InTx(ctx, func(tx repository.Storage) error {
		userID, err := m.use(ctx, tx.Token(), refresh, models.TokenTypeRefresh)
		if err != nil {
			return err
		}

		pair, err = m.issuePair(ctx, tx.Token(), userID)
		return err
	})

	return pair, err
}

// Run fn in storage transaction
// Token manager passed to fn and the storage are bound to the transaction
func (m *TokenManager) InTx(ctx context.Context, fn func(tokens *TokenManager, tx repository.Storage) error) error {
	return m.storage.InTx(ctx, func(tx repository.Storage) error {
		scoped := *m
		scoped.storage = tx
		return fn(&scoped, tx)
	})
}

// Delete every token of the type issued for the user
func (m *TokenManager) DeleteUserTokens(ctx context.Context, userID uuid.UUID, tokenType models.TokenType) error {
	if err := m.storage.Token().DeleteByUser(ctx, userID, tokenType); err != nil {
		return fmt.Errorf("error while deleting %s tokens. Err: %w", tokenType, err)
	}
	return nil
}

// Parse and validate signature, expiry and type of the token
func (m *TokenManager) parse(token string, expected models.TokenType) (uuid.UUID, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, apperrors.New(apperrors.TokenExpired, "Token expired").WithCause(err)
	case err != nil:
		return uuid.Nil, apperrors.New(apperrors.TokenInvalid, "Invalid token").WithCause(err)
	case claims.Type != expected:
		return uuid.Nil, apperrors.New(apperrors.TokenInvalid, "Invalid token type")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.TokenInvalid, "Invalid token subject").WithCause(err)
	}

	return userID, nil
}
