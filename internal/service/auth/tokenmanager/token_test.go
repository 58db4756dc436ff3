package tokenmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/logger"
	"github.com/nkiryanov/authbase/internal/models"
	"github.com/nkiryanov/authbase/internal/repository/memory"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	userID := uuid.MustParse("0e9a4c6e-3f0b-4b8e-8d3e-6b1f2a7c9d01")

	newManager := func(t *testing.T) (*TokenManager, *memory.Storage, *fakeClock) {
		t.Helper()

		clock := &fakeClock{now: mustParseTime("2024-01-01 19:00:01Z")}
		storage := memory.NewStorage()
		m, err := New(Config{SecretKey: "test-secret-key", Now: clock.Now}, storage)
		require.NoError(t, err, "token manager should be created without errors")

		return m, storage, clock
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{SecretKey: "secret"}, nil)
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, []byte("secret"), m.key, "secret key should be set")
		require.Equal(t, defaultAccessTokenTTL, m.TTL(models.TokenTypeAccess))
		require.Equal(t, defaultRefreshTokenTTL, m.TTL(models.TokenTypeRefresh))
		require.Equal(t, defaultResetPasswordTTL, m.TTL(models.TokenTypeResetPassword))
		require.Equal(t, defaultVerifyEmailTTL, m.TTL(models.TokenTypeVerifyEmail))
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new fails", func(t *testing.T) {
		_, err := New(Config{}, nil)
		require.Error(t, err, "secret key is required")

		_, err = New(Config{SecretKey: "secret", Alg: "RS256"}, nil)
		require.Error(t, err, "only HMAC methods are supported")
	})

	t.Run("Issue", func(t *testing.T) {
		t.Run("verify round trip", func(t *testing.T) {
			for _, typ := range []models.TokenType{
				models.TokenTypeAccess,
				models.TokenTypeRefresh,
				models.TokenTypeResetPassword,
				models.TokenTypeVerifyEmail,
			} {
				t.Run(string(typ), func(t *testing.T) {
					m, _, _ := newManager(t)

					issued, err := m.Issue(t.Context(), userID, typ, time.Hour)
					require.NoError(t, err)

					got, err := m.Verify(t.Context(), issued.Value, typ)
					require.NoError(t, err)
					require.Equal(t, userID, got)
				})
			}
		})

		t.Run("refresh token persisted", func(t *testing.T) {
			m, storage, clock := newManager(t)

			issued, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, 7*24*time.Hour)
			require.NoError(t, err)

			record, err := storage.Token().FindByToken(t.Context(), issued.Value, models.TokenTypeRefresh)
			require.NoError(t, err, "refresh token has to be saved")
			assert.Equal(t, userID, record.UserID)
			assert.False(t, record.Blacklisted)
			assert.WithinDuration(t, clock.Now().Add(7*24*time.Hour), record.ExpiresAt, time.Second)
			assert.True(t, record.ExpiresAt.After(record.CreatedAt), "expiry has to be after creation")
			assert.Equal(t, issued.ExpiresAt, record.ExpiresAt)
		})

		t.Run("access token not persisted", func(t *testing.T) {
			m, storage, _ := newManager(t)

			issued, err := m.Issue(t.Context(), userID, models.TokenTypeAccess, time.Hour)
			require.NoError(t, err)

			_, err = storage.Token().FindByToken(t.Context(), issued.Value, models.TokenTypeAccess)
			require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		})

		t.Run("claims", func(t *testing.T) {
			m, _, clock := newManager(t)

			issued, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, time.Hour)
			require.NoError(t, err)

			claims := &Claims{}
			_, err = jwt.ParseWithClaims(issued.Value, claims, func(token *jwt.Token) (any, error) {
				return []byte("test-secret-key"), nil
			}, jwt.WithTimeFunc(clock.Now))
			require.NoError(t, err)

			assert.Equal(t, userID.String(), claims.Subject)
			assert.Equal(t, models.TokenTypeRefresh, claims.Type)
			assert.NotEmpty(t, claims.ID, "token has to has jti")
			assert.Equal(t, clock.Now(), claims.IssuedAt.Time.UTC())
			assert.Equal(t, clock.Now().Add(time.Hour), claims.ExpiresAt.Time.UTC())
		})

		t.Run("same second tokens differ", func(t *testing.T) {
			m, _, _ := newManager(t)

			first, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, time.Hour)
			require.NoError(t, err)
			second, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, time.Hour)
			require.NoError(t, err, "token strings must be unique, otherwise record creation fails")

			require.NotEqual(t, first.Value, second.Value)
		})

		t.Run("invalid ttl", func(t *testing.T) {
			m, _, _ := newManager(t)

			_, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, 0)
			require.Error(t, err)

			_, err = m.Issue(t.Context(), userID, models.TokenTypeRefresh, -time.Hour)
			require.Error(t, err)
		})

		t.Run("unknown type", func(t *testing.T) {
			m, _, _ := newManager(t)

			_, err := m.Issue(t.Context(), userID, models.TokenType("session"), time.Hour)

			require.Error(t, err)
		})
	})

	t.Run("Verify", func(t *testing.T) {
		t.Run("expired", func(t *testing.T) {
			for _, typ := range []models.TokenType{models.TokenTypeAccess, models.TokenTypeRefresh} {
				t.Run(string(typ), func(t *testing.T) {
					m, _, clock := newManager(t)
					issued, err := m.Issue(t.Context(), userID, typ, time.Minute)
					require.NoError(t, err)

					clock.Advance(time.Minute + time.Second)
					_, err = m.Verify(t.Context(), issued.Value, typ)

					require.ErrorIs(t, err, apperrors.TokenExpired)
				})
			}
		})

		t.Run("expired and revoked is still expired", func(t *testing.T) {
			m, _, clock := newManager(t)
			issued, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, time.Minute)
			require.NoError(t, err)
			require.NoError(t, m.Revoke(t.Context(), issued.Value))

			clock.Advance(time.Hour)
			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeRefresh)

			require.ErrorIs(t, err, apperrors.TokenExpired)
		})

		t.Run("other type", func(t *testing.T) {
			m, _, _ := newManager(t)
			issued, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, time.Hour)
			require.NoError(t, err)

			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)

			require.ErrorIs(t, err, apperrors.TokenInvalid, "refresh token must not be accepted as access")
		})

		t.Run("not a token", func(t *testing.T) {
			m, _, _ := newManager(t)

			_, err := m.Verify(t.Context(), "invalid token", models.TokenTypeAccess)

			require.ErrorIs(t, err, apperrors.TokenInvalid)
		})

		t.Run("signed with other key", func(t *testing.T) {
			m, _, clock := newManager(t)
			other, err := New(Config{SecretKey: "other-key", Now: clock.Now}, memory.NewStorage())
			require.NoError(t, err)
			issued, err := other.Issue(t.Context(), userID, models.TokenTypeAccess, time.Hour)
			require.NoError(t, err)

			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)

			require.ErrorIs(t, err, apperrors.TokenInvalid)
		})

		t.Run("not signed token", func(t *testing.T) {
			m, _, clock := newManager(t)
			token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					ID:        uuid.NewString(),
					Subject:   userID.String(),
					IssuedAt:  jwt.NewNumericDate(clock.Now()),
					ExpiresAt: jwt.NewNumericDate(clock.Now().Add(15 * time.Minute)),
				},
				Type: models.TokenTypeAccess,
			})
			access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)

			_, err = m.Verify(t.Context(), access, models.TokenTypeAccess)

			require.ErrorIs(t, err, apperrors.TokenInvalid, "Valid token with empty alg must fail")
		})

		t.Run("record missing", func(t *testing.T) {
			m, _, _ := newManager(t)
			issued, err := m.Issue(t.Context(), userID, models.TokenTypeResetPassword, time.Hour)
			require.NoError(t, err)
			require.NoError(t, m.DeleteUserTokens(t.Context(), userID, models.TokenTypeResetPassword))

			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeResetPassword)

			require.ErrorIs(t, err, apperrors.TokenRevoked)
		})

		t.Run("errors are operational 401", func(t *testing.T) {
			m, _, _ := newManager(t)

			_, err := m.Verify(t.Context(), "invalid token", models.TokenTypeAccess)

			apiErr := apperrors.Convert(err)
			require.True(t, apiErr.Operational)
			require.Equal(t, 401, apiErr.StatusCode)
		})
	})

	t.Run("Revoke", func(t *testing.T) {
		t.Run("revoked token not valid", func(t *testing.T) {
			m, _, _ := newManager(t)
			issued, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, time.Hour)
			require.NoError(t, err)

			err = m.Revoke(t.Context(), issued.Value)
			require.NoError(t, err)

			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeRefresh)
			require.ErrorIs(t, err, apperrors.TokenRevoked)
		})

		t.Run("idempotent", func(t *testing.T) {
			m, _, _ := newManager(t)
			issued, err := m.Issue(t.Context(), userID, models.TokenTypeRefresh, time.Hour)
			require.NoError(t, err)

			require.NoError(t, m.Revoke(t.Context(), issued.Value))
			require.NoError(t, m.Revoke(t.Context(), issued.Value), "revoking twice is not an error")
			require.NoError(t, m.Revoke(t.Context(), "unknown-token"), "revoking unknown token is not an error")
		})
	})

	t.Run("Use", func(t *testing.T) {
		m, _, _ := newManager(t)
		issued, err := m.IssueVerifyEmail(t.Context(), userID)
		require.NoError(t, err)

		got, err := m.Use(t.Context(), issued.Value, models.TokenTypeVerifyEmail)
		require.NoError(t, err)
		require.Equal(t, userID, got)

		_, err = m.Use(t.Context(), issued.Value, models.TokenTypeVerifyEmail)
		require.ErrorIs(t, err, apperrors.TokenRevoked, "single use token can't be used twice")
	})

	t.Run("Rotate", func(t *testing.T) {
		t.Run("issue new pair", func(t *testing.T) {
			m, storage, _ := newManager(t)
			pair, err := m.IssuePair(t.Context(), userID)
			require.NoError(t, err)

			rotated, err := m.Rotate(t.Context(), pair.Refresh.Value)
			require.NoError(t, err)

			assert.NotEqual(t, pair.Refresh.Value, rotated.Refresh.Value)
			assert.NotEqual(t, pair.Access.Value, rotated.Access.Value)

			got, err := m.Verify(t.Context(), rotated.Access.Value, models.TokenTypeAccess)
			require.NoError(t, err)
			assert.Equal(t, userID, got)

			old, err := storage.Token().FindByToken(t.Context(), pair.Refresh.Value, models.TokenTypeRefresh)
			require.NoError(t, err)
			assert.True(t, old.Blacklisted, "old refresh token has to be blacklisted")
		})

		t.Run("rotate twice", func(t *testing.T) {
			m, _, _ := newManager(t)
			pair, err := m.IssuePair(t.Context(), userID)
			require.NoError(t, err)

			_, err = m.Rotate(t.Context(), pair.Refresh.Value)
			require.NoError(t, err)

			_, err = m.Rotate(t.Context(), pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.TokenRevoked)
		})

		t.Run("access token can't be rotated", func(t *testing.T) {
			m, _, _ := newManager(t)
			pair, err := m.IssuePair(t.Context(), userID)
			require.NoError(t, err)

			_, err = m.Rotate(t.Context(), pair.Access.Value)
			require.ErrorIs(t, err, apperrors.TokenInvalid)
		})

		t.Run("expired", func(t *testing.T) {
			m, _, clock := newManager(t)
			pair, err := m.IssuePair(t.Context(), userID)
			require.NoError(t, err)

			clock.Advance(defaultRefreshTokenTTL + time.Second)
			_, err = m.Rotate(t.Context(), pair.Refresh.Value)

			require.ErrorIs(t, err, apperrors.TokenExpired)
		})

		t.Run("concurrent rotations", func(t *testing.T) {
			m, _, _ := newManager(t)
			pair, err := m.IssuePair(t.Context(), userID)
			require.NoError(t, err)

			const attempts = 20
			errs := make([]error, attempts)
			var wg sync.WaitGroup
			for i := range attempts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = m.Rotate(t.Context(), pair.Refresh.Value)
				}()
			}
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				require.ErrorIs(t, err, apperrors.TokenRevoked, "losers have to get TokenRevoked")
			}
			require.Equal(t, 1, succeeded, "exactly one rotation has to succeed")
		})
	})
}

func Test_Sweeper(t *testing.T) {
	storage := memory.NewStorage()
	m, err := New(Config{SecretKey: "secret", Now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}, storage)
	require.NoError(t, err)

	expired, err := m.Issue(t.Context(), uuid.New(), models.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)
	alive, err := m.Issue(t.Context(), uuid.New(), models.TokenTypeRefresh, 24*time.Hour)
	require.NoError(t, err)

	t.Run("sweep once", func(t *testing.T) {
		s := NewSweeper(time.Minute, storage.Token(), logger.NewNoOpLogger())

		deleted, err := s.Sweep(t.Context())

		require.NoError(t, err)
		require.EqualValues(t, 1, deleted)
		_, err = storage.Token().FindByToken(t.Context(), expired.Value, models.TokenTypeRefresh)
		require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		_, err = storage.Token().FindByToken(t.Context(), alive.Value, models.TokenTypeRefresh)
		require.NoError(t, err)
	})

	t.Run("stops with context", func(t *testing.T) {
		s := NewSweeper(10*time.Millisecond, storage.Token(), logger.NewNoOpLogger())
		ctx, cancel := context.WithCancel(t.Context())

		stopped := s.Run(ctx)
		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("sweeper has to stop on context cancellation")
		}
	})
}
