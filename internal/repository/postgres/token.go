package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/models"
)

type TokenRepo struct {
	DB DBTX
}

const tokenColumns = `id, token, user_id, type, created_at, expires_at, blacklisted`

const createToken = `-- name: CreateToken
INSERT INTO tokens (id, token, user_id, type, created_at, expires_at, blacklisted)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + tokenColumns

func (r *TokenRepo) Create(ctx context.Context, token models.Token) (models.Token, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	created, err := queryToken(ctx, r.DB, createToken,
		token.ID, token.Token, token.UserID, string(token.Type), token.CreatedAt, token.ExpiresAt, token.Blacklisted,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, fmt.Errorf("repo error: %w", apperrors.ErrTokenAlreadyExists)
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const findToken = `-- name: FindToken by string and type
SELECT ` + tokenColumns + `
FROM tokens
WHERE token = $1 AND type = $2
`

// Find token
// It should return result even it expired or blacklisted already
func (r *TokenRepo) FindByToken(ctx context.Context, tokenString string, tokenType models.TokenType) (models.Token, error) {
	return collectToken(queryToken(ctx, r.DB, findToken, tokenString, string(tokenType)))
}

const blacklistToken = `-- name: BlacklistToken
UPDATE tokens
SET blacklisted = true
WHERE token = $1
`

func (r *TokenRepo) Blacklist(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, blacklistToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const consumeToken = `-- name: ConsumeToken blacklist token if it is not blacklisted yet
UPDATE tokens
SET blacklisted = true
WHERE token = $1 AND type = $2 AND blacklisted = false
RETURNING ` + tokenColumns

// Single statement makes check and update atomic: concurrent callers are
// serialized by the row lock and only the first one sees blacklisted = false
func (r *TokenRepo) Consume(ctx context.Context, tokenString string, tokenType models.TokenType) (models.Token, error) {
	return collectToken(queryToken(ctx, r.DB, consumeToken, tokenString, string(tokenType)))
}

const deleteUserTokens = `-- name: DeleteUserTokens
DELETE FROM tokens
WHERE user_id = $1 AND type = $2
`

func (r *TokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID, tokenType models.TokenType) error {
	_, err := r.DB.Exec(ctx, deleteUserTokens, userID, string(tokenType))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteExpired = `-- name: DeleteExpired
DELETE FROM tokens
WHERE expires_at < $1
`

func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func queryToken(ctx context.Context, db DBTX, sql string, args ...any) (models.Token, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return models.Token{}, err
	}
	return pgx.CollectOneRow(rows, rowToToken)
}

func collectToken(token models.Token, err error) (models.Token, error) {
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

func rowToToken(row pgx.CollectableRow) (models.Token, error) {
	var t models.Token
	var typ string
	err := row.Scan(&t.ID, &t.Token, &t.UserID, &typ, &t.CreatedAt, &t.ExpiresAt, &t.Blacklisted)
	t.Type = models.TokenType(typ)
	return t, err
}
