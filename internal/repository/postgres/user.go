package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, name, email, role, password_hash, is_email_verified`

const createUser = `-- name: CreateUser
INSERT INTO users (id, name, email, role, password_hash, is_email_verified)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	created, err := queryUser(ctx, r.DB, createUser, user.ID, user.Name, user.Email, user.Role, user.HashedPassword, user.IsEmailVerified)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrUserAlreadyExists
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return collectUser(queryUser(ctx, r.DB, getUserByID, id))
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return collectUser(queryUser(ctx, r.DB, getUserByEmail, email))
}

const updatePassword = `-- name: UpdatePassword
UPDATE users SET password_hash = $2
WHERE id = $1
`

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, updatePassword, id, hashedPassword)
	return checkUserUpdated(tag, err)
}

const setEmailVerified = `-- name: SetEmailVerified
UPDATE users SET is_email_verified = true
WHERE id = $1
`

func (r *UserRepo) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, setEmailVerified, id)
	return checkUserUpdated(tag, err)
}

func checkUserUpdated(tag pgconn.CommandTag, err error) error {
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func queryUser(ctx context.Context, db DBTX, sql string, args ...any) (models.User, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return models.User{}, err
	}
	return pgx.CollectOneRow(rows, rowToUser)
}

func collectUser(user models.User, err error) (models.User, error) {
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Name, &u.Email, &u.Role, &u.HashedPassword, &u.IsEmailVerified)
	return u, err
}
