// Package memory keeps users and token records in process memory.
// It's used in development without database and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authbase/internal/apperrors"
	"github.com/nkiryanov/authbase/internal/models"
	"github.com/nkiryanov/authbase/internal/repository"
)

type userTable struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]models.User
}

type tokenTable struct {
	mu      sync.Mutex
	byToken map[string]models.Token
}

// journal keeps undo steps of a transaction, newest last
type journal struct {
	steps []func()
}

func (j *journal) add(step func()) {
	if j != nil {
		j.steps = append(j.steps, step)
	}
}

func (j *journal) rollback() {
	for i := len(j.steps) - 1; i >= 0; i-- {
		j.steps[i]()
	}
	j.steps = nil
}

type Storage struct {
	// Transactions are serialized, operations outside of them are not
	txMu *sync.Mutex

	users  *UserRepo
	tokens *TokenRepo

	// set inside transaction only
	journal *journal
}

func NewStorage() *Storage {
	return &Storage{
		txMu:   &sync.Mutex{},
		users:  &UserRepo{table: &userTable{byID: make(map[uuid.UUID]models.User)}},
		tokens: &TokenRepo{table: &tokenTable{byToken: make(map[string]models.Token)}},
	}
}

func (s *Storage) User() repository.UserRepo   { return s.users }
func (s *Storage) Token() repository.TokenRepo { return s.tokens }

// InTx runs fn against storage that records undo steps
// Changes made by fn are reverted if it returns error
func (s *Storage) InTx(_ context.Context, fn func(repository.Storage) error) error {
	if s.journal == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	j := &journal{}
	tx := &Storage{
		txMu:    s.txMu,
		users:   &UserRepo{table: s.users.table, journal: j},
		tokens:  &TokenRepo{table: s.tokens.table, journal: j},
		journal: j,
	}

	if err := fn(tx); err != nil {
		j.rollback()
		return err
	}

	// Nested transaction: its changes belong to the outer one now
	if s.journal != nil {
		s.journal.steps = append(s.journal.steps, j.steps...)
	}
	return nil
}

type UserRepo struct {
	table   *userTable
	journal *journal
}

// Remember how to restore the user as it is now
// Must be called with the table lock held
func (r *UserRepo) remember(userID uuid.UUID) {
	prev, existed := r.table.byID[userID]
	r.journal.add(func() {
		r.table.mu.Lock()
		defer r.table.mu.Unlock()
		if existed {
			r.table.byID[userID] = prev
		} else {
			delete(r.table.byID, userID)
		}
	})
}

func (r *UserRepo) CreateUser(_ context.Context, user models.User) (models.User, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	for _, u := range r.table.byID {
		if u.Email == user.Email {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.remember(user.ID)
	r.table.byID[user.ID] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	u, ok := r.table.byID[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	for _, u := range r.table.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *UserRepo) UpdatePassword(_ context.Context, userID uuid.UUID, hashedPassword string) error {
	return r.update(userID, func(u *models.User) { u.HashedPassword = hashedPassword })
}

func (r *UserRepo) SetEmailVerified(_ context.Context, userID uuid.UUID) error {
	return r.update(userID, func(u *models.User) { u.IsEmailVerified = true })
}

func (r *UserRepo) update(userID uuid.UUID, fn func(*models.User)) error {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	u, ok := r.table.byID[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	r.remember(userID)
	fn(&u)
	r.table.byID[userID] = u
	return nil
}

type TokenRepo struct {
	table   *tokenTable
	journal *journal
}

// Remember how to restore the token record as it is now
// Must be called with the table lock held
func (r *TokenRepo) remember(tokenString string) {
	prev, existed := r.table.byToken[tokenString]
	r.journal.add(func() {
		r.table.mu.Lock()
		defer r.table.mu.Unlock()
		if existed {
			r.table.byToken[tokenString] = prev
		} else {
			delete(r.table.byToken, tokenString)
		}
	})
}

func (r *TokenRepo) Create(_ context.Context, token models.Token) (models.Token, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	if _, ok := r.table.byToken[token.Token]; ok {
		return models.Token{}, apperrors.ErrTokenAlreadyExists
	}

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	r.remember(token.Token)
	r.table.byToken[token.Token] = token

	return token, nil
}

func (r *TokenRepo) FindByToken(_ context.Context, tokenString string, tokenType models.TokenType) (models.Token, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	t, ok := r.table.byToken[tokenString]
	if !ok || t.Type != tokenType {
		return models.Token{}, apperrors.ErrTokenNotFound
	}
	return t, nil
}

func (r *TokenRepo) Blacklist(_ context.Context, tokenString string) error {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	if t, ok := r.table.byToken[tokenString]; ok {
		r.remember(tokenString)
		t.Blacklisted = true
		r.table.byToken[tokenString] = t
	}
	return nil
}

func (r *TokenRepo) Consume(_ context.Context, tokenString string, tokenType models.TokenType) (models.Token, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	t, ok := r.table.byToken[tokenString]
	if !ok || t.Type != tokenType || t.Blacklisted {
		return models.Token{}, apperrors.ErrTokenNotFound
	}

	r.remember(tokenString)
	t.Blacklisted = true
	r.table.byToken[tokenString] = t
	return t, nil
}

func (r *TokenRepo) DeleteByUser(_ context.Context, userID uuid.UUID, tokenType models.TokenType) error {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	for key, t := range r.table.byToken {
		if t.UserID == userID && t.Type == tokenType {
			r.remember(key)
			delete(r.table.byToken, key)
		}
	}
	return nil
}

func (r *TokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	var deleted int64
	for key, t := range r.table.byToken {
		if t.ExpiresAt.Before(before) {
			r.remember(key)
			delete(r.table.byToken, key)
			deleted++
		}
	}
	return deleted, nil
}
