package models

import (
	"time"

	"github.com/google/uuid"
)

// Role of every registered user
const RoleUser = "user"

type User struct {
	ID              uuid.UUID
	CreatedAt       time.Time
	Name            string
	Email           string
	Role            string
	HashedPassword  string
	IsEmailVerified bool
}
