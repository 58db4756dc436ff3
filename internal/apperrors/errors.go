package apperrors

import (
	"errors"
)

// Repository level errors
// Services translate them into API errors (see Error) when they are user facing
var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenAlreadyExists = errors.New("token already exists")
)
