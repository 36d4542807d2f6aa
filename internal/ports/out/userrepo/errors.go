package userrepo

import "errors"

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists indicates a user already exists with the provided key.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrEmailInUse indicates another user is registered with the provided email.
	ErrEmailInUse = errors.New("email already in use")
)
