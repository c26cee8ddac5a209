package common

import "errors"

// Sentinel errors shared by the auth and blog modules. Handlers match on
// these with errors.Is and decide how each one is surfaced.
var (
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrNoSuchAccount      = errors.New("no account with this email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateTitle     = errors.New("a post with this title already exists")
	ErrValidation         = errors.New("invalid input")
)
