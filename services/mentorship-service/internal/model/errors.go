package model

import "errors"

// Domain error kinds. Repositories and handlers wrap these with %w and the
// HTTP layer maps them to status codes in one place.
var (
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state transition")
)
