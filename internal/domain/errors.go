package domain

import "errors"

// Sentinel errors shared across services and mapped onto HTTP statuses by
// the handlers. Callers match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)
