package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned by operations that need a customer token.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNoCart indicates there is no active cart in the session.
	ErrNoCart = errors.New("no active cart")

	ErrInvalidQuantity = errors.New("quantity must be positive")
)
