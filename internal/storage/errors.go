package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record with a
	// key that already exists. Intents and results are insert-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when an order status change violates
	// the one-directional lifecycle.
	ErrInvalidTransition = errors.New("invalid order status transition")
)
