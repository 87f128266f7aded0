package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")

	// ErrUnavailable marks a store query or write that failed to execute.
	// Callers must never treat it as "zero rows matched".
	ErrUnavailable = errors.New("store unavailable")
)
