package storage

import "errors"

// Sentinel errors shared by every store backend. Backends wrap driver
// errors so callers can match these with errors.Is.
var (
	// ErrNotFound means no run, curve or summary exists for the key.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicateKey means a record with the same key was already written.
	// Runs, trades and summaries are immutable once stored.
	ErrDuplicateKey = errors.New("storage: record already exists")

	// ErrInvalidInput means a record is missing its key fields.
	ErrInvalidInput = errors.New("storage: invalid record")
)
