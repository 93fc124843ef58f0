package repository

import "errors"

var (
	// ErrStorageUnavailable indicates the backing store cannot be reached.
	// Fatal for both writes and reads; queries never fall back to a stale
	// cache entry across a live outage.
	ErrStorageUnavailable = errors.New("storage backend unavailable")

	// ErrValidation indicates a malformed top-level batch: empty realm or
	// character, or no recognizable event kind.
	ErrValidation = errors.New("invalid upload batch")
)
