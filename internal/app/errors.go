package app

import "errors"

// ErrNotFound and related errors describe runtime failures.
var (
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification reports a lost optimistic-concurrency race on
	// a work item. Safe to retry once against refreshed state.
	ErrConcurrentModification = errors.New("concurrent modification")
)
