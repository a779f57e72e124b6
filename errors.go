package seiche

import "errors"

var (
	// ErrInvalidHandle is returned when a closed or nil index or query
	// handle is used.
	ErrInvalidHandle = errors.New("seiche: invalid handle")

	// ErrCancelled is returned when the caller's context cancels a
	// running search. The search unwinds cleanly; no partial state
	// leaks.
	ErrCancelled = errors.New("seiche: cancelled")

	// ErrCorrupt is returned when an index file fails validation.
	ErrCorrupt = errors.New("seiche: corrupt index")
)
