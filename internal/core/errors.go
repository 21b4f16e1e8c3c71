package core

import "errors"

var (
	// ErrConcurrentModification surfaces after the bounded retry budget is
	// spent on version conflicts.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrStorageUnavailable is fatal for the turn: no partial commit, the
	// error propagates to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
