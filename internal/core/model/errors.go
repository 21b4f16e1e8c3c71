package model

import "errors"

// ErrInvalidTransition rejects a milestone or status change that violates the
// state machine. The case is left unchanged and the reason is surfaced to the
// caller.
var ErrInvalidTransition = errors.New("invalid transition")
