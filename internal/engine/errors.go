package engine

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrStopped       = errors.New("engine stopped")
	ErrSyncViolation = errors.New("derivation sync invariant violated")
)
