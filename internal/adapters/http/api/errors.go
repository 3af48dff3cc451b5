package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrStopped    = errors.New("engine stopped")
)

// Trigger payload validation errors.
var (
	errNoID        = errors.New("missing trigger id")
	errNoRule      = errors.New("missing trigger rule")
	errBadLevel    = errors.New("unknown intervention level")
	errBadCooldown = errors.New("negative cooldown")
)

// NewKind tags an error kind with the operation that raised it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags a kind and preserves the underlying cause.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}
