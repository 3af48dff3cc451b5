package stream

import "errors"

// Sentinel kinds for stream errors.
var (
	ErrInvalidReading = errors.New("invalid reading")
)
