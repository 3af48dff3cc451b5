package trigger

import "errors"

// ErrInvalidRule rejects rules Compile cannot turn into a condition.
var ErrInvalidRule = errors.New("invalid trigger rule")
