package stream

import (
	"time"

	"github.com/okian/vita/pkg/logger"
)

// Option applies a configuration option to the Stream.
type Option func(*Stream)

// WithLogger sets a custom logger for the stream.
func WithLogger(l logger.Logger) Option {
	return func(s *Stream) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used to stamp readings that arrive
// without a timestamp. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Stream) {
		if clock != nil {
			s.clock = clock
		}
	}
}
