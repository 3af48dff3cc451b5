package engine

import (
	"time"

	"github.com/okian/vita/internal/domain/derive"
	"github.com/okian/vita/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCadence sets the timer-driven derivation interval.
func WithCadence(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cadence = d
		}
	}
}

// WithHistoryCapacity fixes the history ring size.
func WithHistoryCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyCap = n
		}
	}
}

// WithTrendWindow sets how many recent states feed the trend comparison.
func WithTrendWindow(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.trendWindow = k
		}
	}
}

// WithStaleAfter sets the window after which unrefreshed readings are
// reported as stale.
func WithStaleAfter(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

// WithDeriver replaces the default derivation math.
func WithDeriver(d *derive.Deriver) Option {
	return func(e *Engine) {
		if d != nil {
			e.deriver = d
		}
	}
}

// WithClock sets the derivation time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithStrictInvariants makes internal invariant violations panic
// instead of degrading. Meant for tests and debug builds.
func WithStrictInvariants(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
