package service

import (
	"time"

	"github.com/okian/vita/internal/domain/derive"
	"github.com/okian/vita/internal/engine"
	"github.com/okian/vita/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the reading queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSubscriberBuffer sets the per-subscription channel buffer.
func WithSubscriberBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.subscriberBuffer = size
		}
	}
}

// WithCadence sets the derivation interval.
func WithCadence(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cadence = d
		}
	}
}

// WithHistoryCapacity sets how many derived states are retained.
func WithHistoryCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyCapacity = n
		}
	}
}

// WithTrendWindow sets how many past states inform the trend.
func WithTrendWindow(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.trendWindow = k
		}
	}
}

// WithStaleAfter sets the silence window before state counts stale.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithDeriverOptions forwards options to the deriver, e.g. smoothing
// factor or component weights.
func WithDeriverOptions(opts ...derive.Option) Option {
	return func(s *Service) {
		s.deriverOpts = append(s.deriverOpts, opts...)
	}
}

// WithEngineOptions forwards extra options to the engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithAutoStart controls whether Start also launches the derivation
// loop.
func WithAutoStart(auto bool) Option {
	return func(s *Service) {
		s.autoStart = auto
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
