package subscribe

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithBufferSize sets the default per-subscription buffer size.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// subConfig carries per-subscription settings while options run.
type subConfig struct {
	buffer *int
}

// SubOption applies a configuration option to one Subscription.
type SubOption func(*subConfig, *Subscription)

// WithEquality sets the subscription's change-detection function.
func WithEquality(eq Equality) SubOption {
	return func(_ *subConfig, s *Subscription) {
		if eq != nil {
			s.equality = eq
		}
	}
}

// WithSubscriptionBuffer overrides the hub's default buffer size for
// this subscription.
func WithSubscriptionBuffer(size int) SubOption {
	return func(cfg *subConfig, _ *Subscription) {
		if size > 0 {
			*cfg.buffer = size
		}
	}
}
