// Package subscribe fans derived state out to many independent
// consumers. Each subscription projects the state through a selector
// and is only notified when its own equality function says the
// projection actually changed.
package subscribe

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/pkg/metrics"
)

// Default subscription configuration constants.
const (
	defaultBufferSize = 16
)

// Selector projects a published state onto the value a consumer cares
// about. Selectors must be pure; the hub may call them on every publish.
type Selector func(s model.BiometricsState) any

// Equality decides whether a new projection differs from the last
// delivered one. Returning true suppresses the notification.
type Equality func(prev, next any) bool

// Subscription is one consumer's registration. Values arrive on
// Updates() in publish order; when the consumer falls behind, the
// oldest buffered value is evicted so order is preserved and the hub
// never blocks.
type Subscription struct {
	id       string
	selector Selector
	equality Equality
	ch       chan any

	mu        sync.Mutex
	last      any
	delivered bool
	closed    bool
}

// ID returns the subscription handle.
func (s *Subscription) ID() string {
	return s.id
}

// Updates returns the channel notifications arrive on. It is closed by
// Unsubscribe.
func (s *Subscription) Updates() <-chan any {
	return s.ch
}

// deliver pushes v without blocking, evicting the oldest buffered value
// when the consumer is slow. Returns false if the subscription is closed.
func (s *Subscription) deliver(v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- v:
			return true
		default:
		}
		select {
		case <-s.ch:
			metrics.RecordNotificationDropped()
		default:
		}
	}
}

// offer runs the selector/equality pair and records the new projection.
// It returns the projection and whether it should be delivered.
func (s *Subscription) offer(state model.BiometricsState) (any, bool) {
	next := s.selector(state)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}
	if s.delivered && s.equality(s.last, next) {
		return nil, false
	}
	s.last = next
	s.delivered = true
	return next, true
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub is the subscription registry the engine publishes into.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
}

// NewHub creates an empty hub with configuration options.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: defaultBufferSize,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe registers a selector. The default equality is deep value
// equality; numeric consumers usually pass WithEquality(Tolerance(...)).
// The first publish after subscribing always notifies.
func (h *Hub) Subscribe(selector Selector, opts ...SubOption) *Subscription {
	sub := &Subscription{
		id:       uuid.New().String(),
		selector: selector,
		equality: DeepEqual,
		ch:       nil,
	}

	buffer := h.bufferSize
	cfg := subConfig{buffer: &buffer}
	for _, opt := range opts {
		opt(&cfg, sub)
	}
	sub.ch = make(chan any, buffer)

	h.mu.Lock()
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	metrics.UpdateSubscriberCount(count)
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call while a publish is in flight and idempotent for unknown handles.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if ok {
		sub.close()
		metrics.UpdateSubscriberCount(count)
	}
}

// Publish fans state out to every active subscription. Delivery order
// across subscriptions is unspecified; successive states reach each
// individual subscription in FIFO order. Called from the engine's
// control loop only.
func (h *Hub) Publish(state model.BiometricsState) {
	// Iterate over a snapshot so Unsubscribe during delivery is safe.
	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	for _, sub := range snapshot {
		if next, changed := sub.offer(state); changed {
			if sub.deliver(next) {
				metrics.RecordNotificationDelivered()
			}
		}
	}
}

// Count returns the number of active subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// DeepEqual is the default equality: deep value comparison.
func DeepEqual(prev, next any) bool {
	return reflect.DeepEqual(prev, next)
}

// Tolerance returns an equality for float64 projections that suppresses
// notifications until the value moves by at least eps. Non-float
// projections fall back to deep equality.
func Tolerance(eps float64) Equality {
	return func(prev, next any) bool {
		p, pok := prev.(float64)
		n, nok := next.(float64)
		if !pok || !nok {
			return DeepEqual(prev, next)
		}
		diff := p - n
		if diff < 0 {
			diff = -diff
		}
		return diff < eps
	}
}
