// Package queue provides the bounded hand-off between reading producers
// and the wellness engine's control loop.
//
// The queue never blocks a producer: when it is full, the oldest
// unconsumed reading is evicted to make room and the eviction is
// counted as backpressure.
package queue

import (
	"context"
	"sync"

	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 1024
)

// Reading is the payload type flowing through the queue.
type Reading = model.BiometricReading

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a reading, evicting the oldest queued reading when
	// the queue is full. Returns the number of readings evicted and
	// whether the reading was accepted (false only after Close or when
	// ctx is cancelled).
	Enqueue(ctx context.Context, r Reading) (dropped int, ok bool)

	// Dequeue returns the channel the engine drains. The channel is
	// closed when the queue is closed.
	Dequeue() <-chan Reading

	// Len returns the current number of queued readings.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	readings chan Reading
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.readings = make(chan Reading, q.capacity)

	// Initialize metrics
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a reading to the queue, evicting the oldest entry when
// full. The producer is never blocked.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Reading) (int, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return 0, false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return 0, false
	}

	dropped := 0
	for {
		select {
		case q.readings <- r:
			metrics.RecordQueueEnqueue()
			q.observeSize()
			return dropped, true
		case <-ctx.Done():
			metrics.RecordQueueEnqueueError()
			metrics.RecordErrorByComponent("queue", "context_cancelled")
			return dropped, false
		default:
		}

		// Full: evict the oldest unconsumed reading and retry. The
		// engine may dequeue concurrently, in which case the eviction
		// receive simply misses and the retry succeeds anyway.
		select {
		case <-q.readings:
			dropped++
			metrics.RecordBackpressureDrop()
		default:
		}
	}
}

// Dequeue returns the channel the engine drains. Only the engine's
// control loop may receive from it.
func (q *InMemoryQueue) Dequeue() <-chan Reading {
	return q.readings
}

// Len returns the current number of queued readings.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.readings)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	// Closing the channel signals the engine's drain loop to stop.
	close(q.readings)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observeSize() {
	size := len(q.readings)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
