package queue

import (
	"context"
	"testing"
	"time"

	"github.com/okian/vita/internal/domain/model"
)

func reading(device string, ts time.Time) Reading {
	return model.BiometricReading{DeviceID: device, Timestamp: ts, StressRaw: model.Float(50)}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()
	now := time.Now()

	// Empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Enqueue
	if dropped, ok := q.Enqueue(ctx, reading("watch-1", now)); !ok || dropped != 0 {
		t.Errorf("expected clean enqueue, got dropped=%d ok=%v", dropped, ok)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Dequeue
	r := <-q.Dequeue()
	if r.DeviceID != "watch-1" {
		t.Errorf("expected watch-1, got %v", r.DeviceID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_DropOldestUnderBackpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()
	now := time.Now()

	q.Enqueue(ctx, reading("a", now))
	q.Enqueue(ctx, reading("b", now.Add(time.Second)))

	// Full queue: the third enqueue must evict the oldest, not block
	// or reject.
	dropped, ok := q.Enqueue(ctx, reading("c", now.Add(2*time.Second)))
	if !ok {
		t.Fatal("expected enqueue to succeed under backpressure")
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped reading, got %d", dropped)
	}

	// Remaining order must be preserved: b then c.
	first := <-q.Dequeue()
	second := <-q.Dequeue()
	if first.DeviceID != "b" || second.DeviceID != "c" {
		t.Errorf("expected b,c after eviction, got %s,%s", first.DeviceID, second.DeviceID)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}

	// Enqueue after close is refused.
	if _, ok := q.Enqueue(ctx, reading("a", time.Now())); ok {
		t.Error("expected enqueue to fail after close")
	}

	// Dequeue channel is closed.
	if _, open := <-q.Dequeue(); open {
		t.Error("expected dequeue channel to be closed")
	}

	// Double close is a no-op.
	if err := q.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}
}

func TestInMemoryQueue_ContextCancellation(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := q.Enqueue(ctx, reading("a", time.Now())); ok {
		t.Error("expected enqueue to fail with cancelled context")
	}
}
