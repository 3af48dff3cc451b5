package engine

import "github.com/okian/vita/internal/domain/model"

// ring is the bounded, append-only history buffer. Capacity is fixed at
// construction; the oldest entry is evicted on overflow. Owned
// exclusively by the engine; callers get copies via snapshot.
type ring struct {
	buf  []model.BiometricsState
	head int // index of the oldest entry
	n    int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]model.BiometricsState, capacity)}
}

func (r *ring) append(s model.BiometricsState) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	// Full: overwrite the oldest slot.
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) len() int {
	return r.n
}

func (r *ring) clear() {
	r.head = 0
	r.n = 0
}

// snapshot returns the entries oldest first.
func (r *ring) snapshot() []model.BiometricsState {
	out := make([]model.BiometricsState, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// tail returns up to k of the newest entries, oldest first.
func (r *ring) tail(k int) []model.BiometricsState {
	if k > r.n {
		k = r.n
	}
	out := make([]model.BiometricsState, 0, k)
	for i := r.n - k; i < r.n; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
