package trigger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/pkg/logger"
	"github.com/okian/vita/pkg/metrics"
)

// Registry is the engine-owned rule set. Mutations arriving through
// Add/Remove/Update are queued and only become visible when the engine
// calls Apply at a cycle boundary, so a rule set is never torn
// mid-cycle. Evaluate and Apply are called from the engine loop only;
// the mutation queue and the List/Len snapshot are safe from any
// goroutine.
type Registry struct {
	mu      sync.Mutex
	pending []op
	view    []Trigger // snapshot served by List and Len, refreshed by Apply

	// Applied view, touched only by the engine loop.
	triggers  []Trigger // sorted by Priority desc, ID asc
	lastFired map[string]time.Time

	logger logger.Logger
}

type opKind int

const (
	opAdd opKind = iota
	opRemove
	opUpdate
)

type op struct {
	kind    opKind
	trigger Trigger
	id      string
	update  Update
}

// NewRegistry creates an empty registry with configuration options.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		lastFired: make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logger.Get().Named("triggers")
	}

	return r
}

// Add queues a trigger for insertion at the next cycle boundary.
// Adding an existing ID replaces the trigger (last-write-wins).
func (r *Registry) Add(t Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, op{kind: opAdd, trigger: t})
}

// Remove queues a trigger removal. Removing an unknown ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, op{kind: opRemove, id: id})
}

// Update queues a partial mutation of an existing trigger. Updating an
// unknown ID is a no-op.
func (r *Registry) Update(id string, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, op{kind: opUpdate, id: id, update: u})
}

// Apply drains the mutation queue into the applied view. Called by the
// engine at the start of each derivation cycle.
func (r *Registry) Apply() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	for _, o := range pending {
		switch o.kind {
		case opAdd:
			r.insert(o.trigger)
		case opRemove:
			r.remove(o.id)
			delete(r.lastFired, o.id)
		case opUpdate:
			i := r.index(o.id)
			if i < 0 {
				continue
			}
			t := r.triggers[i]
			if o.update.Priority != nil {
				t.Priority = *o.update.Priority
			}
			if o.update.Enabled != nil {
				t.Enabled = *o.update.Enabled
			}
			if o.update.Cooldown != nil {
				t.Cooldown = *o.update.Cooldown
			}
			if o.update.Level != nil {
				t.Level = *o.update.Level
			}
			if o.update.Rule != nil {
				t.Rule = o.update.Rule
			}
			if o.update.Condition != nil {
				t.Condition = o.update.Condition
			}
			// Reinsert so a priority change keeps the order sorted.
			r.remove(o.id)
			r.insert(t)
		}
	}

	// The applied view only changes here, so the snapshot only needs
	// refreshing here.
	snap := make([]Trigger, len(r.triggers))
	copy(snap, r.triggers)
	r.mu.Lock()
	r.view = snap
	r.mu.Unlock()
}

// Evaluate runs every enabled trigger against s in priority order and
// returns the first one whose condition holds and whose cooldown has
// elapsed. A panicking condition is logged and treated as non-firing;
// it never blocks later triggers. The now argument is the derivation
// timestamp and doubles as the cooldown clock.
func (r *Registry) Evaluate(s model.BiometricsState, now time.Time) (Trigger, bool) {
	var fired Trigger
	ok := false

	for i := range r.triggers {
		t := r.triggers[i]
		if !t.Enabled || t.Condition == nil {
			continue
		}

		holds := r.safeEval(t, s)
		if !holds {
			continue
		}
		if last, seen := r.lastFired[t.ID]; seen && now.Sub(last) < t.Cooldown {
			continue
		}
		if !ok {
			r.lastFired[t.ID] = now
			fired = t
			ok = true
		}
		// Lower-priority conditions still run so their streak counters
		// keep advancing, but only the first match decides the level.
	}

	return fired, ok
}

// safeEval isolates one condition: a panic is logged, counted, and
// reads as "did not fire".
func (r *Registry) safeEval(t Trigger, s model.BiometricsState) (holds bool) {
	defer func() {
		if rec := recover(); rec != nil {
			holds = false
			metrics.RecordTriggerError()
			r.logger.Error(context.Background(), "trigger condition panicked",
				logger.String("triggerID", t.ID),
				logger.Any("panic", rec),
			)
		}
	}()
	return t.Condition(s)
}

// List returns a copy of the applied trigger set in evaluation order.
// It reads the snapshot refreshed at the last Apply, so it is safe
// while the engine loop is mutating the applied view.
func (r *Registry) List() []Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Trigger, len(r.view))
	copy(out, r.view)
	return out
}

// Len returns the number of applied triggers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.view)
}

// index locates id in the applied view, -1 when absent.
func (r *Registry) index(id string) int {
	for i := range r.triggers {
		if r.triggers[i].ID == id {
			return i
		}
	}
	return -1
}

// insert places t at its sorted position, replacing any trigger with
// the same ID first.
func (r *Registry) insert(t Trigger) {
	r.remove(t.ID)

	i := sort.Search(len(r.triggers), func(i int) bool {
		if r.triggers[i].Priority != t.Priority {
			return r.triggers[i].Priority < t.Priority
		}
		return r.triggers[i].ID >= t.ID
	})

	r.triggers = append(r.triggers, Trigger{})
	copy(r.triggers[i+1:], r.triggers[i:])
	r.triggers[i] = t
}

func (r *Registry) remove(id string) {
	i := r.index(id)
	if i < 0 {
		return
	}
	r.triggers = append(r.triggers[:i], r.triggers[i+1:]...)
}
