// Package engine runs the wellness derivation control loop.
//
// A single goroutine owns all state mutation: it drains accepted
// readings, folds them into the smoothed stress index, computes the
// wellness composite, classifies trends, evaluates triggers, and
// publishes one immutable state per cycle. Serializing derivation in
// one place is what makes the stress/wellness sync guarantee hold
// unconditionally: both values are stamped with the same derivation
// timestamp inside the same critical section.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/okian/vita/internal/domain/derive"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/internal/domain/trigger"
	"github.com/okian/vita/pkg/logger"
	"github.com/okian/vita/pkg/metrics"
)

// Default engine configuration constants.
const (
	defaultCadence         = time.Second
	defaultHistoryCapacity = 500
	defaultTrendWindow     = 5
	defaultStaleAfter      = 2 * time.Minute
)

// Queue is how the engine receives accepted readings.
type Queue interface {
	Dequeue() <-chan model.BiometricReading
}

// DeviceSource supplies the connectivity snapshot folded into each state.
type DeviceSource interface {
	ConnectedDevices() []model.Device
}

// Publisher receives every published state.
type Publisher interface {
	Publish(s model.BiometricsState)
}

type manualRequest struct {
	reply chan *model.BiometricsState
}

// Engine is the wellness control loop. Construct with New, drive with
// Start/Stop; one engine monitors one subject.
type Engine struct {
	queue    Queue
	devices  DeviceSource
	registry *trigger.Registry
	hub      Publisher
	deriver  *derive.Deriver

	cadence     time.Duration
	trendWindow int
	staleAfter  time.Duration
	historyCap  int
	strict      bool

	clock  func() time.Time
	logger logger.Logger

	// Derivation state, touched only by the control loop.
	stress      float64
	haveStress  bool
	lastHR      *float64
	lastHRV     *float64
	lastSleep   *float64
	lastReading time.Time
	wasStale    bool

	// Shared with readers; the loop is the only writer.
	mu      sync.RWMutex
	running bool
	current *model.BiometricsState
	history *ring

	manualCh chan manualRequest
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates an engine wired to its collaborators, with configuration
// options. The engine is Stopped until Start is called.
func New(q Queue, devices DeviceSource, registry *trigger.Registry, hub Publisher, opts ...Option) *Engine {
	e := &Engine{
		queue:       q,
		devices:     devices,
		registry:    registry,
		hub:         hub,
		deriver:     derive.New(),
		cadence:     defaultCadence,
		trendWindow: defaultTrendWindow,
		staleAfter:  defaultStaleAfter,
		historyCap:  defaultHistoryCapacity,
		clock:       time.Now,
		manualCh:    make(chan manualRequest),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}
	e.history = newRing(e.historyCap)

	return e
}

// Start transitions Stopped to Running and begins the control loop.
// Idempotent: starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})

	e.logger.Info(ctx, "engine starting",
		logger.Duration("cadence", e.cadence),
		logger.Int("historyCapacity", e.historyCap),
	)
	go e.run(ctx, e.stopCh, e.done)
}

// Stop transitions Running to Stopped. The request is honored at the
// next loop boundary, never mid-derivation: a cycle already underway
// finishes and its state still publishes. Idempotent and safe from any
// goroutine.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stop, done := e.stopCh, e.done
	e.mu.Unlock()

	close(stop)
	<-done

	e.logger.Info(context.Background(), "engine stopped")
}

// Running reports whether the control loop is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ManualCheck forces one derivation cycle out of band and returns the
// resulting state. The returned state is nil (with nil error) while no
// reading has ever been accepted; ErrStopped is returned when the
// engine is not running.
func (e *Engine) ManualCheck(ctx context.Context) (*model.BiometricsState, error) {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return nil, ErrStopped
	}
	done := e.done
	e.mu.RUnlock()

	req := manualRequest{reply: make(chan *model.BiometricsState, 1)}
	select {
	case e.manualCh <- req:
	case <-done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case st := <-req.reply:
		return st, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CurrentState returns a copy of the most recently published state, or
// nil if the engine has not derived one yet.
func (e *Engine) CurrentState() *model.BiometricsState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.current == nil {
		return nil
	}
	c := e.current.Clone()
	return &c
}

// History returns a copy of the retained states, oldest first.
func (e *Engine) History() []model.BiometricsState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	states := e.history.snapshot()
	for i := range states {
		states[i] = states[i].Clone()
	}
	return states
}

// ClearHistory empties the history buffer. The current state and the
// smoothed derivation values are unaffected.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.clear()
	metrics.UpdateHistorySize(0)
}

// AddTrigger queues a trigger for insertion at the next cycle boundary.
func (e *Engine) AddTrigger(t trigger.Trigger) {
	e.registry.Add(t)
}

// RemoveTrigger queues a trigger removal.
func (e *Engine) RemoveTrigger(id string) {
	e.registry.Remove(id)
}

// UpdateTrigger queues a partial trigger mutation.
func (e *Engine) UpdateTrigger(id string, u trigger.Update) {
	e.registry.Update(id, u)
}

// Triggers returns the applied trigger set in evaluation order.
func (e *Engine) Triggers() []trigger.Trigger {
	return e.registry.List()
}

// run is the control loop. It alternates between waiting (for the next
// reading, the cadence tick, or a manual check) and deriving.
func (e *Engine) run(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	readings := e.queue.Dequeue()
	ticker := time.NewTicker(e.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			e.cycle(ctx, readings, nil)
		case r, ok := <-readings:
			if !ok {
				// Queue closed: keep ticking on stale data only.
				readings = nil
				continue
			}
			e.cycle(ctx, readings, &r)
		case req := <-e.manualCh:
			req.reply <- e.cycle(ctx, readings, nil)
		}
	}
}

// cycle runs one derivation. Returns the published state, or nil when
// no reading has ever been accepted (consumers represent "no state
// yet" explicitly rather than receiving a fabricated default).
func (e *Engine) cycle(ctx context.Context, readings <-chan model.BiometricReading, first *model.BiometricReading) *model.BiometricsState {
	start := time.Now()

	// Queued trigger mutations become visible only here, at the cycle
	// boundary.
	e.registry.Apply()
	metrics.UpdateTriggerCount(e.registry.Len())

	drained := e.drain(readings, first)
	for _, r := range drained {
		e.absorb(r)
	}

	if e.lastReading.IsZero() {
		return nil
	}

	now := e.clock()
	wellness := e.deriver.Wellness(e.stress, e.lastHRV, e.lastSleep)

	state := model.BiometricsState{
		StressIndex:      e.stress,
		WellnessScore:    wellness,
		ConnectedDevices: e.devices.ConnectedDevices(),
		// One stamp for the whole snapshot: StressIndex and
		// WellnessScore can never carry two different derivation times.
		Timestamp:   now,
		LastReading: e.lastReading,
	}
	if e.lastHR != nil {
		hr := *e.lastHR
		state.HeartRate = &hr
	}

	e.mu.RLock()
	stressWindow, wellnessWindow := e.trendWindows()
	prev := e.current
	e.mu.RUnlock()

	if len(drained) == 0 && prev != nil {
		// No new readings, so the previous classifications stand.
		// Reclassifying against a window padded with the repeated value
		// would flip the trend once the mean creeps inside the dead zone.
		state.StressTrend = prev.StressTrend
		state.WellnessTrend = prev.WellnessTrend
	} else {
		state.StressTrend = derive.StressTrend(e.deriver.Trend(state.StressIndex, stressWindow))
		state.WellnessTrend = derive.WellnessTrend(e.deriver.Trend(state.WellnessScore, wellnessWindow))
	}

	state.InterventionLevel = model.InterventionNone
	if fired, ok := e.registry.Evaluate(state, now); ok {
		state.InterventionLevel = fired.Level
		state.ShouldIntervene = fired.Level != model.InterventionNone
		metrics.RecordTriggerFiring(string(fired.Level))
		e.logger.Info(ctx, "trigger fired",
			logger.String("triggerID", fired.ID),
			logger.String("level", string(fired.Level)),
			logger.Float64("stressIndex", state.StressIndex),
		)
	}

	// Published timestamps are strictly increasing. Strict mode panics
	// on a violation; otherwise nudge past the previous stamp.
	if prev != nil && !state.Timestamp.After(prev.Timestamp) {
		if e.strict {
			panic(ErrSyncViolation)
		}
		metrics.RecordErrorByComponent("engine", "sync_violation")
		e.logger.Error(ctx, "non-monotonic derivation timestamp; degrading",
			logger.Time("timestamp", state.Timestamp),
			logger.Time("previous", prev.Timestamp),
		)
		state.Timestamp = prev.Timestamp.Add(time.Nanosecond)
	}

	e.observeStaleness(ctx, state)

	e.mu.Lock()
	published := state.Clone()
	e.current = &published
	e.history.append(state)
	historyLen := e.history.len()
	e.mu.Unlock()

	e.hub.Publish(state)

	metrics.RecordDeriveCycle()
	metrics.RecordDeriveLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	metrics.RecordStatePublished()
	metrics.UpdateStressIndex(state.StressIndex)
	metrics.UpdateWellnessScore(state.WellnessScore)
	metrics.UpdateHistorySize(historyLen)

	out := state.Clone()
	return &out
}

// drain collects every reading accepted since the last cycle without
// blocking. first is the reading that woke the loop, if any.
func (e *Engine) drain(readings <-chan model.BiometricReading, first *model.BiometricReading) []model.BiometricReading {
	var batch []model.BiometricReading
	if first != nil {
		batch = append(batch, *first)
		metrics.RecordQueueDequeue()
	}
	for {
		select {
		case r, ok := <-readings:
			if !ok {
				return batch
			}
			batch = append(batch, r)
			metrics.RecordQueueDequeue()
		default:
			return batch
		}
	}
}

// absorb folds one reading into the derivation state. A reading with no
// usable stress signal leaves the smoothed index at its previous value;
// it never aborts the cycle.
func (e *Engine) absorb(r model.BiometricReading) {
	if sample, ok := e.deriver.StressSample(r); ok {
		if e.haveStress {
			e.stress = e.deriver.SmoothStress(e.stress, sample)
		} else {
			// First sample seeds the index directly.
			e.stress = sample
			e.haveStress = true
		}
	}

	if r.HeartRate != nil {
		hr := *r.HeartRate
		e.lastHR = &hr
	}
	if r.HRV != nil {
		v := *r.HRV
		e.lastHRV = &v
	}
	if r.SleepQuality != nil {
		v := *r.SleepQuality
		e.lastSleep = &v
	}
	if r.Timestamp.After(e.lastReading) {
		e.lastReading = r.Timestamp
	}
}

// trendWindows extracts the last K stress and wellness values from
// history. Caller holds at least a read lock.
func (e *Engine) trendWindows() (stress, wellness []float64) {
	tail := e.history.tail(e.trendWindow)
	stress = make([]float64, 0, len(tail))
	wellness = make([]float64, 0, len(tail))
	for i := range tail {
		stress = append(stress, tail[i].StressIndex)
		wellness = append(wellness, tail[i].WellnessScore)
	}
	return stress, wellness
}

// observeStaleness logs transitions into and out of the stale window.
// Staleness is never an error: the state still publishes and consumers
// read the Timestamp/LastReading skew themselves.
func (e *Engine) observeStaleness(ctx context.Context, state model.BiometricsState) {
	stale := state.Stale(e.staleAfter)
	switch {
	case stale && !e.wasStale:
		e.logger.Warn(ctx, "readings stale; deriving from previous smoothed values",
			logger.Time("lastReading", state.LastReading),
			logger.Duration("staleAfter", e.staleAfter),
		)
	case !stale && e.wasStale:
		e.logger.Info(ctx, "readings fresh again",
			logger.Time("lastReading", state.LastReading),
		)
	}
	e.wasStale = stale
}
