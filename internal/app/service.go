// Package service provides the core wellness service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	readingqueue "github.com/okian/vita/internal/adapters/mq/queue"
	"github.com/okian/vita/internal/domain/derive"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/internal/domain/trigger"
	"github.com/okian/vita/internal/engine"
	"github.com/okian/vita/internal/stream"
	"github.com/okian/vita/internal/subscribe"
	"github.com/okian/vita/pkg/logger"
	"github.com/okian/vita/pkg/metrics"
)

// Service composes the reading stream, derivation engine, trigger
// registry and subscription hub behind a single facade.
type Service struct {
	mu sync.RWMutex

	// Core components
	queue    *readingqueue.InMemoryQueue
	stream   *stream.Stream
	registry *trigger.Registry
	hub      *subscribe.Hub
	engine   *engine.Engine

	// Configuration
	queueSize        int
	subscriberBuffer int
	cadence          time.Duration
	historyCapacity  int
	trendWindow      int
	staleAfter       time.Duration
	deriverOpts      []derive.Option
	engineOpts       []engine.Option
	autoStart        bool

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:        1024,
		subscriberBuffer: 16,
		cadence:          time.Second,
		historyCapacity:  500,
		trendWindow:      5,
		staleAfter:       2 * time.Minute,
		autoStart:        true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and, unless disabled, starts the
// derivation loop. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting wellness service...")

	s.queue = readingqueue.NewInMemoryQueue(
		readingqueue.WithCapacity(s.queueSize),
	)
	s.stream = stream.New(s.queue,
		stream.WithLogger(s.logger.Named("stream")),
	)
	s.registry = trigger.NewRegistry(
		trigger.WithLogger(s.logger.Named("trigger")),
	)
	s.hub = subscribe.NewHub(
		subscribe.WithBufferSize(s.subscriberBuffer),
	)

	engineOpts := []engine.Option{
		engine.WithCadence(s.cadence),
		engine.WithHistoryCapacity(s.historyCapacity),
		engine.WithTrendWindow(s.trendWindow),
		engine.WithStaleAfter(s.staleAfter),
		engine.WithLogger(s.logger.Named("engine")),
	}
	if len(s.deriverOpts) > 0 {
		engineOpts = append(engineOpts, engine.WithDeriver(derive.New(s.deriverOpts...)))
	}
	engineOpts = append(engineOpts, s.engineOpts...)

	s.engine = engine.New(s.queue, s.stream, s.registry, s.hub, engineOpts...)

	if s.autoStart {
		s.engine.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "wellness service started",
		logger.Int("queueSize", s.queueSize),
		logger.Duration("cadence", s.cadence),
		logger.Bool("engineRunning", s.engine.Running()),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping wellness service...")

	if s.engine != nil {
		s.engine.Stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}

	s.started = false
	s.logger.Info(ctx, "wellness service stopped")
}

// StartEngine starts the derivation loop if it is not running.
func (s *Service) StartEngine(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine != nil {
		s.engine.Start(ctx)
	}
}

// StopEngine halts the derivation loop without tearing the service
// down; ingestion keeps queueing readings.
func (s *Service) StopEngine() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine != nil {
		s.engine.Stop()
	}
}

// Ingest validates and queues one biometric reading.
func (s *Service) Ingest(ctx context.Context, r model.BiometricReading) error {
	return s.stream.Ingest(ctx, r)
}

// ConnectDevice registers or reconnects a device.
func (s *Service) ConnectDevice(ctx context.Context, id, name, deviceType string) {
	s.stream.DeviceConnected(ctx, id, name, deviceType)
}

// DisconnectDevice marks a device as disconnected. Its last-seen
// timestamp survives for ordering on reconnect.
func (s *Service) DisconnectDevice(ctx context.Context, id string) {
	s.stream.DeviceDisconnected(ctx, id)
}

// CurrentState returns the latest derived state, or nil before the
// first accepted reading.
func (s *Service) CurrentState(ctx context.Context) *model.BiometricsState {
	return s.engine.CurrentState()
}

// History returns retained states, oldest first.
func (s *Service) History(ctx context.Context) []model.BiometricsState {
	return s.engine.History()
}

// ClearHistory discards retained states. The current state survives.
func (s *Service) ClearHistory(ctx context.Context) {
	s.engine.ClearHistory()
}

// ManualCheck forces one derivation cycle.
func (s *Service) ManualCheck(ctx context.Context) (*model.BiometricsState, error) {
	return s.engine.ManualCheck(ctx)
}

// PutTrigger registers or replaces an intervention trigger. Takes
// effect at the next cycle boundary.
func (s *Service) PutTrigger(ctx context.Context, t trigger.Trigger) {
	s.engine.AddTrigger(t)
}

// DeleteTrigger removes a trigger. Unknown ids are a no-op.
func (s *Service) DeleteTrigger(ctx context.Context, id string) {
	s.engine.RemoveTrigger(id)
}

// Triggers lists registered triggers in evaluation order.
func (s *Service) Triggers(ctx context.Context) []trigger.Trigger {
	return s.engine.Triggers()
}

// Subscribe attaches a state subscription.
func (s *Service) Subscribe(selector subscribe.Selector, opts ...subscribe.SubOption) *subscribe.Subscription {
	return s.hub.Subscribe(selector, opts...)
}

// Unsubscribe detaches a subscription and closes its channel.
func (s *Service) Unsubscribe(id string) {
	s.hub.Unsubscribe(id)
}

// GetStats returns a snapshot of runtime counters.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
	}
	if !s.started {
		return stats
	}

	stats["engine_running"] = s.engine.Running()
	stats["queue_size"] = s.queue.Len(ctx)
	stats["queue_capacity"] = s.queueSize
	stats["history_size"] = len(s.engine.History())
	stats["subscribers"] = s.hub.Count()
	stats["triggers"] = len(s.engine.Triggers())
	stats["connected_devices"] = len(s.stream.ConnectedDevices())
	stats["known_devices"] = len(s.stream.AllDevices())
	if st := s.engine.CurrentState(); st != nil {
		stats["stress_index"] = st.StressIndex
		stats["wellness_score"] = st.WellnessScore
		stats["intervention_level"] = string(st.InterventionLevel)
		stats["state_timestamp"] = st.Timestamp
	}

	metrics.UpdateHistorySize(stats["history_size"].(int))
	return stats
}
