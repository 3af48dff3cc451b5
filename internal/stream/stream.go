// Package stream normalizes heterogeneous device input into a single
// ordered sequence of readings and tracks device connectivity.
package stream

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/vita/internal/adapters/mq/queue"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/pkg/logger"
	"github.com/okian/vita/pkg/metrics"
)

// Enqueuer is the slice of the queue the stream needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, r queue.Reading) (dropped int, ok bool)
}

// deviceRecord keeps connectivity and the per-device timestamp
// high-water mark. The mark survives disconnects so a device that
// reconnects and replays stale samples cannot corrupt history.
type deviceRecord struct {
	device model.Device
	lastTS time.Time
}

// Stream validates readings, enforces per-device timestamp order, and
// forwards accepted readings to the engine's queue without ever
// blocking the producer.
type Stream struct {
	queue Enqueuer

	mu      sync.Mutex
	devices map[string]*deviceRecord

	clock  func() time.Time
	logger logger.Logger
}

// New creates a Stream feeding q, with configuration options.
func New(q Enqueuer, opts ...Option) *Stream {
	s := &Stream{
		queue:   q,
		devices: make(map[string]*deviceRecord),
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("stream")
	}

	return s
}

// Ingest validates r and forwards it to the engine queue. Out-of-range
// values and out-of-order timestamps are rejected with ErrInvalidReading;
// the pipeline itself never fails. Backpressure on the queue is absorbed
// by evicting the oldest queued reading and is reported through metrics,
// never to the caller.
func (s *Stream) Ingest(ctx context.Context, r model.BiometricReading) error {
	if r.DeviceID == "" {
		metrics.RecordReadingRejected("missing_device")
		return fmt.Errorf("%w: missing device id", ErrInvalidReading)
	}

	// Normalize: a reading without a timestamp is stamped on arrival.
	if r.Timestamp.IsZero() {
		r.Timestamp = s.clock()
	}

	if err := validateRanges(r); err != nil {
		metrics.RecordReadingRejected("out_of_range")
		s.logger.Warn(ctx, "rejected out-of-range reading",
			logger.String("deviceID", r.DeviceID),
			logger.Error(err),
		)
		return err
	}

	s.mu.Lock()
	rec, known := s.devices[r.DeviceID]
	if !known {
		// First contact from this device counts as a connection.
		rec = &deviceRecord{device: model.Device{
			ID:        r.DeviceID,
			Name:      r.DeviceID,
			Type:      "unknown",
			Connected: true,
		}}
		s.devices[r.DeviceID] = rec
		s.observeConnectivityLocked()
	}
	if r.Timestamp.Before(rec.lastTS) {
		s.mu.Unlock()
		metrics.RecordReadingRejected("out_of_order")
		s.logger.Warn(ctx, "rejected out-of-order reading",
			logger.String("deviceID", r.DeviceID),
			logger.Time("timestamp", r.Timestamp),
			logger.Time("highWater", rec.lastTS),
		)
		return fmt.Errorf("%w: timestamp %s before device high-water %s",
			ErrInvalidReading, r.Timestamp.Format(time.RFC3339Nano), rec.lastTS.Format(time.RFC3339Nano))
	}
	rec.lastTS = r.Timestamp
	s.mu.Unlock()

	dropped, ok := s.queue.Enqueue(ctx, r)
	if !ok {
		// Queue closed or context cancelled: the reading is lost but
		// the producer must not fail.
		s.logger.Warn(ctx, "reading not enqueued", logger.String("deviceID", r.DeviceID))
		return nil
	}
	if dropped > 0 {
		s.logger.Warn(ctx, "backpressure: evicted oldest queued readings",
			logger.Int("dropped", dropped),
			logger.String("deviceID", r.DeviceID),
		)
	}

	metrics.RecordReadingIngested()
	return nil
}

// DeviceConnected registers or re-registers a device in the
// connectivity set. Name and deviceType may be empty on reconnect, in
// which case previously known values are kept.
func (s *Stream) DeviceConnected(ctx context.Context, id, name, deviceType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, known := s.devices[id]
	if !known {
		rec = &deviceRecord{device: model.Device{ID: id, Name: id, Type: "unknown"}}
		s.devices[id] = rec
	}
	if name != "" {
		rec.device.Name = name
	}
	if deviceType != "" {
		rec.device.Type = deviceType
	}
	rec.device.Connected = true
	s.observeConnectivityLocked()

	s.logger.Info(ctx, "device connected",
		logger.String("deviceID", id),
		logger.String("type", rec.device.Type),
	)
}

// DeviceDisconnected marks a device as disconnected. The device's
// timestamp high-water mark is retained so replayed stale samples are
// still rejected after a reconnect. Unknown IDs are ignored.
func (s *Stream) DeviceDisconnected(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, known := s.devices[id]
	if !known {
		return
	}
	rec.device.Connected = false
	s.observeConnectivityLocked()

	s.logger.Info(ctx, "device disconnected", logger.String("deviceID", id))
}

// ConnectedDevices returns a copy of the currently connected devices,
// ordered by ID. This is what the engine folds into published state.
func (s *Stream) ConnectedDevices() []model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Device, 0, len(s.devices))
	for _, rec := range s.devices {
		if rec.device.Connected {
			out = append(out, rec.device)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllDevices returns a copy of every device the stream has ever seen,
// connected or not, ordered by ID.
func (s *Stream) AllDevices() []model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Device, 0, len(s.devices))
	for _, rec := range s.devices {
		out = append(out, rec.device)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// observeConnectivityLocked refreshes the connectivity gauge. Caller
// holds s.mu.
func (s *Stream) observeConnectivityLocked() {
	connected := 0
	for _, rec := range s.devices {
		if rec.device.Connected {
			connected++
		}
	}
	metrics.UpdateConnectedDevices(connected)
}

// validateRanges checks every present channel against its domain.
func validateRanges(r model.BiometricReading) error {
	if r.HeartRate != nil && (*r.HeartRate < model.MinHeartRate || *r.HeartRate > model.MaxHeartRate) {
		return fmt.Errorf("%w: heart rate %.1f outside [%.0f, %.0f]",
			ErrInvalidReading, *r.HeartRate, model.MinHeartRate, model.MaxHeartRate)
	}
	if err := checkScale("hrv", r.HRV); err != nil {
		return err
	}
	if err := checkScale("stress", r.StressRaw); err != nil {
		return err
	}
	if err := checkScale("sleep_quality", r.SleepQuality); err != nil {
		return err
	}
	return nil
}

func checkScale(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < model.MinScale || *v > model.MaxScale {
		return fmt.Errorf("%w: %s %.1f outside [%.0f, %.0f]",
			ErrInvalidReading, field, *v, model.MinScale, model.MaxScale)
	}
	return nil
}
