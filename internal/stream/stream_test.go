package stream_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/vita/internal/adapters/mq/queue"
	"github.com/okian/vita/internal/domain/model"
	stream "github.com/okian/vita/internal/stream"
	"github.com/okian/vita/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// captureQueue records enqueued readings in order.
type captureQueue struct {
	readings []queue.Reading
}

func (q *captureQueue) Enqueue(_ context.Context, r queue.Reading) (int, bool) {
	q.readings = append(q.readings, r)
	return 0, true
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStream_Ingest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	Convey("Given a stream over a capturing queue", t, func() {
		q := &captureQueue{}
		s := stream.New(q, stream.WithClock(fixedClock(now)))

		Convey("When a valid reading arrives", func() {
			err := s.Ingest(ctx, model.BiometricReading{
				DeviceID:  "w1",
				Timestamp: now,
				HeartRate: model.Float(72),
			})

			Convey("Then it is forwarded to the queue", func() {
				So(err, ShouldBeNil)
				So(q.readings, ShouldHaveLength, 1)
				So(q.readings[0].DeviceID, ShouldEqual, "w1")
			})

			Convey("And the unknown device auto-registers as connected", func() {
				devices := s.ConnectedDevices()
				So(devices, ShouldHaveLength, 1)
				So(devices[0].ID, ShouldEqual, "w1")
				So(devices[0].Connected, ShouldBeTrue)
			})
		})

		Convey("When a reading arrives without a timestamp", func() {
			err := s.Ingest(ctx, model.BiometricReading{DeviceID: "w1", HeartRate: model.Float(70)})

			Convey("Then it is stamped with the clock", func() {
				So(err, ShouldBeNil)
				So(q.readings[0].Timestamp.Equal(now), ShouldBeTrue)
			})
		})

		Convey("When the device id is missing", func() {
			err := s.Ingest(ctx, model.BiometricReading{HeartRate: model.Float(70)})

			Convey("Then the reading is rejected", func() {
				So(errors.Is(err, stream.ErrInvalidReading), ShouldBeTrue)
				So(q.readings, ShouldBeEmpty)
			})
		})

		Convey("When channel values fall outside their domains", func() {
			cases := []model.BiometricReading{
				{DeviceID: "w1", HeartRate: model.Float(250)},
				{DeviceID: "w1", HeartRate: model.Float(10)},
				{DeviceID: "w1", HRV: model.Float(120)},
				{DeviceID: "w1", StressRaw: model.Float(-5)},
				{DeviceID: "w1", SleepQuality: model.Float(101)},
			}
			for _, r := range cases {
				So(errors.Is(s.Ingest(ctx, r), stream.ErrInvalidReading), ShouldBeTrue)
			}
			So(q.readings, ShouldBeEmpty)
		})
	})
}

func TestStream_Ordering(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	Convey("Given a stream that accepted a reading at t0", t, func() {
		q := &captureQueue{}
		s := stream.New(q)
		So(s.Ingest(ctx, model.BiometricReading{DeviceID: "w1", Timestamp: now, HeartRate: model.Float(70)}), ShouldBeNil)

		Convey("Then an older reading from the same device is rejected", func() {
			err := s.Ingest(ctx, model.BiometricReading{
				DeviceID: "w1", Timestamp: now.Add(-time.Second), HeartRate: model.Float(71),
			})
			So(errors.Is(err, stream.ErrInvalidReading), ShouldBeTrue)
		})

		Convey("Then an equal timestamp is still accepted", func() {
			err := s.Ingest(ctx, model.BiometricReading{
				DeviceID: "w1", Timestamp: now, HeartRate: model.Float(71),
			})
			So(err, ShouldBeNil)
		})

		Convey("Then another device keeps its own clock", func() {
			err := s.Ingest(ctx, model.BiometricReading{
				DeviceID: "w2", Timestamp: now.Add(-time.Hour), HeartRate: model.Float(65),
			})
			So(err, ShouldBeNil)
		})

		Convey("When the device disconnects and reconnects", func() {
			s.DeviceDisconnected(ctx, "w1")
			s.DeviceConnected(ctx, "w1", "", "")

			Convey("Then the timestamp high-water mark survives", func() {
				err := s.Ingest(ctx, model.BiometricReading{
					DeviceID: "w1", Timestamp: now.Add(-time.Second), HeartRate: model.Float(70),
				})
				So(errors.Is(err, stream.ErrInvalidReading), ShouldBeTrue)
			})
		})
	})
}

func TestStream_Connectivity(t *testing.T) {
	ctx := context.Background()

	Convey("Given devices registered through the lifecycle calls", t, func() {
		s := stream.New(&captureQueue{})
		s.DeviceConnected(ctx, "ring-1", "Oura", "ring")
		s.DeviceConnected(ctx, "band-2", "Band", "wristband")

		Convey("Then ConnectedDevices lists them ordered by ID", func() {
			devices := s.ConnectedDevices()
			So(devices, ShouldHaveLength, 2)
			So(devices[0].ID, ShouldEqual, "band-2")
			So(devices[1].ID, ShouldEqual, "ring-1")
		})

		Convey("When one disconnects", func() {
			s.DeviceDisconnected(ctx, "ring-1")

			Convey("Then it leaves the connected set but stays known", func() {
				So(s.ConnectedDevices(), ShouldHaveLength, 1)
				So(s.AllDevices(), ShouldHaveLength, 2)
			})
		})

		Convey("When it reconnects with empty metadata", func() {
			s.DeviceDisconnected(ctx, "ring-1")
			s.DeviceConnected(ctx, "ring-1", "", "")

			Convey("Then the known name and type are kept", func() {
				devices := s.ConnectedDevices()
				So(devices, ShouldHaveLength, 2)
				So(devices[1].Name, ShouldEqual, "Oura")
				So(devices[1].Type, ShouldEqual, "ring")
			})
		})

		Convey("When an unknown device disconnects", func() {
			s.DeviceDisconnected(ctx, "ghost")

			Convey("Then nothing changes", func() {
				So(s.AllDevices(), ShouldHaveLength, 2)
			})
		})
	})
}
