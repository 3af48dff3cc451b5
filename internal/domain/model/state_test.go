package model_test

import (
	"testing"
	"time"

	model "github.com/okian/vita/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestBiometricsState_Clone(t *testing.T) {
	convey.Convey("Given a state with pointer and slice fields", t, func() {
		hr := 72.0
		original := model.BiometricsState{
			StressIndex:   40,
			WellnessScore: 65,
			HeartRate:     &hr,
			ConnectedDevices: []model.Device{
				{ID: "w1", Name: "Band", Type: "wristband", Connected: true},
			},
			Timestamp:   time.Now(),
			LastReading: time.Now(),
		}

		convey.Convey("When cloned", func() {
			clone := original.Clone()

			convey.Convey("Then values are equal", func() {
				convey.So(clone.StressIndex, convey.ShouldEqual, original.StressIndex)
				convey.So(*clone.HeartRate, convey.ShouldEqual, *original.HeartRate)
				convey.So(clone.ConnectedDevices, convey.ShouldResemble, original.ConnectedDevices)
			})

			convey.Convey("Then mutating the clone leaves the original alone", func() {
				*clone.HeartRate = 180
				clone.ConnectedDevices[0].Connected = false

				convey.So(*original.HeartRate, convey.ShouldEqual, 72.0)
				convey.So(original.ConnectedDevices[0].Connected, convey.ShouldBeTrue)
			})
		})
	})
}

func TestBiometricsState_Stale(t *testing.T) {
	convey.Convey("Given a two-minute staleness window", t, func() {
		window := 2 * time.Minute
		now := time.Now()

		convey.Convey("Then fresh data is not stale", func() {
			s := model.BiometricsState{Timestamp: now, LastReading: now.Add(-time.Minute)}
			convey.So(s.Stale(window), convey.ShouldBeFalse)
		})

		convey.Convey("Then data older than the window is stale", func() {
			s := model.BiometricsState{Timestamp: now, LastReading: now.Add(-3 * time.Minute)}
			convey.So(s.Stale(window), convey.ShouldBeTrue)
		})

		convey.Convey("Then a state with no reading at all is stale", func() {
			s := model.BiometricsState{Timestamp: now}
			convey.So(s.Stale(window), convey.ShouldBeTrue)
		})
	})
}

func TestValidInterventionLevel(t *testing.T) {
	convey.Convey("Given the intervention vocabulary", t, func() {
		convey.Convey("Then known tiers validate", func() {
			for _, l := range []model.InterventionLevel{
				model.InterventionNone,
				model.InterventionMild,
				model.InterventionModerate,
				model.InterventionSevere,
			} {
				convey.So(model.ValidInterventionLevel(l), convey.ShouldBeTrue)
			}
		})

		convey.Convey("Then anything else is rejected", func() {
			convey.So(model.ValidInterventionLevel("critical"), convey.ShouldBeFalse)
			convey.So(model.ValidInterventionLevel(""), convey.ShouldBeFalse)
		})
	})
}
