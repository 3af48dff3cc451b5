package config_test

import (
	"testing"

	"github.com/okian/vita/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewDefaults(t *testing.T) {
	convey.Convey("Given a default configuration", t, func() {
		cfg := config.New()

		convey.Convey("Then service defaults are sensible", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.AutoStart, convey.ShouldBeTrue)
		})

		convey.Convey("Then derivation defaults match the engine", func() {
			convey.So(cfg.CadenceMS, convey.ShouldEqual, 1000)
			convey.So(cfg.HistoryCapacity, convey.ShouldEqual, 500)
			convey.So(cfg.SmoothingFactor, convey.ShouldEqual, 0.3)
			convey.So(cfg.MaxStepPerCycle, convey.ShouldEqual, 15.0)
			convey.So(cfg.TrendWindow, convey.ShouldEqual, 5)
			convey.So(cfg.TrendDeadZone, convey.ShouldEqual, 2.0)
			convey.So(cfg.StaleAfterMS, convey.ShouldEqual, 120000)
		})

		convey.Convey("Then pipeline defaults are set", func() {
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.SubscriberBuffer, convey.ShouldEqual, 16)
		})

		convey.Convey("Then MQTT ingestion is off by default", func() {
			convey.So(cfg.MQTT.Enabled, convey.ShouldBeFalse)
			convey.So(cfg.MQTT.Broker, convey.ShouldEqual, "tcp://localhost:1883")
			convey.So(cfg.MQTT.QoS, convey.ShouldEqual, 1)
		})
	})
}
