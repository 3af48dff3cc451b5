package derive_test

import (
	"testing"

	derive "github.com/okian/vita/internal/domain/derive"
	"github.com/okian/vita/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDeriver_SmoothStress(t *testing.T) {
	Convey("Given a deriver with default parameters", t, func() {
		d := derive.New()

		Convey("When folding in a sample close to the previous index", func() {
			next := d.SmoothStress(50, 60)

			Convey("Then it moves by the smoothing fraction", func() {
				So(next, ShouldAlmostEqual, 53.0, 0.0001)
			})
		})

		Convey("When folding in an extreme outlier", func() {
			next := d.SmoothStress(10, 100)

			Convey("Then the per-cycle step is clamped", func() {
				So(next, ShouldEqual, 25.0)
			})
		})

		Convey("When the previous index sits near the scale boundary", func() {
			next := d.SmoothStress(98, 200)

			Convey("Then the result stays on the 0-100 scale", func() {
				So(next, ShouldBeLessThanOrEqualTo, 100.0)
			})
		})
	})

	Convey("Given a deriver with a custom smoothing factor", t, func() {
		d := derive.New(derive.WithSmoothingFactor(1.0), derive.WithMaxStepPerCycle(100))

		Convey("Then the newest sample fully replaces the index", func() {
			So(d.SmoothStress(20, 70), ShouldEqual, 70.0)
		})
	})
}

func TestDeriver_StressSample(t *testing.T) {
	Convey("Given a deriver", t, func() {
		d := derive.New()

		Convey("When the reading carries a raw stress channel", func() {
			r := model.BiometricReading{DeviceID: "w1", StressRaw: model.Float(42)}
			v, ok := d.StressSample(r)

			Convey("Then the raw value wins over any proxy", func() {
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 42.0)
			})
		})

		Convey("When only heart rate and HRV are present", func() {
			r := model.BiometricReading{
				DeviceID:  "w1",
				HeartRate: model.Float(125),
				HRV:       model.Float(40),
			}
			v, ok := d.StressSample(r)

			Convey("Then the proxy blends both channels", func() {
				So(ok, ShouldBeTrue)
				// hrNorm = (125-30)/190*100 = 50; inverse HRV = 60.
				So(v, ShouldAlmostEqual, 0.6*50+0.4*60, 0.0001)
			})
		})

		Convey("When only heart rate is present", func() {
			r := model.BiometricReading{DeviceID: "w1", HeartRate: model.Float(125)}
			v, ok := d.StressSample(r)

			Convey("Then its weight renormalizes to one", func() {
				So(ok, ShouldBeTrue)
				So(v, ShouldAlmostEqual, 50.0, 0.0001)
			})
		})

		Convey("When the reading carries no stress-relevant channel", func() {
			r := model.BiometricReading{DeviceID: "w1", SleepQuality: model.Float(80)}
			_, ok := d.StressSample(r)

			Convey("Then no sample is produced", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestDeriver_Wellness(t *testing.T) {
	Convey("Given a deriver with default weights", t, func() {
		d := derive.New()

		Convey("When all components are present", func() {
			v := d.Wellness(30, model.Float(80), model.Float(70))

			Convey("Then the composite is the weighted mix", func() {
				So(v, ShouldAlmostEqual, 0.5*70+0.3*80+0.2*70, 0.0001)
			})
		})

		Convey("When HRV and sleep are missing", func() {
			v := d.Wellness(30, nil, nil)

			Convey("Then inverse stress carries the whole score", func() {
				So(v, ShouldAlmostEqual, 70.0, 0.0001)
			})
		})

		Convey("When only sleep is missing", func() {
			v := d.Wellness(30, model.Float(80), nil)

			Convey("Then the remaining weights renormalize", func() {
				So(v, ShouldAlmostEqual, (0.5*70+0.3*80)/0.8, 0.0001)
			})
		})
	})
}

func TestDeriver_Trend(t *testing.T) {
	Convey("Given a deriver with the default dead zone", t, func() {
		d := derive.New()

		Convey("When the window is empty", func() {
			So(d.Trend(50, nil), ShouldEqual, derive.Stable)
		})

		Convey("When the delta sits inside the dead zone", func() {
			So(d.Trend(51, []float64{50, 50, 50}), ShouldEqual, derive.Stable)
		})

		Convey("When current clearly exceeds the window mean", func() {
			So(d.Trend(60, []float64{50, 52, 48}), ShouldEqual, derive.Rising)
		})

		Convey("When current clearly undercuts the window mean", func() {
			So(d.Trend(40, []float64{50, 52, 48}), ShouldEqual, derive.Falling)
		})
	})
}

func TestTrendVocabulary(t *testing.T) {
	Convey("Direction maps onto the stress vocabulary", t, func() {
		So(derive.StressTrend(derive.Rising), ShouldEqual, model.StressRising)
		So(derive.StressTrend(derive.Falling), ShouldEqual, model.StressFalling)
		So(derive.StressTrend(derive.Stable), ShouldEqual, model.StressStable)
	})

	Convey("Direction maps onto the wellness vocabulary", t, func() {
		So(derive.WellnessTrend(derive.Rising), ShouldEqual, model.WellnessImproving)
		So(derive.WellnessTrend(derive.Falling), ShouldEqual, model.WellnessDeclining)
		So(derive.WellnessTrend(derive.Stable), ShouldEqual, model.WellnessStable)
	})
}
