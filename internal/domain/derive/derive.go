// Package derive computes the smoothed stress index, the composite
// wellness score, and trend classifications from raw biometric samples.
package derive

import (
	"math"

	"github.com/okian/vita/internal/domain/model"
)

// Default derivation configuration constants.
const (
	defaultSmoothingFactor = 0.3  // EWMA weight on the newest sample
	defaultMaxStepPerCycle = 15.0 // clamp on per-cycle stress movement
	defaultTrendDeadZone   = 2.0  // |delta| below this reads as stable

	// Stress proxy mix when a device reports no raw stress channel.
	proxyHeartRateWeight = 0.6
	proxyHRVWeight       = 0.4
)

// Weights configures the wellness composite. They are fixed
// configuration, never derived from data.
type Weights struct {
	InverseStress float64
	HRV           float64
	Sleep         float64
}

// DefaultWeights returns the standard wellness composite mix.
func DefaultWeights() Weights {
	return Weights{InverseStress: 0.5, HRV: 0.3, Sleep: 0.2}
}

// Direction is the sign of a trend comparison: -1 falling, 0 stable, +1 rising.
type Direction int

// Trend directions.
const (
	Falling Direction = -1
	Stable  Direction = 0
	Rising  Direction = 1
)

// Deriver holds the fixed parameters of the derivation math. It is
// stateless; the engine owns the smoothed values between cycles.
type Deriver struct {
	smoothing float64
	maxStep   float64
	deadZone  float64
	weights   Weights
}

// New creates a Deriver with configuration options.
func New(opts ...Option) *Deriver {
	d := &Deriver{
		smoothing: defaultSmoothingFactor,
		maxStep:   defaultMaxStepPerCycle,
		deadZone:  defaultTrendDeadZone,
		weights:   DefaultWeights(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SmoothStress folds one raw stress sample into the previous smoothed
// index. The result is an exponentially-weighted average clamped so a
// single outlier cannot move the index by more than the configured
// max step, then bounded to 0-100.
func (d *Deriver) SmoothStress(prev, sample float64) float64 {
	next := prev + d.smoothing*(sample-prev)

	// Clamp the per-cycle step.
	if next > prev+d.maxStep {
		next = prev + d.maxStep
	} else if next < prev-d.maxStep {
		next = prev - d.maxStep
	}

	return clamp(next)
}

// StressSample extracts the raw stress value from a reading, deriving a
// heart-rate/HRV proxy when the device reports no stress channel.
// Returns false when the reading carries nothing usable for stress.
func (d *Deriver) StressSample(r model.BiometricReading) (float64, bool) {
	if r.StressRaw != nil {
		return clamp(*r.StressRaw), true
	}
	if r.HeartRate == nil && r.HRV == nil {
		return 0, false
	}

	// Proxy: position of the heart rate within its domain plus inverse
	// HRV, each normalized to 0-100. Missing channels shift their
	// weight onto the present one.
	var sum, weight float64
	if r.HeartRate != nil {
		hrNorm := (*r.HeartRate - model.MinHeartRate) / (model.MaxHeartRate - model.MinHeartRate) * model.MaxScale
		sum += proxyHeartRateWeight * clamp(hrNorm)
		weight += proxyHeartRateWeight
	}
	if r.HRV != nil {
		sum += proxyHRVWeight * clamp(model.MaxScale-*r.HRV)
		weight += proxyHRVWeight
	}
	return clamp(sum / weight), true
}

// Wellness computes the composite wellness score from the current
// smoothed stress and the most recent HRV and sleep-quality samples.
// Missing components renormalize the remaining weights so the score
// stays on the 0-100 scale.
func (d *Deriver) Wellness(stress float64, hrv, sleep *float64) float64 {
	sum := d.weights.InverseStress * (model.MaxScale - clamp(stress))
	weight := d.weights.InverseStress

	if hrv != nil {
		sum += d.weights.HRV * clamp(*hrv)
		weight += d.weights.HRV
	}
	if sleep != nil {
		sum += d.weights.Sleep * clamp(*sleep)
		weight += d.weights.Sleep
	}

	if weight == 0 {
		return 0
	}
	return clamp(sum / weight)
}

// Trend compares current against the mean of window. A delta inside
// the dead zone reads as Stable; outside it the sign decides.
// An empty window is Stable by definition.
func (d *Deriver) Trend(current float64, window []float64) Direction {
	if len(window) == 0 {
		return Stable
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	delta := current - sum/float64(len(window))

	switch {
	case math.Abs(delta) < d.deadZone:
		return Stable
	case delta > 0:
		return Rising
	default:
		return Falling
	}
}

// StressTrend maps a direction onto the stress trend vocabulary.
func StressTrend(dir Direction) model.StressTrend {
	switch dir {
	case Rising:
		return model.StressRising
	case Falling:
		return model.StressFalling
	default:
		return model.StressStable
	}
}

// WellnessTrend maps a direction onto the wellness trend vocabulary.
// Rising wellness is improvement.
func WellnessTrend(dir Direction) model.WellnessTrend {
	switch dir {
	case Rising:
		return model.WellnessImproving
	case Falling:
		return model.WellnessDeclining
	default:
		return model.WellnessStable
	}
}

func clamp(v float64) float64 {
	return math.Max(model.MinScale, math.Min(model.MaxScale, v))
}
