// Package model contains domain models passed between layers.
package model

import "time"

// StressTrend classifies the short-term direction of the stress index.
type StressTrend string

// Stress trend values.
const (
	StressRising  StressTrend = "rising"
	StressFalling StressTrend = "falling"
	StressStable  StressTrend = "stable"
)

// WellnessTrend classifies the short-term direction of the wellness score.
type WellnessTrend string

// Wellness trend values.
const (
	WellnessImproving WellnessTrend = "improving"
	WellnessDeclining WellnessTrend = "declining"
	WellnessStable    WellnessTrend = "stable"
)

// InterventionLevel is the escalation tier raised by trigger evaluation.
type InterventionLevel string

// Intervention levels.
const (
	InterventionNone     InterventionLevel = "none"
	InterventionMild     InterventionLevel = "mild"
	InterventionModerate InterventionLevel = "moderate"
	InterventionSevere   InterventionLevel = "severe"
)

// ValidInterventionLevel reports whether l is one of the known tiers.
func ValidInterventionLevel(l InterventionLevel) bool {
	switch l {
	case InterventionNone, InterventionMild, InterventionModerate, InterventionSevere:
		return true
	default:
		return false
	}
}

// BiometricsState is the derived snapshot published by the engine.
// It is immutable once produced: the engine never mutates a published
// value, and all external reads receive copies.
//
// StressIndex and WellnessScore are always computed inside the same
// derivation cycle and share Timestamp, so the pair can never be
// stitched together from two different wall-clock instants.
type BiometricsState struct {
	StressIndex       float64           `json:"stress_index"`    // 0-100, smoothed
	WellnessScore     float64           `json:"wellness_score"`  // 0-100, composite
	HeartRate         *float64          `json:"heart_rate,omitempty"`
	StressTrend       StressTrend       `json:"stress_trend"`
	WellnessTrend     WellnessTrend     `json:"wellness_trend"`
	InterventionLevel InterventionLevel `json:"intervention_level"`
	ShouldIntervene   bool              `json:"should_intervene"`
	ConnectedDevices  []Device          `json:"connected_devices"`
	Timestamp         time.Time         `json:"timestamp"`    // derivation time
	LastReading       time.Time         `json:"last_reading"` // freshness of underlying data
}

// Clone returns a deep copy safe to hand to consumers.
func (s BiometricsState) Clone() BiometricsState {
	out := s
	if s.HeartRate != nil {
		hr := *s.HeartRate
		out.HeartRate = &hr
	}
	if s.ConnectedDevices != nil {
		out.ConnectedDevices = make([]Device, len(s.ConnectedDevices))
		copy(out.ConnectedDevices, s.ConnectedDevices)
	}
	return out
}

// Stale reports whether the underlying data is older than window
// relative to the derivation time. LastReading being zero means no
// reading was ever accepted, which also counts as stale.
func (s BiometricsState) Stale(window time.Duration) bool {
	if s.LastReading.IsZero() {
		return true
	}
	return s.Timestamp.Sub(s.LastReading) > window
}
