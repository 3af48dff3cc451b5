// Package model contains domain models passed between layers.
package model

import "time"

// Accepted value domains for raw samples. Readings outside these ranges
// are rejected by the stream before they reach the engine.
const (
	MinHeartRate = 30.0
	MaxHeartRate = 220.0
	MinScale     = 0.0
	MaxScale     = 100.0
)

// BiometricReading represents one raw sample from a device.
// Optional channels are pointers; a nil field means the device did not
// report that channel in this sample.
type BiometricReading struct {
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	HeartRate    *float64  `json:"heart_rate,omitempty"`    // beats/min, 30-220
	HRV          *float64  `json:"hrv,omitempty"`           // normalized 0-100
	StressRaw    *float64  `json:"stress,omitempty"`        // 0-100
	SleepQuality *float64  `json:"sleep_quality,omitempty"` // 0-100
}

// Device describes a reading source tracked by the connectivity set.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Connected bool   `json:"is_connected"`
}

// Float returns a pointer to v. Convenience for building readings.
func Float(v float64) *float64 {
	return &v
}
