// Package simulate drives a running wellness service with synthetic
// wearable traffic. It registers fake devices, streams plausible
// biometric readings through the HTTP API and periodically samples the
// derived state.
package simulate

import "time"

// Default simulation parameters.
const (
	DefaultDevices  = 3
	DefaultInterval = 200 * time.Millisecond
	DefaultDuration = 30 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Config controls a simulation run.
type Config struct {
	// BaseURL of the service under load, e.g. http://localhost:9080.
	BaseURL string

	// Devices is how many synthetic wearables to register.
	Devices int

	// Interval between readings per device.
	Interval time.Duration

	// Duration bounds the whole run.
	Duration time.Duration

	// Timeout applies to individual HTTP requests.
	Timeout time.Duration

	// StressAt, when positive, injects a high-stress episode this far
	// into the run on one device.
	StressAt time.Duration

	// Verbose prints each derived state sample.
	Verbose bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:9080"
	}
	if c.Devices <= 0 {
		c.Devices = DefaultDevices
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}
