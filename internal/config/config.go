// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// MQTTConfig configures the optional broker-based reading source.
type MQTTConfig struct {
	// Enabled turns the MQTT adapter on. Off by default; the HTTP API
	// is always available.
	Enabled bool `koanf:"enabled"`

	// Broker is the MQTT broker URL, e.g. "tcp://localhost:1883".
	Broker string `koanf:"broker"`

	// ClientID identifies this engine instance to the broker.
	ClientID string `koanf:"client_id"`

	// ReadingTopic is the subscription filter for incoming readings.
	ReadingTopic string `koanf:"reading_topic"`

	// DeviceTopic is the subscription filter for connectivity events.
	DeviceTopic string `koanf:"device_topic"`

	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// QoS for both subscriptions (0, 1, or 2).
	QoS int `koanf:"qos"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CadenceMS is the timer-driven derivation interval.
	CadenceMS int `koanf:"cadence_ms"`

	// HistoryCapacity bounds the state history ring.
	HistoryCapacity int `koanf:"history_capacity"`

	// SmoothingFactor is the EWMA weight on the newest stress sample (0-1].
	SmoothingFactor float64 `koanf:"smoothing_factor"`

	// MaxStepPerCycle bounds per-cycle stress index movement.
	MaxStepPerCycle float64 `koanf:"max_step_per_cycle"`

	// TrendWindow is how many recent states feed trend comparison.
	TrendWindow int `koanf:"trend_window"`

	// TrendDeadZone is the |delta| below which trends read as stable.
	TrendDeadZone float64 `koanf:"trend_dead_zone"`

	// StaleAfterMS marks underlying data stale when no reading arrives
	// within this window.
	StaleAfterMS int `koanf:"stale_after_ms"`

	// AutoStart starts the engine as soon as the service starts.
	AutoStart bool `koanf:"auto_start"`

	// QueueSize bounds the in-memory reading queue.
	QueueSize int `koanf:"queue_size"`

	// SubscriberBuffer is the default per-subscription notification buffer.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// WellnessWeights maps composite components (inverse_stress, hrv,
	// sleep) to their weights.
	WellnessWeights map[string]float64 `koanf:"wellness_weights"`

	// MQTT configures the optional broker-based reading source.
	MQTT MQTTConfig `koanf:"mqtt"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		CadenceMS:        1000,
		HistoryCapacity:  500,
		SmoothingFactor:  0.3,
		MaxStepPerCycle:  15,
		TrendWindow:      5,
		TrendDeadZone:    2.0,
		StaleAfterMS:     120_000,
		AutoStart:        true,
		QueueSize:        1024,
		SubscriberBuffer: 16,
		WellnessWeights: map[string]float64{
			"inverse_stress": 0.5,
			"hrv":            0.3,
			"sleep":          0.2,
		},
		MQTT: MQTTConfig{
			Enabled:      false,
			Broker:       "tcp://localhost:1883",
			ClientID:     "vita-engine",
			ReadingTopic: "vita/readings/#",
			DeviceTopic:  "vita/devices/#",
			QoS:          1,
		},
	}
}
