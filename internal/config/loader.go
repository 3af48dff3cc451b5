package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if VITA_CONFIG is set
//  3. env (prefix VITA_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("VITA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: VITA_ADDR, VITA_CADENCE_MS, ...
	// Flat keys keep their underscores to match the koanf tags
	// (VITA_CADENCE_MS -> cadence_ms). Nested blocks translate their
	// prefix underscore into the koanf delimiter so the env can reach
	// them too (VITA_MQTT_CLIENT_ID -> mqtt.client_id).
	envProvider := env.Provider("VITA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "vita_")
		for _, prefix := range []string{"mqtt", "wellness_weights"} {
			if strings.HasPrefix(s, prefix+"_") {
				return prefix + "." + strings.TrimPrefix(s, prefix+"_")
			}
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the engine cannot run with.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CadenceMS <= 0:
		return fmt.Errorf("%w: cadence_ms must be positive", ErrInvalidConfig)
	case c.HistoryCapacity <= 0:
		return fmt.Errorf("%w: history_capacity must be positive", ErrInvalidConfig)
	case c.SmoothingFactor <= 0 || c.SmoothingFactor > 1:
		return fmt.Errorf("%w: smoothing_factor must be in (0, 1]", ErrInvalidConfig)
	case c.MaxStepPerCycle <= 0:
		return fmt.Errorf("%w: max_step_per_cycle must be positive", ErrInvalidConfig)
	case c.TrendWindow <= 0:
		return fmt.Errorf("%w: trend_window must be positive", ErrInvalidConfig)
	case c.TrendDeadZone <= 0:
		return fmt.Errorf("%w: trend_dead_zone must be positive", ErrInvalidConfig)
	case c.StaleAfterMS <= 0:
		return fmt.Errorf("%w: stale_after_ms must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("%w: mqtt.broker must not be empty when mqtt is enabled", ErrInvalidConfig)
	}
	return nil
}
