// Package trigger holds intervention rules and evaluates them against
// derived biometric state in priority order.
package trigger

import (
	"fmt"
	"time"

	"github.com/okian/vita/internal/domain/model"
)

// Condition is a predicate over derived state. Conditions may keep
// internal state (e.g. consecutive-cycle counters); the registry calls
// each trigger's condition at most once per derivation cycle.
type Condition func(s model.BiometricsState) bool

// Trigger is one intervention rule. Higher Priority is evaluated first;
// the first firing trigger decides the intervention level for the cycle.
type Trigger struct {
	ID        string                  `json:"id"`
	Priority  int                     `json:"priority"`
	Enabled   bool                    `json:"enabled"`
	Cooldown  time.Duration           `json:"cooldown"`
	Level     model.InterventionLevel `json:"level"`
	Rule      *Rule                   `json:"rule,omitempty"`
	Condition Condition               `json:"-"`
}

// Update carries a partial trigger mutation. Nil fields keep the
// existing value.
type Update struct {
	Priority  *int
	Enabled   *bool
	Cooldown  *time.Duration
	Level     *model.InterventionLevel
	Rule      *Rule
	Condition Condition
}

// Metric names a derived value a declarative rule can inspect.
type Metric string

// Rule metrics.
const (
	MetricStressIndex   Metric = "stress_index"
	MetricWellnessScore Metric = "wellness_score"
	MetricHeartRate     Metric = "heart_rate"
)

// Op is a threshold comparison operator.
type Op string

// Rule operators.
const (
	OpGreater      Op = "gt"
	OpGreaterEqual Op = "ge"
	OpLess         Op = "lt"
	OpLessEqual    Op = "le"
)

// Rule is the declarative condition form used by external callers that
// cannot hand the engine a function (e.g. the HTTP API). MinStreak > 1
// requires the comparison to hold for that many consecutive states.
type Rule struct {
	Metric    Metric  `json:"metric"`
	Op        Op      `json:"op"`
	Threshold float64 `json:"threshold"`
	MinStreak int     `json:"min_streak,omitempty"`
}

// Validate checks rule fields against the known vocabulary.
func (r Rule) Validate() error {
	switch r.Metric {
	case MetricStressIndex, MetricWellnessScore, MetricHeartRate:
	default:
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidRule, r.Metric)
	}
	switch r.Op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidRule, r.Op)
	}
	if r.MinStreak < 0 {
		return fmt.Errorf("%w: min_streak must not be negative", ErrInvalidRule)
	}
	return nil
}

// Compile turns a declarative rule into a Condition. The returned
// closure owns the streak counter, so each compiled condition belongs
// to exactly one trigger.
func Compile(r Rule) (Condition, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	streak := 0
	need := r.MinStreak
	if need < 1 {
		need = 1
	}

	return func(s model.BiometricsState) bool {
		value, ok := metricValue(r.Metric, s)
		if !ok || !compare(r.Op, value, r.Threshold) {
			streak = 0
			return false
		}
		streak++
		return streak >= need
	}, nil
}

func metricValue(m Metric, s model.BiometricsState) (float64, bool) {
	switch m {
	case MetricStressIndex:
		return s.StressIndex, true
	case MetricWellnessScore:
		return s.WellnessScore, true
	case MetricHeartRate:
		if s.HeartRate == nil {
			return 0, false
		}
		return *s.HeartRate, true
	default:
		return 0, false
	}
}

func compare(op Op, value, threshold float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLess:
		return value < threshold
	case OpLessEqual:
		return value <= threshold
	default:
		return false
	}
}
