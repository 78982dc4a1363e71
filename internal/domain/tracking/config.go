package tracking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Priority is the accuracy/power trade-off requested from the provider.
type Priority string

const (
	PriorityHighAccuracy Priority = "high-accuracy"
	PriorityBalanced     Priority = "balanced"
	PriorityLowPower     Priority = "low-power"
	PriorityPassive      Priority = "passive"
)

var (
	ErrInvalidPriority = errors.New("invalid accuracy priority")
	ErrInvalidConfig   = errors.New("invalid subscription config")
)

// ParsePriority normalizes (lowercases+trims) and validates a priority string.
// Underscores are accepted in place of dashes.
func ParsePriority(in string) (Priority, error) {
	p := Priority(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(in)), "_", "-"))
	if p.Valid() {
		return p, nil
	}
	return "", ErrInvalidPriority
}

// Valid reports whether the priority is one of the allowed constants.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHighAccuracy, PriorityBalanced, PriorityLowPower, PriorityPassive:
		return true
	default:
		return false
	}
}

// AccuracyMeters is the nominal accuracy radius of fixes obtained at this priority.
func (p Priority) AccuracyMeters() float64 {
	switch p {
	case PriorityHighAccuracy:
		return 5
	case PriorityBalanced:
		return 100
	case PriorityLowPower:
		return 3000
	default:
		return 0
	}
}

// String returns the string representation of the Priority.
func (p Priority) String() string {
	return string(p)
}

const (
	DefaultIntervalMillis        int64 = 10_000
	DefaultFastestIntervalMillis int64 = 5_000
)

// SubscriptionConfig is the immutable request shape of a location subscription.
type SubscriptionConfig struct {
	IntervalMillis        int64    `json:"interval_ms" validate:"gt=0"`
	FastestIntervalMillis int64    `json:"fastest_interval_ms" validate:"gt=0,ltefield=IntervalMillis"`
	Priority              Priority `json:"priority" validate:"oneof=high-accuracy balanced low-power passive"`
}

// DefaultSubscriptionConfig returns the externally observed defaults.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		IntervalMillis:        DefaultIntervalMillis,
		FastestIntervalMillis: DefaultFastestIntervalMillis,
		Priority:              PriorityHighAccuracy,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the interval relation and the priority.
func (cfg SubscriptionConfig) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			problems := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Interval returns the nominal sampling period.
func (cfg SubscriptionConfig) Interval() time.Duration {
	return time.Duration(cfg.IntervalMillis) * time.Millisecond
}

// FastestInterval returns the minimum accepted gap between two samples.
func (cfg SubscriptionConfig) FastestInterval() time.Duration {
	return time.Duration(cfg.FastestIntervalMillis) * time.Millisecond
}
