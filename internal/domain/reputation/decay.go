// Package reputation turns a subject's contribution events into a decaying,
// leveled reputation score.
//
// Everything here is a pure function of its inputs: no I/O, no shared state.
// Fetching events belongs to the caller.
package reputation

import (
	"fmt"
	"math"
	"time"
)

const (
	hoursPerDay  = 24
	daysPerYear  = 365
	defaultGrace = 90 * hoursPerDay * time.Hour
	defaultFloor = 0.5
)

// DecayConfig controls how event values shrink with age.
type DecayConfig struct {
	Enabled     bool
	GracePeriod time.Duration
	// FloorFactor is the smallest fraction of an event's value that survives,
	// however old the event is.
	FloorFactor float64
}

// DefaultDecayConfig returns decay enabled with a 90 day grace period and a 0.5 floor.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{Enabled: true, GracePeriod: defaultGrace, FloorFactor: defaultFloor}
}

// Validate rejects floors outside [0,1] and negative grace periods.
func (c DecayConfig) Validate() error {
	if math.IsNaN(c.FloorFactor) || c.FloorFactor < 0 || c.FloorFactor > 1 {
		return fmt.Errorf("%w: floor factor %v outside [0,1]", ErrInvalidConfiguration, c.FloorFactor)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("%w: negative grace period %s", ErrInvalidConfiguration, c.GracePeriod)
	}
	return nil
}

// Decay returns value adjusted for an event of the given age.
//
// Within the grace period the value is untouched. Past it the value loses
// 1/365 of itself per excess day, never dropping below FloorFactor of the
// original. Penalties (negative values) shrink toward zero by the same factor,
// so old violations soften exactly like old rewards fade.
func Decay(value float64, age time.Duration, cfg DecayConfig) float64 {
	if !cfg.Enabled || age <= cfg.GracePeriod {
		return value
	}
	excessDays := (age - cfg.GracePeriod).Hours() / hoursPerDay
	factor := math.Max(cfg.FloorFactor, 1-excessDays/daysPerYear)
	return value * factor
}
