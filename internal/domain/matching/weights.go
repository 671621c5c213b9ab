package matching

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/rapport/internal/domain/model"
)

// Weights maps a factor to its share of the overall score. By convention the
// weights sum to 1.0; this is not enforced.
type Weights map[model.Factor]float64

// DefaultWeights are tuned for the client to counselor case.
func DefaultWeights() Weights {
	return Weights{
		model.FactorSpecialization: 0.35,
		model.FactorCommunication:  0.30,
		model.FactorAvailability:   0.20,
		model.FactorLocation:       0.10,
		model.FactorCapacity:       0.05,
	}
}

// MentorWeights favour shared interests and recent activity when pairing a
// mentee with a mentor.
func MentorWeights() Weights {
	return Weights{
		model.FactorSpecialization: 0.30,
		model.FactorTags:           0.20,
		model.FactorCommunication:  0.15,
		model.FactorAvailability:   0.15,
		model.FactorRecency:        0.10,
		model.FactorReputation:     0.05,
		model.FactorCapacity:       0.05,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for f, v := range w {
		out[f] = v
	}
	return out
}

// Factors returns the weighted factors in a stable order.
func (w Weights) Factors() []model.Factor {
	out := make([]model.Factor, 0, len(w))
	for f := range w {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateWeights rejects empty maps, unknown factors and negative or
// non-finite weights.
func ValidateWeights(w Weights) error {
	if len(w) == 0 {
		return fmt.Errorf("%w: no weights", ErrInvalidWeights)
	}
	for _, f := range w.Factors() {
		v := w[f]
		if !KnownFactor(f) {
			return fmt.Errorf("%w: unknown factor %q", ErrInvalidWeights, f)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: factor %q has weight %v", ErrInvalidWeights, f, v)
		}
	}
	return nil
}
