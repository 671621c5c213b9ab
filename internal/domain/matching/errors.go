package matching

import "errors"

// Sentinel kinds for matching errors.
var (
	// ErrInvalidWeights marks a weight map with unknown factors or negative,
	// non-finite weights.
	ErrInvalidWeights = errors.New("invalid match weights")
)
