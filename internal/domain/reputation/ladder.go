package reputation

import (
	"fmt"
	"math"
	"sort"
)

// Ladder is an ascending list of score thresholds; the index is the level.
type Ladder []float64

// DefaultLadder is Fibonacci-derived.
func DefaultLadder() Ladder {
	return Ladder{0, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610}
}

// Validate checks that the ladder starts at zero and strictly increases.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: empty level ladder", ErrInvalidConfiguration)
	}
	if l[0] != 0 {
		return fmt.Errorf("%w: level ladder must start at 0, got %v", ErrInvalidConfiguration, l[0])
	}
	for i, v := range l {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: level ladder entry %d is not finite", ErrInvalidConfiguration, i)
		}
		if i > 0 && v <= l[i-1] {
			return fmt.Errorf("%w: level ladder not strictly increasing at %d (%v <= %v)", ErrInvalidConfiguration, i, v, l[i-1])
		}
	}
	return nil
}

// Level returns the greatest level whose threshold is <= score, and the
// threshold of the level after it. At the top of the ladder the next
// threshold saturates at the last value.
func (l Ladder) Level(score float64) (level int, next float64) {
	// first index whose threshold exceeds score
	i := sort.Search(len(l), func(i int) bool { return l[i] > score })
	level = i - 1
	if level < 0 {
		level = 0
	}
	if level+1 < len(l) {
		return level, l[level+1]
	}
	return level, l[len(l)-1]
}

// RankLabels are human-readable names indexed by level.
type RankLabels []string

// DefaultRankLabels has fewer entries than DefaultLadder on purpose; levels
// past the end share the last label.
func DefaultRankLabels() RankLabels {
	return RankLabels{
		"Newcomer", "Explorer", "Contributor", "Collaborator", "Builder",
		"Achiever", "Mentor", "Champion", "Luminary", "Legend",
	}
}

// Validate requires at least one non-empty label.
func (r RankLabels) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("%w: no rank labels", ErrInvalidConfiguration)
	}
	for i, s := range r {
		if s == "" {
			return fmt.Errorf("%w: rank label %d is empty", ErrInvalidConfiguration, i)
		}
	}
	return nil
}

// Label returns the label for level, clamped to the last label.
func (r RankLabels) Label(level int) string {
	switch {
	case len(r) == 0:
		return ""
	case level < 0:
		return r[0]
	case level >= len(r):
		return r[len(r)-1]
	default:
		return r[level]
	}
}
