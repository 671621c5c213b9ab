package reputation

import (
	"errors"
	"math"
	"time"

	"github.com/okian/rapport/internal/domain/model"
)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithLadder sets the level threshold ladder.
func WithLadder(l Ladder) Option {
	return func(c *Calculator) {
		if l != nil {
			c.ladder = append(Ladder(nil), l...)
		}
	}
}

// WithRankLabels sets the rank label list.
func WithRankLabels(labels RankLabels) Option {
	return func(c *Calculator) {
		if labels != nil {
			c.labels = append(RankLabels(nil), labels...)
		}
	}
}

// WithDecay sets the decay configuration.
func WithDecay(cfg DecayConfig) Option {
	return func(c *Calculator) {
		c.decay = cfg
	}
}

// Calculator computes reputation snapshots. It is immutable after
// construction and safe for concurrent use.
type Calculator struct {
	ladder Ladder
	labels RankLabels
	decay  DecayConfig
}

// NewCalculator builds a Calculator and validates its configuration.
func NewCalculator(opts ...Option) (*Calculator, error) {
	c := &Calculator{
		ladder: DefaultLadder(),
		labels: DefaultRankLabels(),
		decay:  DefaultDecayConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := errors.Join(c.ladder.Validate(), c.labels.Validate(), c.decay.Validate()); err != nil {
		return nil, err
	}
	return c, nil
}

// Ladder returns a copy of the configured ladder.
func (c *Calculator) Ladder() Ladder { return append(Ladder(nil), c.ladder...) }

// RankLabels returns a copy of the configured labels.
func (c *Calculator) RankLabels() RankLabels { return append(RankLabels(nil), c.labels...) }

// Aggregate sums the decayed values of events as of now.
func Aggregate(events []model.ContributionEvent, now time.Time, cfg DecayConfig) float64 {
	var raw float64
	for _, e := range events {
		raw += Decay(float64(e.Value), e.Age(now), cfg)
	}
	return raw
}

// Compute derives the subject's snapshot from its events as of now.
// The same events and now always yield the same snapshot.
func (c *Calculator) Compute(subjectID string, events []model.ContributionEvent, now time.Time) model.ReputationSnapshot {
	score := math.Max(0, math.Round(Aggregate(events, now, c.decay)))
	snap := c.snapshot(subjectID, score, now)
	snap.Available = true
	return snap
}

// Unavailable is the default snapshot returned when the subject's events
// could not be read: zero score, first level, Available=false.
func (c *Calculator) Unavailable(subjectID string, now time.Time) model.ReputationSnapshot {
	return c.snapshot(subjectID, 0, now)
}

func (c *Calculator) snapshot(subjectID string, score float64, now time.Time) model.ReputationSnapshot {
	level, next := c.ladder.Level(score)
	return model.ReputationSnapshot{
		SubjectID:          subjectID,
		Score:              score,
		Level:              level,
		Rank:               c.labels.Label(level),
		ComputedAt:         now,
		NextLevelThreshold: next,
	}
}
