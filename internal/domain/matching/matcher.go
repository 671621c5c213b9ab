package matching

import (
	"math"
	"sort"
	"time"

	"github.com/okian/rapport/internal/domain/model"
)

// Matcher defaults and bonuses.
const (
	defaultMinScore = 30.0

	qualityBonus          = 5.0
	qualityBonusThreshold = 4.5
	experienceBonus       = 3.0
	experienceBonusYears  = 5
)

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithWeights sets the weights used when a call passes none.
func WithWeights(w Weights) Option {
	return func(m *Matcher) {
		if len(w) > 0 {
			m.weights = w.Clone()
		}
	}
}

// WithMinScore sets the score a result must exceed to be shortlisted.
func WithMinScore(score float64) Option {
	return func(m *Matcher) {
		if score >= 0 && score <= maxScore {
			m.minScore = score
		}
	}
}

// WithClock sets the time source for time-dependent factors.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// Matcher blends factor scores into one overall score per candidate. It holds
// no mutable state and is safe for concurrent use.
type Matcher struct {
	weights  Weights
	minScore float64
	now      func() time.Time
}

// NewMatcher creates a Matcher with the default counselor weights and a
// shortlist threshold of 30.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		weights:  DefaultWeights(),
		minScore: defaultMinScore,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Weights returns a copy of the default weights.
func (m *Matcher) Weights() Weights { return m.weights.Clone() }

// MinScore returns the shortlist threshold.
func (m *Matcher) MinScore() float64 { return m.minScore }

// Evaluate scores every candidate, disqualified ones included, and returns
// them in ranked order. A nil weights map uses the matcher's defaults.
func (m *Matcher) Evaluate(req model.RequesterProfile, cands []model.CandidateProfile, w Weights) ([]model.MatchResult, error) {
	if w == nil {
		w = m.weights
	}
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	scorers := Scorers(m.now())
	out := make([]model.MatchResult, 0, len(cands))
	for _, c := range cands {
		out = append(out, m.score(req, c, w, scorers))
	}
	SortResults(out)
	return out, nil
}

// Match returns the shortlist: results scoring above the threshold, ranked.
// An empty list is a valid outcome.
func (m *Matcher) Match(req model.RequesterProfile, cands []model.CandidateProfile, w Weights) ([]model.MatchResult, error) {
	all, err := m.Evaluate(req, cands, w)
	if err != nil {
		return nil, err
	}
	return m.Shortlist(all), nil
}

// Shortlist keeps results above the threshold, preserving order.
func (m *Matcher) Shortlist(results []model.MatchResult) []model.MatchResult {
	out := make([]model.MatchResult, 0, len(results))
	for _, r := range results {
		if !r.Disqualified && r.OverallScore > m.minScore {
			out = append(out, r)
		}
	}
	return out
}

// SortResults orders by overall score descending, then capacity score
// descending, then candidate id ascending.
func SortResults(results []model.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		ca, cb := a.PerFactorScores[model.FactorCapacity], b.PerFactorScores[model.FactorCapacity]
		if ca != cb {
			return ca > cb
		}
		return a.CandidateID < b.CandidateID
	})
}

func (m *Matcher) score(req model.RequesterProfile, c model.CandidateProfile, w Weights, scorers map[model.Factor]Scorer) model.MatchResult {
	res := model.MatchResult{
		CandidateID:     c.ID,
		PerFactorScores: map[model.Factor]float64{},
	}
	if reason := disqualification(c); reason != "" {
		res.Disqualified = true
		res.Explanation = model.Explanation{
			MatchingAttributes: []string{},
			Strengths:          []string{},
			Considerations:     []string{reason},
		}
		return res
	}

	// capacity is always scored for tie-breaking
	res.PerFactorScores[model.FactorCapacity] = scorers[model.FactorCapacity](req, c)
	var base float64
	for _, f := range w.Factors() {
		s, ok := res.PerFactorScores[f]
		if !ok {
			s = scorers[f](req, c)
			res.PerFactorScores[f] = s
		}
		base += w[f] * s
	}

	overall := math.Round(base)
	if c.Attributes.QualityRating >= qualityBonusThreshold {
		overall += qualityBonus
	}
	if c.Attributes.YearsExperience >= experienceBonusYears {
		overall += experienceBonus
	}
	res.OverallScore = clamp(overall)
	res.Explanation = explain(req, c, res.PerFactorScores)
	return res
}

func disqualification(c model.CandidateProfile) string {
	switch {
	case !c.Attributes.IsActive:
		return "candidate is not active"
	case c.Attributes.Capacity.Full():
		return "candidate has no remaining capacity"
	}
	return ""
}
