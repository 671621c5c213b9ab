// Package matching scores how well candidates fit a requester and orders the
// result.
//
// Every factor scorer is a pure function returning a value in [0,100]. The
// Matcher blends them with a weight map, so a new factor is a new Scorer and a
// new key in the weights.
package matching

import (
	"math"
	"strings"
	"time"

	"github.com/okian/rapport/internal/domain/model"
)

// Factor scoring constants.
const (
	maxScore     = 100.0
	neutralScore = 50.0

	primaryMatchPoints   = 70.0
	secondaryMatchPoints = 10.0

	missingModePenalty = 10.0

	highUrgencyBoost = 1.2

	partialLocationScore = 40.0

	recencyFresh = 7 * 24 * time.Hour
	recencyStale = 90 * 24 * time.Hour
)

// Scorer computes one factor for a requester and candidate pair.
type Scorer func(req model.RequesterProfile, cand model.CandidateProfile) float64

// Scorers returns the scorer for every known factor. now anchors the
// recency factor.
func Scorers(now time.Time) map[model.Factor]Scorer {
	return map[model.Factor]Scorer{
		model.FactorSpecialization: Specialization,
		model.FactorCommunication:  Communication,
		model.FactorAvailability:   AvailabilityOverlap,
		model.FactorLocation:       Location,
		model.FactorCapacity:       CapacityHeadroom,
		model.FactorTags:           TagOverlap,
		model.FactorRecency:        Recency(now),
		model.FactorReputation:     Reputation,
	}
}

// KnownFactor reports whether f has a scorer.
func KnownFactor(f model.Factor) bool {
	switch f {
	case model.FactorSpecialization, model.FactorCommunication, model.FactorAvailability,
		model.FactorLocation, model.FactorCapacity, model.FactorTags,
		model.FactorRecency, model.FactorReputation:
		return true
	}
	return false
}

// Specialization gives 70 when the primary need is among the candidate's
// specializations and 10 for every matched secondary need, capped at 100.
// A requester with no needs at all scores neutral.
func Specialization(req model.RequesterProfile, cand model.CandidateProfile) float64 {
	d := req.Desired
	if strings.TrimSpace(d.PrimaryNeed) == "" && len(d.SecondaryNeeds) == 0 {
		return neutralScore
	}
	have := newSet(cand.Attributes.Specializations)
	var score float64
	if have.has(d.PrimaryNeed) {
		score = primaryMatchPoints
	}
	for _, need := range d.SecondaryNeeds {
		if have.has(need) {
			score += secondaryMatchPoints
		}
	}
	return clamp(score)
}

// Communication scores language and mode compatibility.
//
// A required mode the candidate lacks is a near-disqualifier and scores
// exactly 10, whatever the language overlap. A present mode scores by the
// candidate's proficiency tier. Without a required mode the score is the
// share of preferred languages the candidate speaks.
func Communication(req model.RequesterProfile, cand model.CandidateProfile) float64 {
	d := req.Desired
	if mode := strings.TrimSpace(d.RequiredMode); mode != "" {
		if !newSet(cand.Attributes.CommunicationModes).has(mode) {
			return missingModePenalty
		}
		return proficiencyScore(cand.Attributes.Proficiency)
	}
	if len(d.Languages) == 0 {
		return neutralScore
	}
	return clamp(ratio(countMatches(d.Languages, cand.Attributes.Languages), len(d.Languages)) * maxScore)
}

func proficiencyScore(p model.Proficiency) float64 {
	switch p {
	case model.ProficiencyConversational:
		return 60
	case model.ProficiencyFluent:
		return 85
	case model.ProficiencyNative:
		return 100
	default:
		return 30
	}
}

// AvailabilityOverlap is the share of requested days on which the candidate
// has an open slot in common with the requester. A requested day with no
// slots listed overlaps with any open slot on that day. High urgency boosts
// any overlap by 20%.
func AvailabilityOverlap(req model.RequesterProfile, cand model.CandidateProfile) float64 {
	want := req.Desired.Availability
	if len(want) == 0 {
		return neutralScore
	}
	have := make(map[string][]string, len(cand.Attributes.Availability))
	for day, slots := range cand.Attributes.Availability {
		have[normalize(day)] = slots
	}
	overlap := 0
	for day, slots := range want {
		open := have[normalize(day)]
		if len(open) == 0 {
			continue
		}
		if len(slots) == 0 || countMatches(slots, open) > 0 {
			overlap++
		}
	}
	score := ratio(overlap, len(want)) * maxScore
	if req.Urgency == model.UrgencyHigh && overlap > 0 {
		score *= highUrgencyBoost
	}
	return clamp(score)
}

// Location is 100 on an exact (case-insensitive) match and a flat 40
// otherwise. There is no distance weighting. Either side missing is neutral.
func Location(req model.RequesterProfile, cand model.CandidateProfile) float64 {
	want, have := normalize(req.Desired.Location), normalize(cand.Attributes.Location)
	switch {
	case want == "" || have == "":
		return neutralScore
	case want == have:
		return maxScore
	default:
		return partialLocationScore
	}
}

// CapacityHeadroom is the free share of the candidate's capacity.
func CapacityHeadroom(_ model.RequesterProfile, cand model.CandidateProfile) float64 {
	c := cand.Attributes.Capacity
	if c.Max <= 0 {
		return 0
	}
	return clamp(float64(c.Max-c.Current) / float64(c.Max) * maxScore)
}

// TagOverlap is the share of desired tags carried by the candidate.
func TagOverlap(req model.RequesterProfile, cand model.CandidateProfile) float64 {
	want := req.Desired.Tags
	if len(want) == 0 {
		return neutralScore
	}
	return clamp(ratio(countMatches(want, cand.Attributes.Tags), len(want)) * maxScore)
}

// Recency scores 100 for candidates active within a week, falling linearly
// to 0 at 90 days. Unknown activity is neutral.
func Recency(now time.Time) Scorer {
	return func(_ model.RequesterProfile, cand model.CandidateProfile) float64 {
		last := cand.Attributes.LastActiveAt
		if last.IsZero() {
			return neutralScore
		}
		idle := now.Sub(last)
		if idle <= recencyFresh {
			return maxScore
		}
		if idle >= recencyStale {
			return 0
		}
		return clamp(float64(recencyStale-idle) / float64(recencyStale-recencyFresh) * maxScore)
	}
}

// Reputation uses the candidate's reputation score directly.
func Reputation(_ model.RequesterProfile, cand model.CandidateProfile) float64 {
	return clamp(cand.Attributes.ReputationScore)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(maxScore, v))
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type set map[string]struct{}

func newSet(items []string) set {
	s := make(set, len(items))
	for _, it := range items {
		if n := normalize(it); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s set) has(item string) bool {
	n := normalize(item)
	if n == "" {
		return false
	}
	_, ok := s[n]
	return ok
}

// countMatches counts distinct entries of want present in have.
func countMatches(want, have []string) int {
	h := newSet(have)
	seen := make(set, len(want))
	n := 0
	for _, w := range want {
		k := normalize(w)
		if _, dup := seen[k]; dup || !h.has(k) {
			continue
		}
		seen[k] = struct{}{}
		n++
	}
	return n
}
