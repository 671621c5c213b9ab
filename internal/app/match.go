package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/matching"
	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/logger"
	"github.com/okian/rapport/pkg/metrics"
)

// customProfile names results scored with per-request weights.
const customProfile = "custom"

// MatchRequest asks for candidates for one requester. Either RequesterID or
// Requester must be set; an inline Requester wins.
type MatchRequest struct {
	RequesterID string
	Requester   *model.RequesterProfile
	Criteria    repository.CandidateCriteria
	// Profile picks a named weight profile. Empty means the default.
	Profile string
	// Weights overrides the profile for this request only.
	Weights map[model.Factor]float64
	// IncludeAll returns every evaluated candidate, disqualified ones
	// included, instead of the shortlist.
	IncludeAll bool
}

// MatchOutcome is the ranked answer to a MatchRequest.
type MatchOutcome struct {
	RequesterID string              `json:"requester_id"`
	Profile     string              `json:"profile"`
	Evaluated   int                 `json:"evaluated"`
	Shortlisted int                 `json:"shortlisted"`
	Results     []model.MatchResult `json:"results"`
}

// Match scores the candidate pool against the requester. An unreachable
// catalog yields an empty pool, not an error.
func (s *Service) Match(ctx context.Context, req MatchRequest) (MatchOutcome, error) {
	if !s.running() {
		return MatchOutcome{}, ErrNotStarted
	}
	start := time.Now()

	profile, weights, err := s.resolveWeights(req.Profile, req.Weights)
	if err != nil {
		return MatchOutcome{}, err
	}
	requester, err := s.requester(ctx, req.RequesterID, req.Requester)
	if err != nil {
		return MatchOutcome{}, err
	}

	pool, err := s.lookups.Candidates(ctx, req.Criteria)
	if err != nil {
		if !errors.Is(err, repository.ErrDataUnavailable) {
			return MatchOutcome{}, err
		}
		s.logger.Warn(ctx, "candidate pool unavailable; matching against an empty pool",
			logger.String("requester_id", requester.ID), logger.Error(err))
		pool = nil
	}
	if weights[model.FactorReputation] > 0 {
		s.fillReputation(ctx, pool)
	}

	all, err := s.matcher.Evaluate(requester, pool, weights)
	if err != nil {
		return MatchOutcome{}, err
	}
	shortlist := s.matcher.Shortlist(all)
	s.recordDisqualifications(pool, all)
	metrics.RecordMatch(profile, len(all), len(shortlist), float64(time.Since(start).Microseconds())/1000)

	out := MatchOutcome{
		RequesterID: requester.ID,
		Profile:     profile,
		Evaluated:   len(all),
		Shortlisted: len(shortlist),
		Results:     shortlist,
	}
	if req.IncludeAll {
		out.Results = all
	}
	return out, nil
}

func (s *Service) resolveWeights(profile string, explicit map[model.Factor]float64) (string, matching.Weights, error) {
	if len(explicit) > 0 {
		w := matching.Weights(explicit).Clone()
		if err := matching.ValidateWeights(w); err != nil {
			return "", nil, err
		}
		return customProfile, w, nil
	}
	if profile == "" {
		profile = s.defaultProfile
	}
	w, ok := s.profiles[profile]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	return profile, w, nil
}

func (s *Service) requester(ctx context.Context, id string, inline *model.RequesterProfile) (model.RequesterProfile, error) {
	if inline != nil {
		r := *inline
		if r.ID == "" {
			r.ID = id
		}
		return r, nil
	}
	if id == "" {
		return model.RequesterProfile{}, ErrNoRequester
	}
	return s.lookups.Requester(ctx, id)
}

// fillReputation replaces each candidate's reputation with the live score.
// Candidates whose events cannot be read keep what the catalog says.
func (s *Service) fillReputation(ctx context.Context, pool []model.CandidateProfile) {
	ids := make([]string, len(pool))
	for i, c := range pool {
		ids[i] = c.ID
	}
	for i, snap := range s.ComputeReputations(ctx, ids) {
		if snap.Available {
			pool[i].Attributes.ReputationScore = snap.Score
		}
	}
}

func (s *Service) recordDisqualifications(pool []model.CandidateProfile, results []model.MatchResult) {
	byID := make(map[string]model.CandidateProfile, len(pool))
	for _, c := range pool {
		byID[c.ID] = c
	}
	for _, r := range results {
		if !r.Disqualified {
			continue
		}
		reason := "no_capacity"
		if !byID[r.CandidateID].Attributes.IsActive {
			reason = "inactive"
		}
		metrics.RecordDisqualification(reason)
	}
}

// RankRequest asks for opportunities for one requester.
type RankRequest struct {
	RequesterID string
	Requester   *model.RequesterProfile
	Criteria    repository.OpportunityCriteria
	// Limit caps the result. Non-positive means the default; values above
	// the maximum are clamped.
	Limit int
}

// RankOpportunities gates the opportunity pool by the requester's live
// reputation and orders the rest by relevance. Unreachable collaborators
// yield an empty pool and zero reputation, never an error.
func (s *Service) RankOpportunities(ctx context.Context, req RankRequest) ([]model.RankedItem, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	start := time.Now()

	requester, err := s.requester(ctx, req.RequesterID, req.Requester)
	if err != nil {
		return nil, err
	}
	// anonymous inline requesters keep the score they were given
	if requester.ID != "" {
		requester.ReputationScore = s.ComputeReputation(ctx, requester.ID).Score
	}

	interests, err := s.lookups.Interests(ctx, requester.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrDataUnavailable) {
			return nil, err
		}
		s.logger.Warn(ctx, "interests unavailable; ranking without them",
			logger.String("requester_id", requester.ID), logger.Error(err))
		interests = nil
	}
	items, err := s.lookups.Opportunities(ctx, req.Criteria)
	if err != nil {
		if !errors.Is(err, repository.ErrDataUnavailable) {
			return nil, err
		}
		s.logger.Warn(ctx, "opportunity pool unavailable; ranking an empty pool",
			logger.String("requester_id", requester.ID), logger.Error(err))
		items = nil
	}

	limit := req.Limit
	if limit > s.maxOpportunities {
		limit = s.maxOpportunities
	}
	_, gated := s.ranker.Gate(requester, items)
	ranked := s.ranker.Rank(requester, interests, items, limit)
	metrics.RecordRanking(gated, len(ranked), float64(time.Since(start).Microseconds())/1000)
	return ranked, nil
}
