package service

import (
	"context"
	"fmt"

	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/logger"
	"github.com/okian/rapport/pkg/metrics"
)

// Enqueue validates ev and hands it to the ingestion workers. A zero value
// takes the configured points for its kind and a zero time means now.
// It reports duplicate=true, with no error, for an event id the intake has
// already accepted.
func (s *Service) Enqueue(ctx context.Context, ev model.ContributionEvent) (duplicate bool, err error) {
	if !s.running() {
		return false, ErrNotStarted
	}
	ev = s.normalize(ev)
	if err := repository.ValidateEvent(ev); err != nil {
		metrics.RecordEventRejected("invalid")
		return false, err
	}

	if s.deduper.SeenAndRecord(ctx, ev.EventID) {
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate event detected, skipping",
			logger.String("event_id", ev.EventID),
			logger.String("subject_id", ev.SubjectID))
		return true, nil
	}
	if err := s.eventQueue.Enqueue(ctx, ev); err != nil {
		// let a retry of the same id through
		s.deduper.Unrecord(ctx, ev.EventID)
		metrics.RecordEventRejected("queue")
		return false, fmt.Errorf("enqueue %s: %w", ev.EventID, err)
	}
	return false, nil
}

func (s *Service) normalize(ev model.ContributionEvent) model.ContributionEvent {
	if ev.Value == 0 {
		if pts, ok := s.eventPoints[ev.Kind]; ok {
			ev.Value = pts
		}
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	return ev
}

// PutRequester upserts a requester profile.
func (s *Service) PutRequester(ctx context.Context, r model.RequesterProfile) error {
	if !s.running() {
		return ErrNotStarted
	}
	return s.catalog.PutRequester(ctx, r)
}

// PutCandidate upserts a candidate profile.
func (s *Service) PutCandidate(ctx context.Context, c model.CandidateProfile) error {
	if !s.running() {
		return ErrNotStarted
	}
	return s.catalog.PutCandidate(ctx, c)
}

// PutOpportunity upserts an opportunity.
func (s *Service) PutOpportunity(ctx context.Context, it model.RankableItem) error {
	if !s.running() {
		return ErrNotStarted
	}
	return s.catalog.PutOpportunity(ctx, it)
}

// PutInterests replaces a user's declared interests.
func (s *Service) PutInterests(ctx context.Context, userID string, records []model.InterestRecord) error {
	if !s.running() {
		return ErrNotStarted
	}
	return s.catalog.PutInterests(ctx, userID, records)
}
