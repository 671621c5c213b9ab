package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/internal/domain/reputation"
	"github.com/okian/rapport/pkg/logger"
	"github.com/okian/rapport/pkg/metrics"
)

// ComputeReputation derives the subject's reputation from one read of its
// event list. It never fails: when the events cannot be read it returns the
// zero snapshot with Available=false.
func (s *Service) ComputeReputation(ctx context.Context, subjectID string) model.ReputationSnapshot {
	if !s.running() {
		return s.idleCalculator().Unavailable(subjectID, s.now())
	}
	start := time.Now()
	events, err := s.events.Events(ctx, subjectID)
	now := s.now()
	if err != nil {
		s.logger.Warn(ctx, "reputation fallback: events unavailable",
			logger.String("subject_id", subjectID),
			logger.Error(err))
		metrics.RecordReputationFallback()
		return s.calc.Unavailable(subjectID, now)
	}
	snap := s.calc.Compute(subjectID, events, now)
	metrics.RecordReputationComputed(snap.Level, float64(time.Since(start).Microseconds())/1000)
	return snap
}

// idleCalculator is the configured calculator, or the default one before
// Start has built it.
func (s *Service) idleCalculator() *reputation.Calculator {
	s.mu.RLock()
	calc := s.calc
	s.mu.RUnlock()
	if calc != nil {
		return calc
	}
	calc, err := reputation.NewCalculator()
	if err != nil {
		panic(fmt.Sprintf("default reputation calculator: %v", err))
	}
	return calc
}

// ComputeReputations computes many subjects concurrently, bounded by the
// refresh concurrency. Results follow the order of ids.
func (s *Service) ComputeReputations(ctx context.Context, ids []string) []model.ReputationSnapshot {
	out := make([]model.ReputationSnapshot, len(ids))
	var g errgroup.Group
	g.SetLimit(s.refreshConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			out[i] = s.ComputeReputation(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RefreshSubject recomputes the subject's reputation and stores its standing.
func (s *Service) RefreshSubject(ctx context.Context, subjectID string) error {
	snap := s.ComputeReputation(ctx, subjectID)
	if !snap.Available {
		return fmt.Errorf("refresh %s: %w", subjectID, repository.ErrDataUnavailable)
	}
	if _, err := s.standings.Set(ctx, snap); err != nil {
		return fmt.Errorf("store standing of %s: %w", subjectID, err)
	}
	return nil
}

// RefreshAll recomputes every subject in the ledger. It returns how many
// standings were refreshed.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	if !s.running() {
		return 0, ErrNotStarted
	}
	return s.refreshAll(ctx)
}

func (s *Service) refreshAll(ctx context.Context) (int, error) {
	start := time.Now()
	var subjects []string
	err := s.events.Guard().Do(ctx, func(ctx context.Context) error {
		var err error
		subjects, err = s.ledger.Subjects(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list subjects: %w", err)
	}

	var (
		refreshed atomic.Int64
		failed    atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.refreshConcurrency)
	for _, id := range subjects {
		g.Go(func() error {
			if err := s.RefreshSubject(gctx, id); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failed.Add(1)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	err = g.Wait()
	metrics.RecordStandingsRefresh(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return int(refreshed.Load()), err
	}
	if n := failed.Load(); n > 0 {
		return int(refreshed.Load()), fmt.Errorf("%d of %d subjects: %w", n, len(subjects), repository.ErrDataUnavailable)
	}
	return int(refreshed.Load()), nil
}

func (s *Service) refreshJob() {
	ctx := s.runCtx
	n, err := s.refreshAll(ctx)
	if err != nil {
		s.logger.Warn(ctx, "scheduled standings refresh incomplete", logger.Int("refreshed", n), logger.Error(err))
		return
	}
	s.logger.Debug(ctx, "scheduled standings refresh", logger.Int("refreshed", n))
}

// TopStandings returns the n best-ranked subjects.
func (s *Service) TopStandings(ctx context.Context, n int) ([]repository.Entry, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.standings.TopN(ctx, n)
}

// Standing returns one subject's place in the standings.
func (s *Service) Standing(ctx context.Context, subjectID string) (repository.Entry, error) {
	if !s.running() {
		return repository.Entry{}, ErrNotStarted
	}
	return s.standings.Standing(ctx, subjectID)
}
