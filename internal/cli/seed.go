package cli

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/model"
)

var _ repository.CatalogWriter = (*Client)(nil)

// Submission counts the outcome of submitting events.
type Submission struct {
	Accepted  int64 `json:"accepted"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// SeedCatalog uploads every entity of seed with at most workers requests in
// flight. The first failure stops the upload.
func SeedCatalog(ctx context.Context, w repository.CatalogWriter, seed repository.CatalogSeed, workers int) (repository.CatalogCounts, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, r := range seed.Requesters {
		g.Go(func() error { return w.PutRequester(gctx, r) })
	}
	for _, c := range seed.Candidates {
		g.Go(func() error { return w.PutCandidate(gctx, c) })
	}
	for _, it := range seed.Opportunities {
		g.Go(func() error { return w.PutOpportunity(gctx, it) })
	}
	byUser := map[string][]model.InterestRecord{}
	var users []string
	for _, in := range seed.Interests {
		if _, ok := byUser[in.UserID]; !ok {
			users = append(users, in.UserID)
		}
		byUser[in.UserID] = append(byUser[in.UserID], in)
	}
	for _, user := range users {
		g.Go(func() error { return w.PutInterests(gctx, user, byUser[user]) })
	}
	if err := g.Wait(); err != nil {
		return repository.CatalogCounts{}, fmt.Errorf("seed catalog: %w", err)
	}
	return repository.CatalogCounts{
		Requesters:    len(seed.Requesters),
		Candidates:    len(seed.Candidates),
		Opportunities: len(seed.Opportunities),
		Interests:     len(users),
	}, nil
}

// EventPoster submits one event.
type EventPoster interface {
	PostEvent(ctx context.Context, ev Event) (Ack, error)
}

// SubmitEvents posts events with at most workers requests in flight. A
// rejected event is counted, not fatal. Only cancellation stops the run.
func SubmitEvents(ctx context.Context, p EventPoster, events []Event, workers int) (Submission, error) {
	var accepted, duplicate, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, ev := range events {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ack, err := p.PostEvent(gctx, ev)
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			case err != nil:
				failed.Add(1)
			case ack.Duplicate:
				duplicate.Add(1)
			default:
				accepted.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	return Submission{
		Accepted:  accepted.Load(),
		Duplicate: duplicate.Load(),
		Failed:    failed.Load(),
	}, err
}
