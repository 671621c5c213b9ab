package guard

import (
	"context"

	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/model"
)

// Ledger guards a LedgerReader.
type Ledger struct {
	next  repository.LedgerReader
	guard *Guard
}

var _ repository.LedgerReader = (*Ledger)(nil)

// NewLedger wraps next with a guard named "ledger".
func NewLedger(next repository.LedgerReader, opts ...Option) *Ledger {
	return &Ledger{next: next, guard: New("ledger", opts...)}
}

// Guard exposes the underlying guard.
func (l *Ledger) Guard() *Guard { return l.guard }

func (l *Ledger) Events(ctx context.Context, subjectID string) ([]model.ContributionEvent, error) {
	return call(ctx, l.guard, func(ctx context.Context) ([]model.ContributionEvent, error) {
		return l.next.Events(ctx, subjectID)
	})
}

// Catalog guards a CatalogReader.
type Catalog struct {
	next  repository.CatalogReader
	guard *Guard
}

var _ repository.CatalogReader = (*Catalog)(nil)

// NewCatalog wraps next with a guard named "catalog".
func NewCatalog(next repository.CatalogReader, opts ...Option) *Catalog {
	return &Catalog{next: next, guard: New("catalog", opts...)}
}

// Guard exposes the underlying guard.
func (c *Catalog) Guard() *Guard { return c.guard }

func (c *Catalog) Requester(ctx context.Context, id string) (model.RequesterProfile, error) {
	return call(ctx, c.guard, func(ctx context.Context) (model.RequesterProfile, error) {
		return c.next.Requester(ctx, id)
	})
}

func (c *Catalog) Candidates(ctx context.Context, cr repository.CandidateCriteria) ([]model.CandidateProfile, error) {
	return call(ctx, c.guard, func(ctx context.Context) ([]model.CandidateProfile, error) {
		return c.next.Candidates(ctx, cr)
	})
}

func (c *Catalog) Opportunities(ctx context.Context, cr repository.OpportunityCriteria) ([]model.RankableItem, error) {
	return call(ctx, c.guard, func(ctx context.Context) ([]model.RankableItem, error) {
		return c.next.Opportunities(ctx, cr)
	})
}

func (c *Catalog) Interests(ctx context.Context, userID string) ([]model.InterestRecord, error) {
	return call(ctx, c.guard, func(ctx context.Context) ([]model.InterestRecord, error) {
		return c.next.Interests(ctx, userID)
	})
}
