// Package repository holds the collaborator boundary of the engine: the
// event ledger, the catalog of profiles and opportunities, and the standings.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/metrics"
)

// LedgerReader reads a subject's contribution events. Implementations return
// one consistent view of the subject's list per call.
type LedgerReader interface {
	Events(ctx context.Context, subjectID string) ([]model.ContributionEvent, error)
}

// Ledger is the read-write event store used by the ingestion pipeline.
type Ledger interface {
	LedgerReader
	// Append stores ev. Appending an event id that is already stored is a
	// no-op and reports false.
	Append(ctx context.Context, ev model.ContributionEvent) (bool, error)
	// Subjects lists every subject with at least one event.
	Subjects(ctx context.Context) ([]string, error)
	Close() error
}

// ValidateEvent checks the fields a ledger needs.
func ValidateEvent(ev model.ContributionEvent) error {
	switch {
	case strings.TrimSpace(ev.EventID) == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	case strings.TrimSpace(ev.SubjectID) == "":
		return fmt.Errorf("%w: missing subject id", ErrInvalidEvent)
	case strings.TrimSpace(string(ev.Kind)) == "":
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	case ev.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	return nil
}

// MemoryLedger keeps events in process memory.
type MemoryLedger struct {
	mu        sync.RWMutex
	bySubject map[string][]model.ContributionEvent
	ids       map[string]struct{}
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		bySubject: make(map[string][]model.ContributionEvent),
		ids:       make(map[string]struct{}),
	}
}

// Events returns a copy of the subject's events, oldest first.
func (l *MemoryLedger) Events(ctx context.Context, subjectID string) ([]model.ContributionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		metrics.RecordLedgerLatency("memory", "events", float64(time.Since(start).Microseconds())/1000)
	}()

	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.bySubject[subjectID]
	out := make([]model.ContributionEvent, len(src))
	copy(out, src)
	return out, nil
}

// Append stores ev unless its id is already known.
func (l *MemoryLedger) Append(ctx context.Context, ev model.ContributionEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := ValidateEvent(ev); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.ids[ev.EventID]; dup {
		return false, nil
	}
	l.ids[ev.EventID] = struct{}{}
	ev.Metadata = cloneMetadata(ev.Metadata)
	events := append(l.bySubject[ev.SubjectID], ev)
	sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	l.bySubject[ev.SubjectID] = events
	metrics.RecordLedgerAppend("memory")
	return true, nil
}

// Subjects lists subjects in ascending order.
func (l *MemoryLedger) Subjects(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.bySubject))
	for s := range l.bySubject {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (l *MemoryLedger) Close() error { return nil }

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
