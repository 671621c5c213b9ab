package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/rapport/internal/domain/model"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func event(id, subject string, value int64, at time.Time) model.ContributionEvent {
	return model.ContributionEvent{
		EventID:    id,
		SubjectID:  subject,
		Kind:       model.KindCompleteGig,
		Value:      value,
		OccurredAt: at,
	}
}

// ledgerContract runs the behavior every Ledger must share.
func ledgerContract(t *testing.T, l Ledger) {
	t.Helper()
	ctx := context.Background()

	added, err := l.Append(ctx, event("e2", "alice", 10, t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, added)

	withMeta := event("e1", "alice", -5, t0)
	withMeta.Kind = model.KindNoShow
	withMeta.Metadata = map[string]string{"gig": "g-17"}
	added, err = l.Append(ctx, withMeta)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = l.Append(ctx, event("e3", "bob", 3, t0))
	require.NoError(t, err)
	assert.True(t, added)

	// same id again is ignored
	added, err = l.Append(ctx, event("e2", "alice", 999, t0))
	require.NoError(t, err)
	assert.False(t, added)

	events, err := l.Events(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].EventID, "events are ordered by occurrence")
	assert.Equal(t, model.KindNoShow, events[0].Kind)
	assert.Equal(t, int64(-5), events[0].Value)
	assert.True(t, events[0].OccurredAt.Equal(t0))
	assert.Equal(t, "g-17", events[0].Metadata["gig"])
	assert.Equal(t, int64(10), events[1].Value)

	none, err := l.Events(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	subjects, err := l.Subjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, subjects)

	_, err = l.Append(ctx, model.ContributionEvent{EventID: "x", SubjectID: "alice"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestMemoryLedger(t *testing.T) {
	l := NewMemoryLedger()
	defer func() { require.NoError(t, l.Close()) }()
	ledgerContract(t, l)
}

func TestMemoryLedger_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_, err := l.Append(ctx, event("e1", "alice", 1, t0))
	require.NoError(t, err)

	events, err := l.Events(ctx, "alice")
	require.NoError(t, err)
	events[0].Value = 100

	again, err := l.Events(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again[0].Value)
}

func TestMemoryLedger_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryLedger().Events(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteLedger(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLLedger(ctx, BackendSQLite, ":memory:")
	require.NoError(t, err)
	defer func() { require.NoError(t, l.Close()) }()
	ledgerContract(t, l)
}

func TestSQLiteLedger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db")

	l, err := OpenLedger(ctx, BackendSQLite, dsn)
	require.NoError(t, err)
	_, err = l.Append(ctx, event("e1", "alice", 8, t0))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// migrations are idempotent
	l, err = OpenLedger(ctx, BackendSQLite, dsn)
	require.NoError(t, err)
	defer func() { require.NoError(t, l.Close()) }()
	events, err := l.Events(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(8), events[0].Value)
}

func TestOpenLedger(t *testing.T) {
	ctx := context.Background()

	l, err := OpenLedger(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryLedger{}, l)

	_, err = OpenLedger(ctx, "cassandra", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = OpenLedger(ctx, BackendPostgres, "")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLLedger{backend: BackendPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &SQLLedger{backend: BackendSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
