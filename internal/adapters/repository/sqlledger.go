package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/metrics"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLLedger stores events in SQLite or PostgreSQL.
type SQLLedger struct {
	db      *sql.DB
	backend string
	now     func() time.Time
}

var _ Ledger = (*SQLLedger)(nil)

// OpenLedger returns the ledger for backend. dsn is ignored for memory.
func OpenLedger(ctx context.Context, backend, dsn string) (Ledger, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryLedger(), nil
	case BackendSQLite, BackendPostgres:
		return OpenSQLLedger(ctx, backend, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// OpenSQLLedger opens the database, verifies the connection and applies
// pending migrations.
func OpenSQLLedger(ctx context.Context, backend, dsn string) (*SQLLedger, error) {
	var driver string
	switch backend {
	case BackendSQLite:
		driver = "sqlite"
		if dsn == "" {
			dsn = "file:rapport.db?_pragma=busy_timeout(5000)"
		}
	case BackendPostgres:
		driver = "postgres"
		if dsn == "" {
			return nil, fmt.Errorf("postgres ledger requires a dsn")
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", backend, err)
	}
	if backend == BackendSQLite {
		// one connection avoids "database is locked" and keeps :memory: alive
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s ledger: %w", backend, err)
	}
	l, err := NewSQLLedger(ctx, db, backend)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewSQLLedger wraps an open database and migrates it.
func NewSQLLedger(ctx context.Context, db *sql.DB, backend string) (*SQLLedger, error) {
	if err := migrate(ctx, db, backend); err != nil {
		return nil, err
	}
	return &SQLLedger{db: db, backend: backend, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB, backend string) error {
	dialect := goose.DialectSQLite3
	if backend == BackendPostgres {
		dialect = goose.DialectPostgres
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Events returns the subject's events ordered by occurrence.
func (l *SQLLedger) Events(ctx context.Context, subjectID string) (out []model.ContributionEvent, err error) {
	start := time.Now()
	defer l.observe("events", start)

	rows, err := l.db.QueryContext(ctx, l.rebind(
		`SELECT event_id, subject_id, kind, value, occurred_at, metadata
		   FROM contribution_events
		  WHERE subject_id = ?
		  ORDER BY occurred_at, event_id`), subjectID)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", subjectID, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	out = []model.ContributionEvent{}
	for rows.Next() {
		var (
			ev       model.ContributionEvent
			kind     string
			occurred int64
			meta     string
		)
		if err := rows.Scan(&ev.EventID, &ev.SubjectID, &kind, &ev.Value, &occurred, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		ev.OccurredAt = time.UnixMilli(occurred).UTC()
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", ev.EventID, err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Append inserts ev, ignoring an event id that is already stored.
func (l *SQLLedger) Append(ctx context.Context, ev model.ContributionEvent) (bool, error) {
	if err := ValidateEvent(ev); err != nil {
		return false, err
	}
	start := time.Now()
	defer l.observe("append", start)

	meta := "{}"
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return false, fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}
	res, err := l.db.ExecContext(ctx, l.rebind(
		`INSERT INTO contribution_events (event_id, subject_id, kind, value, occurred_at, metadata, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`),
		ev.EventID, ev.SubjectID, string(ev.Kind), ev.Value, ev.OccurredAt.UnixMilli(), meta, l.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}
	if n > 0 {
		metrics.RecordLedgerAppend(l.backend)
	}
	return n > 0, nil
}

// Subjects lists subjects in ascending order.
func (l *SQLLedger) Subjects(ctx context.Context) (out []string, err error) {
	start := time.Now()
	defer l.observe("subjects", start)

	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT subject_id FROM contribution_events ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	out = []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *SQLLedger) Close() error {
	return l.db.Close()
}

func (l *SQLLedger) observe(op string, start time.Time) {
	metrics.RecordLedgerLatency(l.backend, op, float64(time.Since(start).Microseconds())/1000)
}

// rebind turns ? placeholders into $n for postgres.
func (l *SQLLedger) rebind(query string) string {
	if l.backend != BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
