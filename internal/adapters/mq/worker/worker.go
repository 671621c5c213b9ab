// Package worker drains the event queue into the ledger and keeps the
// standings current.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/rapport/internal/adapters/mq/queue"
	"github.com/okian/rapport/pkg/logger"
	"github.com/okian/rapport/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Event is what workers read off the queue.
type Event = queue.Event

// Appender persists an event. Appending a known event id reports false.
type Appender interface {
	Append(ctx context.Context, ev Event) (bool, error)
}

// Refresher recomputes a subject's reputation and standing.
type Refresher interface {
	RefreshSubject(ctx context.Context, subjectID string) error
}

// Source is where workers receive events from.
type Source interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events until stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker reads one Source.
type InMemoryWorker struct {
	source      Source
	ledger      Appender
	refresher   Refresher
	name        string
	onProcessed func(Event, error)
	active      *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(source Source, ledger Appender, refresher Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:    source,
		ledger:    ledger,
		refresher: refresher,
		name:      "worker",
		active:    &atomic.Int64{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("worker").Named(w.name)
	}
	return w
}

// Run processes events until ctx is done, Shutdown is called or the
// source is drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			err := w.process(ctx, ev)
			if err != nil {
				w.logger.Error(ctx, "error processing event",
					logger.String("event_id", ev.EventID),
					logger.String("subject_id", ev.SubjectID),
					logger.Error(err))
			}
			if w.onProcessed != nil {
				w.onProcessed(ev, err)
			}
		}
	}
}

// Shutdown stops the worker and waits for the current event.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, ev Event) error { //nolint:gocritic // hugeParam: events travel by value
	w.active.Add(1)
	start := time.Now()
	defer func() {
		w.active.Add(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	added, err := w.ledger.Append(ctx, ev)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "ledger_error")
		return fmt.Errorf("%w: event %s: %w", ErrAppend, ev.EventID, err)
	}
	if !added {
		metrics.RecordEventDuplicate()
		w.logger.Debug(ctx, "duplicate event ignored", logger.String("event_id", ev.EventID))
		return nil
	}
	metrics.RecordEventIngested(string(ev.Kind))

	if err := w.refresher.RefreshSubject(ctx, ev.SubjectID); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "refresh_error")
		return fmt.Errorf("refresh %s: %w", ev.SubjectID, err)
	}
	return nil
}

// Pool runs a fixed number of workers over one source.
type Pool struct {
	workers []*InMemoryWorker
	source  Source
	active  *atomic.Int64
	logger  logger.Logger
}

// NewPool creates workerCount workers. A non-positive count means one per CPU.
func NewPool(workerCount int, source Source, ledger Appender, refresher Refresher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		source:  source,
		active:  &atomic.Int64{},
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		w := NewInMemoryWorker(source, ledger, refresher, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.active = p.active
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns how many workers are processing an event right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// ObserveMetrics publishes active and idle worker gauges.
func (p *Pool) ObserveMetrics() {
	active := p.Active()
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Shutdown closes the source if it can be closed, lets the workers drain
// what is left and waits for them, bounded by ctx and a 30s ceiling.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
