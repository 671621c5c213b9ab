package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rapport/internal/adapters/mq/queue"
	"github.com/okian/rapport/internal/adapters/mq/worker"
	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type recordingRefresher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (r *recordingRefresher) RefreshSubject(_ context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subjectID)
	return r.err
}

func (r *recordingRefresher) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, worker.Event) (bool, error) {
	return false, errors.New("disk full")
}

func ev(id, subject string) worker.Event {
	return model.ContributionEvent{
		EventID:    id,
		SubjectID:  subject,
		Kind:       model.KindCompleteGig,
		Value:      10,
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// collect returns a hook and a channel receiving each processed outcome.
func collect() (worker.Option, <-chan error) {
	out := make(chan error, 100)
	return worker.WithOnProcessed(func(_ worker.Event, err error) { out <- err }), out
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker over a queue and a memory ledger", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		ledger := repository.NewMemoryLedger()
		ref := &recordingRefresher{}
		hook, outcomes := collect()
		w := worker.NewInMemoryWorker(q, ledger, ref, hook, worker.WithName("w1"))
		go w.Run(ctx)

		Convey("When a new event arrives", func() {
			So(q.Enqueue(ctx, ev("e1", "alice")), ShouldBeNil)
			So(<-outcomes, ShouldBeNil)

			Convey("Then it is stored and the subject refreshed", func() {
				events, err := ledger.Events(ctx, "alice")
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(ref.calls(), ShouldResemble, []string{"alice"})
			})

			Convey("Then a replay of the same id is ignored", func() {
				So(q.Enqueue(ctx, ev("e1", "alice")), ShouldBeNil)
				So(<-outcomes, ShouldBeNil)
				So(ref.calls(), ShouldHaveLength, 1)
			})
		})

		Convey("When refreshing fails", func() {
			ref.err = errors.New("ledger offline")
			So(q.Enqueue(ctx, ev("e2", "bob")), ShouldBeNil)
			err := <-outcomes
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "refresh bob")
			So(errors.Is(err, worker.ErrAppend), ShouldBeFalse)
		})

		Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			So(w.Shutdown(sctx), ShouldBeNil)
			So(w.Shutdown(sctx), ShouldBeNil)
		})
	})

	Convey("Given a ledger that rejects writes", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue()
		ref := &recordingRefresher{}
		hook, outcomes := collect()
		w := worker.NewInMemoryWorker(q, failingLedger{}, ref, hook)
		go w.Run(ctx)

		So(q.Enqueue(ctx, ev("e1", "alice")), ShouldBeNil)
		err := <-outcomes
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "disk full")
		So(errors.Is(err, worker.ErrAppend), ShouldBeTrue)
		So(ref.calls(), ShouldBeEmpty)
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of four workers", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		ledger := repository.NewMemoryLedger()
		ref := &recordingRefresher{}
		p := worker.NewPool(4, q, ledger, ref)
		So(p.Size(), ShouldEqual, 4)
		p.Start(ctx)

		Convey("When events are enqueued and the pool shuts down", func() {
			for i := 0; i < 200; i++ {
				So(q.Enqueue(ctx, ev(fmt.Sprintf("e%d", i), fmt.Sprintf("s%d", i%10))), ShouldBeNil)
			}
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			So(p.Shutdown(sctx), ShouldBeNil)

			Convey("Then every queued event was drained", func() {
				subjects, err := ledger.Subjects(ctx)
				So(err, ShouldBeNil)
				So(subjects, ShouldHaveLength, 10)
				total := 0
				for _, s := range subjects {
					events, _ := ledger.Events(ctx, s)
					total += len(events)
				}
				So(total, ShouldEqual, 200)
				So(ref.calls(), ShouldHaveLength, 200)
				So(p.Active(), ShouldEqual, 0)
				So(func() { p.ObserveMetrics() }, ShouldNotPanic)
			})
		})
	})

	Convey("Given a non-positive worker count", t, func() {
		p := worker.NewPool(0, queue.NewInMemoryQueue(), repository.NewMemoryLedger(), &recordingRefresher{})
		So(p.Size(), ShouldBeGreaterThan, 0)
	})
}
