package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rapport/internal/domain/model"
)

func ev(id string) Event {
	return model.ContributionEvent{
		EventID:    id,
		SubjectID:  "alice",
		Kind:       model.KindCompleteGig,
		Value:      10,
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Len(), ShouldEqual, 0)
		So(q.Cap(), ShouldEqual, 2)

		Convey("When it is filled", func() {
			So(q.Enqueue(ctx, ev("e1")), ShouldBeNil)
			So(q.Enqueue(ctx, ev("e2")), ShouldBeNil)

			Convey("Then the next enqueue fails fast", func() {
				So(q.Enqueue(ctx, ev("e3")), ShouldEqual, ErrQueueFull)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then events come out in order", func() {
				dctx, cancel := context.WithCancel(ctx)
				defer cancel()
				ch := q.Dequeue(dctx)
				So((<-ch).EventID, ShouldEqual, "e1")
				So((<-ch).EventID, ShouldEqual, "e2")
			})

			Convey("Then closing still drains waiting events", func() {
				So(q.Close(), ShouldBeNil)
				So(q.Close(), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, ev("e3")), ShouldEqual, ErrQueueClosed)

				var got []string
				for e := range q.Dequeue(ctx) {
					got = append(got, e.EventID)
				}
				So(got, ShouldResemble, []string{"e1", "e2"})
			})
		})

		Convey("When the caller's context is done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(q.Enqueue(cctx, ev("e1")), ShouldEqual, context.Canceled)
		})

		Convey("When the consumer's context is done", func() {
			cctx, cancel := context.WithCancel(ctx)
			ch := q.Dequeue(cctx)
			cancel()
			_, open := <-ch
			So(open, ShouldBeFalse)
		})
	})
}

func TestInMemoryQueue_Concurrent(t *testing.T) {
	Convey("Given many producers and consumers", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(1000))

		var produced sync.WaitGroup
		for p := 0; p < 10; p++ {
			produced.Add(1)
			go func(p int) {
				defer produced.Done()
				for i := 0; i < 100; i++ {
					_ = q.Enqueue(ctx, ev(fmt.Sprintf("p%d-%d", p, i)))
				}
			}(p)
		}
		produced.Wait()
		So(q.Close(), ShouldBeNil)

		var (
			mu   sync.Mutex
			seen = map[string]struct{}{}
			wg   sync.WaitGroup
		)
		for c := 0; c < 4; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for e := range q.Dequeue(ctx) {
					mu.Lock()
					seen[e.EventID] = struct{}{}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then every event is delivered exactly once", func() {
			So(len(seen), ShouldEqual, 1000)
		})
	})
}
