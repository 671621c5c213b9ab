package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rapport/internal/domain/model"
)

func snap(subject string, score float64) model.ReputationSnapshot {
	return model.ReputationSnapshot{
		SubjectID:  subject,
		Score:      score,
		Level:      1,
		Rank:       "Explorer",
		ComputedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Available:  true,
	}
}

func subjects(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SubjectID
	}
	return out
}

func TestStandingsStore(t *testing.T) {
	Convey("Given an empty standings store", t, func() {
		ctx := context.Background()
		s := NewStandingsStore()
		So(s.Count(ctx), ShouldEqual, 0)

		Convey("When subjects are set", func() {
			for subject, score := range map[string]float64{"carol": 75, "alice": 95, "bob": 85, "dave": 100, "erin": 85} {
				changed, err := s.Set(ctx, snap(subject, score))
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
			}

			Convey("Then TopN orders by score and breaks ties by id", func() {
				top, err := s.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(subjects(top), ShouldResemble, []string{"dave", "alice", "bob", "erin", "carol"})
				So(top[2].Rank, ShouldEqual, 3)
				So(top[3].Rank, ShouldEqual, 3)
				So(top[4].Rank, ShouldEqual, 5)
				So(top[0].Label, ShouldEqual, "Explorer")
			})

			Convey("Then TopN honours the limit", func() {
				top, err := s.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(subjects(top), ShouldResemble, []string{"dave", "alice"})
			})

			Convey("Then Standing agrees with TopN", func() {
				e, err := s.Standing(ctx, "erin")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 3)
				So(e.Score, ShouldEqual, 85)

				e, err = s.Standing(ctx, "carol")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 5)
			})

			Convey("Then a lower score replaces the old one", func() {
				changed, err := s.Set(ctx, snap("dave", 10))
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				So(s.Count(ctx), ShouldEqual, 5)

				e, err := s.Standing(ctx, "dave")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 5)
				So(e.Score, ShouldEqual, 10)
			})

			Convey("Then setting the same standing reports no change", func() {
				changed, err := s.Set(ctx, snap("alice", 95))
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
			})

			Convey("Then a snapshot older than the stored one is dropped", func() {
				stale := snap("alice", 5)
				stale.ComputedAt = stale.ComputedAt.Add(-time.Minute)
				changed, err := s.Set(ctx, stale)
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
				e, _ := s.Standing(ctx, "alice")
				So(e.Score, ShouldEqual, 95)

				fresh := snap("alice", 5)
				fresh.ComputedAt = fresh.ComputedAt.Add(time.Minute)
				changed, err = s.Set(ctx, fresh)
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				e, _ = s.Standing(ctx, "alice")
				So(e.Score, ShouldEqual, 5)
			})

			Convey("Then unavailable snapshots are ignored", func() {
				u := snap("alice", 0)
				u.Available = false
				changed, err := s.Set(ctx, u)
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
				e, _ := s.Standing(ctx, "alice")
				So(e.Score, ShouldEqual, 95)
			})
		})

		Convey("When asking for an unknown subject", func() {
			_, err := s.Standing(ctx, "ghost")
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("When asking for a non-positive limit", func() {
			_, err := s.TopN(ctx, 0)
			So(err, ShouldEqual, ErrInvalidLimit)
		})

		Convey("When the store is empty", func() {
			top, err := s.TopN(ctx, 3)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)
		})
	})
}

func TestStandingsStore_Large(t *testing.T) {
	Convey("Given many subjects with repeated scores", t, func() {
		ctx := context.Background()
		s := NewStandingsStore()
		for i := 0; i < 1000; i++ {
			_, err := s.Set(ctx, snap(fmt.Sprintf("s%04d", i), float64(i%100)))
			So(err, ShouldBeNil)
		}

		Convey("Then every standing matches a full scan", func() {
			all, err := s.TopN(ctx, 1000)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 1000)
			for _, want := range all[:50] {
				got, err := s.Standing(ctx, want.SubjectID)
				So(err, ShouldBeNil)
				So(got.Rank, ShouldEqual, want.Rank)
			}
			// ten subjects share each score
			So(all[0].Score, ShouldEqual, 99)
			So(all[9].Rank, ShouldEqual, 1)
			So(all[10].Rank, ShouldEqual, 11)
		})
	})
}

func TestStandingsStore_Concurrent(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		ctx := context.Background()
		s := NewStandingsStore()
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_, _ = s.Set(ctx, snap(fmt.Sprintf("w%d-%d", w, i%20), float64(i)))
					_, _ = s.TopN(ctx, 5)
				}
			}(w)
		}
		wg.Wait()

		Convey("Then the store holds each subject once", func() {
			So(s.Count(ctx), ShouldEqual, 160)
			top, err := s.TopN(ctx, 160)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 160)
		})
	})
}
