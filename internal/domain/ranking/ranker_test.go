package ranking_test

import (
	"testing"
	"time"

	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func daysAgo(d int) time.Time { return now.Add(-time.Duration(d) * 24 * time.Hour) }

func fixture() (model.RequesterProfile, []model.InterestRecord, []model.RankableItem) {
	req := model.RequesterProfile{
		ID:              "u1",
		ReputationScore: 20,
		LookingFor:      []string{"gig"},
		Tags:            []string{"go"},
		Desired:         model.Preferences{Tags: []string{"remote"}},
		Segments:        []string{"student"},
	}
	interests := []model.InterestRecord{
		{UserID: "u1", Category: "tech", Subcategories: []string{"backend", "cloud"}, LookingFor: []string{"job"}},
		{UserID: "u1", Category: "design", LookingFor: []string{"gig"}},
	}
	expired := now.Add(-time.Hour)
	items := []model.RankableItem{
		{ID: "i2", Type: "job", Category: "tech", Subcategories: []string{"backend", "cloud"}, IsActive: true, CreatedAt: daysAgo(30)},
		{ID: "i3", Type: "gig", RequiredReputation: 50, Priority: 1000, IsActive: true, CreatedAt: daysAgo(1)},
		{ID: "i4", Type: "gig", Priority: 1000, IsActive: false, CreatedAt: daysAgo(1)},
		{ID: "i5", Type: "gig", Priority: 1000, IsActive: true, CreatedAt: daysAgo(1), ExpiresAt: &expired},
		{ID: "i7", Type: "event", Category: "other", Priority: 90, IsActive: true, CreatedAt: daysAgo(1)},
		{ID: "i6", Type: "event", Category: "other", Priority: 90, IsActive: true, CreatedAt: daysAgo(1)},
		{ID: "i8", Type: "event", Priority: 90, IsActive: true, CreatedAt: daysAgo(20)},
		{
			ID: "i1", Type: "gig", Category: "Tech", Subcategories: []string{"backend"},
			Tags: []string{"go", "remote"}, Priority: 5, RequiredReputation: 10,
			IsActive: true, CreatedAt: daysAgo(2),
		},
	}
	return req, interests, items
}

func ids(ranked []model.RankedItem) []string {
	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Item.ID)
	}
	return out
}

func TestRanker_Rank(t *testing.T) {
	Convey("Given a requester with interests and a mixed pool of opportunities", t, func() {
		r := ranking.NewRanker(ranking.WithClock(clock))
		req, interests, items := fixture()

		Convey("When ranking with the default limit", func() {
			ranked := r.Rank(req, interests, items, 0)

			Convey("Then gated items are gone and the rest are ordered by relevance", func() {
				So(ids(ranked), ShouldResemble, []string{"i1", "i6", "i7", "i8", "i2"})
			})

			Convey("Then relevance adds up every matching signal", func() {
				// 5 priority + 50 looking-for + (30+10) tech interest + 40 design
				// interest + 2*5 tags + 10 recency
				So(ranked[0].Relevance, ShouldEqual, 155)
				So(ranked[1].Relevance, ShouldEqual, 100)
				So(ranked[3].Relevance, ShouldEqual, 90)
				So(ranked[4].Relevance, ShouldEqual, 90) // 30 + 40 + 2*10
			})

			Convey("Then nothing needs more reputation than the requester has", func() {
				for _, it := range ranked {
					So(it.Item.RequiredReputation, ShouldBeLessThanOrEqualTo, req.ReputationScore)
				}
			})

			Convey("Then relevance never increases down the list", func() {
				for i := 1; i < len(ranked); i++ {
					So(ranked[i].Relevance, ShouldBeLessThanOrEqualTo, ranked[i-1].Relevance)
				}
			})
		})

		Convey("When a limit is given", func() {
			ranked := r.Rank(req, interests, items, 3)
			So(ids(ranked), ShouldResemble, []string{"i1", "i6", "i7"})
		})

		Convey("When the requester's reputation exactly meets the requirement", func() {
			req.ReputationScore = 10
			ranked := r.Rank(req, interests, items, 0)
			So(ids(ranked), ShouldContain, "i1")
		})

		Convey("When the requester has no reputation", func() {
			req.ReputationScore = 0
			ranked := r.Rank(req, interests, items, 0)
			So(ids(ranked), ShouldNotContain, "i1")
			So(ranked, ShouldHaveLength, 4)
		})

		Convey("When gating", func() {
			kept, gated := r.Gate(req, items)
			So(gated, ShouldEqual, 3)
			So(kept, ShouldHaveLength, 5)
		})

		Convey("When there is nothing to rank", func() {
			So(r.Rank(req, interests, nil, 5), ShouldBeEmpty)
		})
	})
}

func TestRanker_SegmentGate(t *testing.T) {
	Convey("Given items aimed at specific segments", t, func() {
		req, _, _ := fixture()
		items := []model.RankableItem{
			{ID: "founders", IsActive: true, TargetSegments: []string{"founder"}},
			{ID: "students", IsActive: true, TargetSegments: []string{"Student"}},
			{ID: "everyone", IsActive: true},
		}

		Convey("When the segment gate is off", func() {
			r := ranking.NewRanker(ranking.WithClock(clock))
			So(r.Rank(req, nil, items, 0), ShouldHaveLength, 3)
		})

		Convey("When the segment gate is on", func() {
			r := ranking.NewRanker(ranking.WithClock(clock), ranking.WithSegmentGate(true))
			ranked := r.Rank(req, nil, items, 0)
			So(ids(ranked), ShouldResemble, []string{"everyone", "students"})
		})
	})
}

func TestRanker_Options(t *testing.T) {
	Convey("Given a ranker with a custom default limit", t, func() {
		r := ranking.NewRanker(ranking.WithDefaultLimit(2), ranking.WithClock(clock))
		So(r.DefaultLimit(), ShouldEqual, 2)

		req, interests, items := fixture()
		So(r.Rank(req, interests, items, -1), ShouldHaveLength, 2)
		So(r.Relevance(req, interests, items[0]), ShouldEqual, 90)
	})

	Convey("Given invalid options", t, func() {
		r := ranking.NewRanker(ranking.WithDefaultLimit(0), ranking.WithClock(nil))
		So(r.DefaultLimit(), ShouldEqual, 10)
	})
}
