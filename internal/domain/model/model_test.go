package model_test

import (
	"testing"
	"time"

	model "github.com/okian/rapport/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestContributionEvent_Age(t *testing.T) {
	convey.Convey("Given an event that occurred ten days ago", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		e := model.ContributionEvent{EventID: "e1", SubjectID: "u1", Kind: model.KindCompleteGig, Value: 10, OccurredAt: now.AddDate(0, 0, -10)}

		convey.Convey("Then its age is ten days", func() {
			convey.So(e.Age(now), convey.ShouldEqual, 240*time.Hour)
		})

		convey.Convey("And an event from the future has a negative age", func() {
			future := e
			future.OccurredAt = now.Add(time.Hour)
			convey.So(future.Age(now), convey.ShouldBeLessThan, 0)
		})
	})
}

func TestCapacity_Full(t *testing.T) {
	convey.Convey("Given capacities", t, func() {
		convey.So(model.Capacity{Max: 3, Current: 2}.Full(), convey.ShouldBeFalse)
		convey.So(model.Capacity{Max: 3, Current: 3}.Full(), convey.ShouldBeTrue)
		convey.So(model.Capacity{Max: 3, Current: 4}.Full(), convey.ShouldBeTrue)
		convey.So(model.Capacity{}.Full(), convey.ShouldBeTrue)
	})
}

func TestRankableItem_Expired(t *testing.T) {
	convey.Convey("Given an opportunity", t, func() {
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		item := model.RankableItem{ID: "gig-1", IsActive: true}

		convey.Convey("Without an expiry it never expires", func() {
			convey.So(item.Expired(now), convey.ShouldBeFalse)
		})

		convey.Convey("With a past expiry it is expired", func() {
			past := now.Add(-time.Minute)
			item.ExpiresAt = &past
			convey.So(item.Expired(now), convey.ShouldBeTrue)
		})

		convey.Convey("With a future expiry it is not expired", func() {
			future := now.Add(time.Minute)
			item.ExpiresAt = &future
			convey.So(item.Expired(now), convey.ShouldBeFalse)
		})
	})
}
