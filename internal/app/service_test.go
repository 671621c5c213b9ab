package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rapport/internal/adapters/guard"
	"github.com/okian/rapport/internal/adapters/repository"
	service "github.com/okian/rapport/internal/app"
	"github.com/okian/rapport/internal/domain/matching"
	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func event(id, subject string, value int64) model.ContributionEvent {
	return model.ContributionEvent{
		EventID:    id,
		SubjectID:  subject,
		Kind:       model.KindCompleteGig,
		Value:      value,
		OccurredAt: now.Add(-24 * time.Hour),
	}
}

// eventually polls cond until it holds or two seconds pass.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

var fastGuard = service.WithGuardOptions(
	guard.WithMaxRetries(0),
	guard.WithBackoff(time.Millisecond, time.Millisecond),
)

// brokenLedger cannot be read.
type brokenLedger struct{ *repository.MemoryLedger }

var errOffline = errors.New("ledger offline")

func (brokenLedger) Events(context.Context, string) ([]model.ContributionEvent, error) {
	return nil, errOffline
}

func (brokenLedger) Subjects(context.Context) ([]string, error) { return nil, errOffline }

func start(opts ...service.Option) *service.Service {
	s := service.New(append([]service.Option{service.WithClock(clock), service.WithWorkerCount(2), fastGuard}, opts...)...)
	So(s.Start(context.Background()), ShouldBeNil)
	return s
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		ctx := context.Background()
		s := service.New()

		Convey("Then calls fail with ErrNotStarted", func() {
			_, err := s.Enqueue(ctx, event("e1", "alice", 1))
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = s.TopStandings(ctx, 3)
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = s.Match(ctx, service.MatchRequest{RequesterID: "r1"})
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = s.RefreshAll(ctx)
			So(err, ShouldEqual, service.ErrNotStarted)
			snap := s.ComputeReputation(ctx, "alice")
			So(snap.Available, ShouldBeFalse)
			So(snap.Score, ShouldEqual, 0)
			So(snap.Level, ShouldEqual, 0)
			So(snap.Rank, ShouldEqual, "Newcomer")
			So(snap.NextLevelThreshold, ShouldEqual, 1)
			So(s.GetStats(ctx).Started, ShouldBeFalse)
			So(s.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given an invalid configuration", t, func() {
		ctx := context.Background()

		Convey("When the default profile does not exist", func() {
			s := service.New(service.WithProfiles(map[string]matching.Weights{"a": matching.DefaultWeights()}, "b"))
			So(errors.Is(s.Start(ctx), service.ErrUnknownProfile), ShouldBeTrue)
		})

		Convey("When a profile has an unknown factor", func() {
			s := service.New(service.WithProfiles(map[string]matching.Weights{"a": {"charisma": 1}}, "a"))
			So(errors.Is(s.Start(ctx), matching.ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("When the refresh schedule does not parse", func() {
			s := service.New(service.WithRefreshSchedule("every other tuesday"))
			So(s.Start(ctx), ShouldNotBeNil)
			So(s.GetStats(ctx).Started, ShouldBeFalse)
		})
	})

	Convey("Given a started service with a refresh schedule", t, func() {
		ctx := context.Background()
		s := start(service.WithRefreshSchedule("@every 1h"))
		So(s.Start(ctx), ShouldBeNil)

		stats := s.GetStats(ctx)
		So(stats.Started, ShouldBeTrue)
		So(stats.Workers, ShouldEqual, 2)
		So(stats.Profiles, ShouldResemble, []string{"counselor", "mentor"})
		So(stats.Breakers, ShouldResemble, map[string]string{"ledger": "closed", "catalog": "closed"})
		So(stats.Catalog, ShouldNotBeNil)

		So(s.Stop(ctx), ShouldBeNil)
		So(s.GetStats(ctx).Started, ShouldBeFalse)
	})
}

func TestService_Reputation(t *testing.T) {
	Convey("Given a ledger with history", t, func() {
		ctx := context.Background()
		ledger := repository.NewMemoryLedger()
		for _, ev := range []model.ContributionEvent{
			event("a1", "alice", 10), event("a2", "alice", 10),
			event("b1", "bob", 5),
		} {
			_, err := ledger.Append(ctx, ev)
			So(err, ShouldBeNil)
		}
		s := start(service.WithLedger(ledger))
		defer func() { _ = s.Stop(ctx) }()

		Convey("Then reputation is derived from the events", func() {
			snap := s.ComputeReputation(ctx, "alice")
			So(snap.Available, ShouldBeTrue)
			So(snap.Score, ShouldEqual, 20)
			So(snap.Level, ShouldEqual, 6)
			So(snap.Rank, ShouldEqual, "Mentor")
			So(snap.NextLevelThreshold, ShouldEqual, 21)
			So(snap.ComputedAt, ShouldEqual, now)
		})

		Convey("Then a subject without events is a genuine zero", func() {
			snap := s.ComputeReputation(ctx, "carol")
			So(snap.Available, ShouldBeTrue)
			So(snap.Score, ShouldEqual, 0)
		})

		Convey("Then batches keep the order of the ids", func() {
			snaps := s.ComputeReputations(ctx, []string{"bob", "carol", "alice"})
			So(snaps, ShouldHaveLength, 3)
			So(snaps[0].Score, ShouldEqual, 5)
			So(snaps[1].Score, ShouldEqual, 0)
			So(snaps[2].Score, ShouldEqual, 20)
		})

		Convey("Then standings were rebuilt at start", func() {
			top, err := s.TopStandings(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[0].SubjectID, ShouldEqual, "alice")
			So(top[0].Label, ShouldEqual, "Mentor")

			e, err := s.Standing(ctx, "bob")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 2)

			_, err = s.Standing(ctx, "carol")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then a refresh covers every subject", func() {
			n, err := s.RefreshAll(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
		})
	})

	Convey("Given a ledger that cannot be read", t, func() {
		ctx := context.Background()
		s := start(service.WithLedger(brokenLedger{repository.NewMemoryLedger()}))
		defer func() { _ = s.Stop(ctx) }()

		Convey("Then reputation falls back to the unavailable default", func() {
			snap := s.ComputeReputation(ctx, "alice")
			So(snap.Available, ShouldBeFalse)
			So(snap.Score, ShouldEqual, 0)
			So(snap.Level, ShouldEqual, 0)
			So(snap.Rank, ShouldEqual, "Newcomer")
			So(snap.NextLevelThreshold, ShouldEqual, 1)
		})

		Convey("Then refreshing reports the outage", func() {
			So(errors.Is(s.RefreshSubject(ctx, "alice"), repository.ErrDataUnavailable), ShouldBeTrue)
			_, err := s.RefreshAll(ctx)
			So(errors.Is(err, repository.ErrDataUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_Enqueue(t *testing.T) {
	Convey("Given a running service with event points", t, func() {
		ctx := context.Background()
		ledger := repository.NewMemoryLedger()
		s := start(
			service.WithLedger(ledger),
			service.WithEventPoints(map[model.EventKind]int64{model.KindCompleteGig: 10, model.KindNoShow: -5}),
		)
		defer func() { _ = s.Stop(ctx) }()

		Convey("When a zero-valued event is accepted", func() {
			ev := event("e1", "alice", 0)
			ev.OccurredAt = time.Time{}
			dup, err := s.Enqueue(ctx, ev)
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)

			Convey("Then workers store it with its kind's points and rank the subject", func() {
				So(eventually(func() bool {
					e, err := s.Standing(ctx, "alice")
					return err == nil && e.Score == 10
				}), ShouldBeTrue)
				events, err := ledger.Events(ctx, "alice")
				So(err, ShouldBeNil)
				So(events[0].Value, ShouldEqual, 10)
				So(events[0].OccurredAt, ShouldEqual, now)
			})

			Convey("Then the same id is reported as a duplicate", func() {
				dup, err := s.Enqueue(ctx, event("e1", "alice", 3))
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When penalties arrive", func() {
			for i, v := range []int64{10, 0} {
				ev := event(fmt.Sprintf("p%d", i), "bob", v)
				if v == 0 {
					ev.Kind = model.KindNoShow
				}
				_, err := s.Enqueue(ctx, ev)
				So(err, ShouldBeNil)
			}
			So(eventually(func() bool {
				e, err := s.Standing(ctx, "bob")
				return err == nil && e.Score == 5
			}), ShouldBeTrue)
		})

		Convey("When an event is invalid", func() {
			_, err := s.Enqueue(ctx, model.ContributionEvent{EventID: "x", Kind: model.KindCompleteGig})
			So(errors.Is(err, repository.ErrInvalidEvent), ShouldBeTrue)
		})
	})

	Convey("Given a service whose queue is full", t, func() {
		ctx := context.Background()
		s := start(service.WithQueueSize(1), service.WithLedger(slowLedger{repository.NewMemoryLedger()}), service.WithWorkerCount(1))
		defer func() { _ = s.Stop(ctx) }()

		var full error
		for i := 0; i < 10 && full == nil; i++ {
			_, full = s.Enqueue(ctx, event(fmt.Sprintf("e%d", i), "alice", 1))
		}
		So(full, ShouldNotBeNil)

		Convey("Then a retry of the rejected id is not treated as a duplicate", func() {
			So(eventually(func() bool {
				dup, err := s.Enqueue(ctx, event("retry", "alice", 1))
				return err == nil && !dup
			}), ShouldBeTrue)
		})
	})

	Convey("Given a ledger whose first write fails", t, func() {
		ctx := context.Background()
		ledger := flakyLedger{MemoryLedger: repository.NewMemoryLedger(), failed: &atomic.Bool{}}
		s := start(service.WithLedger(ledger), service.WithWorkerCount(1))
		defer func() { _ = s.Stop(ctx) }()

		dup, err := s.Enqueue(ctx, event("e1", "alice", 10))
		So(err, ShouldBeNil)
		So(dup, ShouldBeFalse)
		So(eventually(ledger.failed.Load), ShouldBeTrue)

		Convey("Then a retry of the lost event is stored", func() {
			So(eventually(func() bool {
				dup, err := s.Enqueue(ctx, event("e1", "alice", 10))
				return err == nil && !dup
			}), ShouldBeTrue)
			So(eventually(func() bool {
				events, err := ledger.Events(ctx, "alice")
				return err == nil && len(events) == 1
			}), ShouldBeTrue)
			So(eventually(func() bool { return s.ComputeReputation(ctx, "alice").Score == 10 }), ShouldBeTrue)
		})
	})
}

// flakyLedger fails its first append.
type flakyLedger struct {
	*repository.MemoryLedger
	failed *atomic.Bool
}

func (l flakyLedger) Append(ctx context.Context, ev model.ContributionEvent) (bool, error) {
	if l.failed.CompareAndSwap(false, true) {
		return false, errors.New("disk full")
	}
	return l.MemoryLedger.Append(ctx, ev)
}

// slowLedger holds each append long enough for the queue to fill.
type slowLedger struct{ *repository.MemoryLedger }

func (l slowLedger) Append(ctx context.Context, ev model.ContributionEvent) (bool, error) {
	time.Sleep(20 * time.Millisecond)
	return l.MemoryLedger.Append(ctx, ev)
}

func candidate(id string, active bool, specs ...string) model.CandidateProfile {
	return model.CandidateProfile{ID: id, Attributes: model.Attributes{
		Specializations: specs,
		IsActive:        active,
		Capacity:        model.Capacity{Max: 5},
	}}
}

func seededCatalog(ctx context.Context) *repository.MemoryCatalog {
	cat := repository.NewMemoryCatalog()
	So(repository.Seed(ctx, cat, repository.CatalogSeed{
		Requesters: []model.RequesterProfile{{
			ID: "r1",
			Desired: model.Preferences{
				PrimaryNeed:    "anxiety",
				SecondaryNeeds: []string{"grief"},
			},
		}},
		Candidates: []model.CandidateProfile{
			candidate("c1", true, "anxiety", "grief"),
			candidate("c2", false, "anxiety"),
			candidate("c3", true, "career"),
		},
		Opportunities: []model.RankableItem{
			{ID: "o1", Type: "gig", Category: "design", RequiredReputation: 10, IsActive: true},
			{ID: "o2", Type: "gig", Category: "design", RequiredReputation: 50, IsActive: true},
			{ID: "o3", Type: "grant", Category: "research", IsActive: true},
		},
		Interests: []model.InterestRecord{{UserID: "r1", Category: "design"}},
	}), ShouldBeNil)
	return cat
}

func TestService_Match(t *testing.T) {
	Convey("Given a catalog of candidates", t, func() {
		ctx := context.Background()
		ledger := repository.NewMemoryLedger()
		for _, ev := range []model.ContributionEvent{event("c1-a", "c1", 30), event("c1-b", "c1", 10)} {
			_, err := ledger.Append(ctx, ev)
			So(err, ShouldBeNil)
		}
		s := start(service.WithLedger(ledger), service.WithCatalog(seededCatalog(ctx)))
		defer func() { _ = s.Stop(ctx) }()

		Convey("When matching with the default profile", func() {
			out, err := s.Match(ctx, service.MatchRequest{RequesterID: "r1", IncludeAll: true})
			So(err, ShouldBeNil)

			Convey("Then every candidate is evaluated and the best is first", func() {
				So(out.Profile, ShouldEqual, "counselor")
				So(out.Evaluated, ShouldEqual, 3)
				So(out.Shortlisted, ShouldEqual, 2)
				So(out.Results, ShouldHaveLength, 3)
				So(out.Results[0].CandidateID, ShouldEqual, "c1")
				So(out.Results[0].OverallScore, ShouldEqual, 63)
				So(out.Results[1].CandidateID, ShouldEqual, "c3")
				So(out.Results[1].OverallScore, ShouldEqual, 35)
			})

			Convey("Then the inactive candidate is disqualified", func() {
				last := out.Results[2]
				So(last.CandidateID, ShouldEqual, "c2")
				So(last.Disqualified, ShouldBeTrue)
			})
		})

		Convey("When matching with the mentor profile", func() {
			out, err := s.Match(ctx, service.MatchRequest{
				RequesterID: "r1",
				Profile:     "mentor",
				Criteria:    repository.CandidateCriteria{ActiveOnly: true},
			})
			So(err, ShouldBeNil)

			Convey("Then the live reputation feeds the score", func() {
				So(out.Results, ShouldHaveLength, 2)
				So(out.Results[0].CandidateID, ShouldEqual, "c1")
				So(out.Results[0].PerFactorScores[model.FactorReputation], ShouldEqual, 40)
				So(out.Results[0].OverallScore, ShouldEqual, 61)
			})
		})

		Convey("When matching an inline requester with explicit weights", func() {
			out, err := s.Match(ctx, service.MatchRequest{
				Requester: &model.RequesterProfile{Desired: model.Preferences{PrimaryNeed: "career"}},
				Weights:   map[model.Factor]float64{model.FactorSpecialization: 1},
			})
			So(err, ShouldBeNil)
			So(out.Profile, ShouldEqual, "custom")
			So(out.Results[0].CandidateID, ShouldEqual, "c3")
			So(out.Results[0].OverallScore, ShouldEqual, 70)
		})

		Convey("When the request cannot be served", func() {
			_, err := s.Match(ctx, service.MatchRequest{RequesterID: "r1", Profile: "astrologer"})
			So(errors.Is(err, service.ErrUnknownProfile), ShouldBeTrue)

			_, err = s.Match(ctx, service.MatchRequest{RequesterID: "r1", Weights: map[model.Factor]float64{model.FactorLocation: -1}})
			So(errors.Is(err, matching.ErrInvalidWeights), ShouldBeTrue)

			_, err = s.Match(ctx, service.MatchRequest{})
			So(err, ShouldEqual, service.ErrNoRequester)

			_, err = s.Match(ctx, service.MatchRequest{RequesterID: "nobody"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_RankOpportunities(t *testing.T) {
	Convey("Given a requester with some reputation", t, func() {
		ctx := context.Background()
		ledger := repository.NewMemoryLedger()
		for _, ev := range []model.ContributionEvent{event("r1-a", "r1", 10), event("r1-b", "r1", 5)} {
			_, err := ledger.Append(ctx, ev)
			So(err, ShouldBeNil)
		}
		s := start(service.WithLedger(ledger), service.WithCatalog(seededCatalog(ctx)))
		defer func() { _ = s.Stop(ctx) }()

		Convey("When ranking opportunities", func() {
			ranked, err := s.RankOpportunities(ctx, service.RankRequest{RequesterID: "r1"})
			So(err, ShouldBeNil)

			Convey("Then items above the reputation are gated out", func() {
				ids := make([]string, len(ranked))
				for i, r := range ranked {
					ids[i] = r.Item.ID
				}
				So(ids, ShouldContain, "o1")
				So(ids, ShouldContain, "o3")
				So(ids, ShouldNotContain, "o2")
			})

			Convey("Then the declared interest ranks first", func() {
				So(ranked[0].Item.ID, ShouldEqual, "o1")
			})
		})

		Convey("When the limit is smaller than the pool", func() {
			ranked, err := s.RankOpportunities(ctx, service.RankRequest{RequesterID: "r1", Limit: 1})
			So(err, ShouldBeNil)
			So(ranked, ShouldHaveLength, 1)
		})

		Convey("When an anonymous requester brings a score", func() {
			ranked, err := s.RankOpportunities(ctx, service.RankRequest{
				Requester: &model.RequesterProfile{ReputationScore: 100},
				Criteria:  repository.OpportunityCriteria{Types: []string{"gig"}},
			})
			So(err, ShouldBeNil)
			So(ranked, ShouldHaveLength, 2)
		})
	})
}
