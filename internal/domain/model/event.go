// Package model contains domain models passed between layers.
package model

import "time"

// EventKind tags what a contribution event records, e.g. "complete_gig".
type EventKind string

// Well-known event kinds. The set is open; unknown kinds are accepted.
const (
	KindCompleteGig      EventKind = "complete_gig"
	KindMentorSession    EventKind = "mentor_session"
	KindCommunityPost    EventKind = "community_post"
	KindPeerEndorsement  EventKind = "peer_endorsement"
	KindProfileCompleted EventKind = "profile_completed"
	KindPolicyViolation  EventKind = "policy_violation"
	KindNoShow           EventKind = "no_show"
)

// ContributionEvent is a single timestamped, signed-value behavioral record
// attributed to a subject. Events are immutable once recorded.
type ContributionEvent struct {
	EventID    string            `json:"event_id"`   // unique id for idempotency
	SubjectID  string            `json:"subject_id"` // who earned (or lost) the value
	Kind       EventKind         `json:"kind"`
	Value      int64             `json:"value"` // negative for penalties
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Age returns how old the event is relative to now.
func (e ContributionEvent) Age(now time.Time) time.Duration {
	return now.Sub(e.OccurredAt)
}

// ReputationSnapshot is the derived reputation of a subject at a point in time.
// It is never persisted by the core.
type ReputationSnapshot struct {
	SubjectID          string    `json:"subject_id"`
	Score              float64   `json:"score"`
	Level              int       `json:"level"`
	Rank               string    `json:"rank"`
	ComputedAt         time.Time `json:"computed_at"`
	NextLevelThreshold float64   `json:"next_level_threshold"`

	// Available is false when the snapshot is a default produced because the
	// subject's events could not be read. A zero score with Available=true is
	// a genuine zero.
	Available bool `json:"available"`
}
