package model

import "time"

// RankableItem is an opportunity (gig, job, grant, mentorship slot) that can be
// ranked for a user.
type RankableItem struct {
	ID                 string     `json:"id" koanf:"id"`
	Type               string     `json:"type" koanf:"type"`
	Category           string     `json:"category" koanf:"category"`
	Subcategories      []string   `json:"subcategories" koanf:"subcategories"`
	RequiredReputation float64    `json:"required_reputation" koanf:"required_reputation"`
	Tags               []string   `json:"tags" koanf:"tags"`
	TargetSegments     []string   `json:"target_segments" koanf:"target_segments"`
	Priority           int        `json:"priority" koanf:"priority"`
	IsActive           bool       `json:"is_active" koanf:"is_active"`
	CreatedAt          time.Time  `json:"created_at" koanf:"created_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty" koanf:"expires_at"`
}

// Expired reports whether the item has an expiry in the past.
func (i RankableItem) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// InterestRecord is one declared interest of a user.
type InterestRecord struct {
	UserID        string   `json:"user_id" koanf:"user_id"`
	Category      string   `json:"category" koanf:"category"`
	Subcategories []string `json:"subcategories" koanf:"subcategories"`
	LookingFor    []string `json:"looking_for" koanf:"looking_for"`
}

// RankedItem pairs an item with its relevance for one requester.
type RankedItem struct {
	Item      RankableItem `json:"item"`
	Relevance int          `json:"relevance"`
}
