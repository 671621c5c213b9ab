// Package ranking orders opportunities for one requester.
//
// Relevance is an unbounded additive integer. It only means something
// relative to the other items in the same call, so unlike match scores it is
// never clamped.
package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/rapport/internal/domain/model"
)

// Relevance points.
const (
	lookingForPoints       = 50
	interestCategoryPoints = 30
	interestTypePoints     = 40
	subcategoryPoints      = 10
	tagPoints              = 5
	recencyPoints          = 10

	recencyWindow = 7 * 24 * time.Hour

	defaultLimit = 10
)

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithDefaultLimit sets the limit used when a call passes none.
func WithDefaultLimit(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.defaultLimit = n
		}
	}
}

// WithSegmentGate also drops items whose target segments do not include any
// of the requester's segments. Items without target segments always pass.
func WithSegmentGate(enabled bool) Option {
	return func(r *Ranker) {
		r.segmentGate = enabled
	}
}

// WithClock sets the time source for expiry and recency.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) {
		if now != nil {
			r.now = now
		}
	}
}

// Ranker gates and orders opportunities. Safe for concurrent use.
type Ranker struct {
	defaultLimit int
	segmentGate  bool
	now          func() time.Time
}

// NewRanker creates a Ranker with a default limit of 10.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultLimit returns the limit used for non-positive limits.
func (r *Ranker) DefaultLimit() int { return r.defaultLimit }

// Gate splits items into those the requester may see and a count of the rest.
// An item is dropped when it needs more reputation than the requester has,
// is inactive, or has expired.
func (r *Ranker) Gate(req model.RequesterProfile, items []model.RankableItem) ([]model.RankableItem, int) {
	now := r.now()
	kept := make([]model.RankableItem, 0, len(items))
	for _, it := range items {
		if r.eligible(req, it, now) {
			kept = append(kept, it)
		}
	}
	return kept, len(items) - len(kept)
}

func (r *Ranker) eligible(req model.RequesterProfile, it model.RankableItem, now time.Time) bool {
	if it.RequiredReputation > req.ReputationScore || !it.IsActive || it.Expired(now) {
		return false
	}
	if r.segmentGate && len(it.TargetSegments) > 0 && overlap(it.TargetSegments, req.Segments) == 0 {
		return false
	}
	return true
}

// Relevance scores one item for the requester and its interests.
func (r *Ranker) Relevance(req model.RequesterProfile, interests []model.InterestRecord, it model.RankableItem) int {
	return relevance(req, interests, it, r.now())
}

func relevance(req model.RequesterProfile, interests []model.InterestRecord, it model.RankableItem, now time.Time) int {
	score := it.Priority
	if contains(req.LookingFor, it.Type) {
		score += lookingForPoints
	}
	for _, in := range interests {
		if in.Category != "" && strings.EqualFold(in.Category, it.Category) {
			score += interestCategoryPoints
		}
		if contains(in.LookingFor, it.Type) {
			score += interestTypePoints
		}
		score += subcategoryPoints * overlap(in.Subcategories, it.Subcategories)
	}
	tags := append(append([]string{}, req.Tags...), req.Desired.Tags...)
	score += tagPoints * overlap(it.Tags, tags)
	if !it.CreatedAt.IsZero() && now.Sub(it.CreatedAt) < recencyWindow {
		score += recencyPoints
	}
	return score
}

// Rank gates the items, scores the survivors and returns at most limit of
// them, most relevant first. Ties go to the newer item, then the lower id.
// A non-positive limit means the default.
func (r *Ranker) Rank(req model.RequesterProfile, interests []model.InterestRecord, items []model.RankableItem, limit int) []model.RankedItem {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	now := r.now()
	out := make([]model.RankedItem, 0, len(items))
	for _, it := range items {
		if !r.eligible(req, it, now) {
			continue
		}
		out = append(out, model.RankedItem{Item: it, Relevance: relevance(req, interests, it, now)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		return a.Item.ID < b.Item.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// overlap counts distinct entries of a that also appear in b.
func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[strings.ToLower(s)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	n := 0
	for _, s := range a {
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := in[k]; ok {
			n++
		}
	}
	return n
}
