package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/metrics"
)

// Entry is one subject's place in the standings. Ties share a rank and the
// following rank is skipped (1, 1, 3).
type Entry struct {
	Rank       int       `json:"rank"`
	SubjectID  string    `json:"subject_id"`
	Score      float64   `json:"score"`
	Level      int       `json:"level"`
	Label      string    `json:"label"`
	ComputedAt time.Time `json:"computed_at"`
}

type standing struct {
	score      float64
	level      int
	label      string
	computedAt time.Time
}

type node struct {
	id    string
	score float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes have a strictly higher score.
func countAbove(n *node, score float64) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	collectTopN(n.right, limit, out)
}

// StandingsStore is an in-memory, treap-backed ranking of subjects by their
// latest reputation score. It is safe for concurrent use.
//
// Ordering: score DESC, then subject id ASC. "less" means ranks earlier, so an
// in-order traversal yields the standings from best to worst. Every node keeps
// its subtree size, which gives the rank of a subject in O(log n).
type StandingsStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]standing
}

// NewStandingsStore constructs an empty store.
func NewStandingsStore() *StandingsStore {
	return &StandingsStore{byID: make(map[string]standing)}
}

// Set replaces the subject's standing with the snapshot. It reports whether
// anything changed. Unavailable snapshots are ignored so a ledger outage
// does not wipe a subject's place, and a snapshot computed before the stored
// one is dropped.
func (s *StandingsStore) Set(ctx context.Context, snap model.ReputationSnapshot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if snap.SubjectID == "" || !snap.Available {
		return false, nil
	}
	score := snap.Score
	if math.IsNaN(score) || score < 0 {
		score = 0
	}
	next := standing{score: score, level: snap.Level, label: snap.Rank, computedAt: snap.ComputedAt}

	s.mu.Lock()
	old, ok := s.byID[snap.SubjectID]
	if ok && next.computedAt.Before(old.computedAt) {
		s.mu.Unlock()
		return false, nil
	}
	if ok && old.score == next.score && old.level == next.level && old.label == next.label {
		s.byID[snap.SubjectID] = next
		s.mu.Unlock()
		return false, nil
	}
	if ok {
		s.root = deleteNode(s.root, snap.SubjectID, old.score)
	}
	s.byID[snap.SubjectID] = next
	s.root = insert(s.root, snap.SubjectID, score, rand.Uint64())
	size := len(s.byID)
	s.mu.Unlock()

	metrics.RecordStandingsUpdate()
	if !ok {
		metrics.UpdateStandingsSize(size)
	}
	return true, nil
}

// Standing returns the subject's entry in O(log n).
func (s *StandingsStore) Standing(ctx context.Context, subjectID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[subjectID]
	if !ok {
		metrics.RecordErrorByComponent("standings", "not_found")
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:       countAbove(s.root, st.score) + 1,
		SubjectID:  subjectID,
		Score:      st.score,
		Level:      st.level,
		Label:      st.label,
		ComputedAt: st.computedAt,
	}, nil
}

// TopN returns the best n entries.
func (s *StandingsStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if n < 1 {
		metrics.RecordErrorByComponent("standings", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := make([]*node, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &nodes)

	out := make([]Entry, len(nodes))
	for i, nd := range nodes {
		st := s.byID[nd.id]
		rank := i + 1
		if i > 0 && nd.score == nodes[i-1].score {
			rank = out[i-1].Rank
		}
		out[i] = Entry{
			Rank:       rank,
			SubjectID:  nd.id,
			Score:      st.score,
			Level:      st.level,
			Label:      st.label,
			ComputedAt: st.computedAt,
		}
	}
	return out, nil
}

// Count returns the number of ranked subjects.
func (s *StandingsStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
