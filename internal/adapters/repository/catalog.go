package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/pkg/metrics"
)

// CandidateCriteria narrows the candidate pool. Empty fields do not filter.
type CandidateCriteria struct {
	// Specializations keeps candidates with at least one of them.
	Specializations []string `json:"specializations,omitempty"`
	Location        string   `json:"location,omitempty"`
	// ActiveOnly drops inactive candidates. Off by default so the matcher can
	// explain why an inactive candidate was not picked.
	ActiveOnly bool `json:"active_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
}

// OpportunityCriteria narrows the opportunity pool. Empty fields do not filter.
type OpportunityCriteria struct {
	Types      []string `json:"types,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	ActiveOnly bool     `json:"active_only,omitempty"`
}

// CatalogReader is the read side of the catalog consumed by the engine.
type CatalogReader interface {
	Requester(ctx context.Context, id string) (model.RequesterProfile, error)
	Candidates(ctx context.Context, c CandidateCriteria) ([]model.CandidateProfile, error)
	Opportunities(ctx context.Context, c OpportunityCriteria) ([]model.RankableItem, error)
	Interests(ctx context.Context, userID string) ([]model.InterestRecord, error)
}

// CatalogWriter upserts catalog entities.
type CatalogWriter interface {
	PutRequester(ctx context.Context, r model.RequesterProfile) error
	PutCandidate(ctx context.Context, c model.CandidateProfile) error
	PutOpportunity(ctx context.Context, it model.RankableItem) error
	PutInterests(ctx context.Context, userID string, records []model.InterestRecord) error
}

// Catalog is both sides.
type Catalog interface {
	CatalogReader
	CatalogWriter
}

// CatalogCounts reports how many entities of each kind are stored.
type CatalogCounts struct {
	Requesters    int `json:"requesters"`
	Candidates    int `json:"candidates"`
	Opportunities int `json:"opportunities"`
	Interests     int `json:"interests"`
}

// MemoryCatalog keeps the catalog in process memory.
type MemoryCatalog struct {
	mu            sync.RWMutex
	requesters    map[string]model.RequesterProfile
	candidates    map[string]model.CandidateProfile
	opportunities map[string]model.RankableItem
	interests     map[string][]model.InterestRecord
}

var _ Catalog = (*MemoryCatalog)(nil)

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		requesters:    make(map[string]model.RequesterProfile),
		candidates:    make(map[string]model.CandidateProfile),
		opportunities: make(map[string]model.RankableItem),
		interests:     make(map[string][]model.InterestRecord),
	}
}

func (c *MemoryCatalog) Requester(ctx context.Context, id string) (model.RequesterProfile, error) {
	if err := ctx.Err(); err != nil {
		return model.RequesterProfile{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.requesters[id]
	if !ok {
		return model.RequesterProfile{}, fmt.Errorf("requester %q: %w", id, ErrNotFound)
	}
	return r, nil
}

// Candidates returns matching candidates ordered by id.
func (c *MemoryCatalog) Candidates(ctx context.Context, cr CandidateCriteria) ([]model.CandidateProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.CandidateProfile, 0, len(c.candidates))
	for _, id := range sortedKeys(c.candidates) {
		cand := c.candidates[id]
		a := cand.Attributes
		if cr.ActiveOnly && !a.IsActive {
			continue
		}
		if len(cr.Specializations) > 0 && !anyEqualFold(cr.Specializations, a.Specializations) {
			continue
		}
		if cr.Location != "" && !strings.EqualFold(strings.TrimSpace(cr.Location), strings.TrimSpace(a.Location)) {
			continue
		}
		out = append(out, cand)
		if cr.Limit > 0 && len(out) == cr.Limit {
			break
		}
	}
	return out, nil
}

// Opportunities returns matching items ordered by id.
func (c *MemoryCatalog) Opportunities(ctx context.Context, cr OpportunityCriteria) ([]model.RankableItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.RankableItem, 0, len(c.opportunities))
	for _, id := range sortedKeys(c.opportunities) {
		it := c.opportunities[id]
		if cr.ActiveOnly && !it.IsActive {
			continue
		}
		if len(cr.Types) > 0 && !anyEqualFold(cr.Types, []string{it.Type}) {
			continue
		}
		if len(cr.Categories) > 0 && !anyEqualFold(cr.Categories, []string{it.Category}) {
			continue
		}
		if len(cr.Tags) > 0 && !anyEqualFold(cr.Tags, it.Tags) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (c *MemoryCatalog) Interests(ctx context.Context, userID string) ([]model.InterestRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.interests[userID]
	out := make([]model.InterestRecord, len(src))
	copy(out, src)
	return out, nil
}

func (c *MemoryCatalog) PutRequester(ctx context.Context, r model.RequesterProfile) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("requester: missing id")
	}
	c.mu.Lock()
	c.requesters[r.ID] = r
	n := len(c.requesters)
	c.mu.Unlock()
	metrics.UpdateCatalogEntities("requesters", n)
	return ctx.Err()
}

func (c *MemoryCatalog) PutCandidate(ctx context.Context, cand model.CandidateProfile) error {
	if strings.TrimSpace(cand.ID) == "" {
		return fmt.Errorf("candidate: missing id")
	}
	c.mu.Lock()
	c.candidates[cand.ID] = cand
	n := len(c.candidates)
	c.mu.Unlock()
	metrics.UpdateCatalogEntities("candidates", n)
	return ctx.Err()
}

func (c *MemoryCatalog) PutOpportunity(ctx context.Context, it model.RankableItem) error {
	if strings.TrimSpace(it.ID) == "" {
		return fmt.Errorf("opportunity: missing id")
	}
	c.mu.Lock()
	c.opportunities[it.ID] = it
	n := len(c.opportunities)
	c.mu.Unlock()
	metrics.UpdateCatalogEntities("opportunities", n)
	return ctx.Err()
}

// PutInterests replaces every interest record of userID.
func (c *MemoryCatalog) PutInterests(ctx context.Context, userID string, records []model.InterestRecord) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("interests: missing user id")
	}
	cp := make([]model.InterestRecord, len(records))
	for i, r := range records {
		r.UserID = userID
		cp[i] = r
	}
	c.mu.Lock()
	c.interests[userID] = cp
	n := len(c.interests)
	c.mu.Unlock()
	metrics.UpdateCatalogEntities("interests", n)
	return ctx.Err()
}

// Counts reports the catalog size.
func (c *MemoryCatalog) Counts() CatalogCounts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CatalogCounts{
		Requesters:    len(c.requesters),
		Candidates:    len(c.candidates),
		Opportunities: len(c.opportunities),
		Interests:     len(c.interests),
	}
}

// CatalogSeed is the on-disk shape of a catalog file.
type CatalogSeed struct {
	Requesters    []model.RequesterProfile `koanf:"requesters"`
	Candidates    []model.CandidateProfile `koanf:"candidates"`
	Opportunities []model.RankableItem     `koanf:"opportunities"`
	Interests     []model.InterestRecord   `koanf:"interests"`
}

// LoadCatalogFile parses a YAML catalog file.
func LoadCatalogFile(path string) (CatalogSeed, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return CatalogSeed{}, fmt.Errorf("load catalog %s: %w", path, err)
	}
	var seed CatalogSeed
	if err := k.UnmarshalWithConf("", &seed, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return CatalogSeed{}, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return seed, nil
}

// Seed writes every entity of seed into w.
func Seed(ctx context.Context, w CatalogWriter, seed CatalogSeed) error {
	for _, r := range seed.Requesters {
		if err := w.PutRequester(ctx, r); err != nil {
			return err
		}
	}
	for _, c := range seed.Candidates {
		if err := w.PutCandidate(ctx, c); err != nil {
			return err
		}
	}
	for _, it := range seed.Opportunities {
		if err := w.PutOpportunity(ctx, it); err != nil {
			return err
		}
	}
	byUser := map[string][]model.InterestRecord{}
	for _, in := range seed.Interests {
		byUser[in.UserID] = append(byUser[in.UserID], in)
	}
	for _, user := range sortedKeys(byUser) {
		if err := w.PutInterests(ctx, user, byUser[user]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func anyEqualFold(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(w), strings.TrimSpace(h)) {
				return true
			}
		}
	}
	return false
}
