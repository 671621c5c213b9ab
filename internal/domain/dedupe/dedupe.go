// Package dedupe tracks contribution event ids so a retried submission is
// applied to the ledger at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records seen event ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	// The check and the record happen under one lock.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a later submission is accepted again. Used when an
	// event was recorded but could not be queued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*memoryDeduper)

// WithMaxSize bounds how many ids are remembered. Once full, the oldest id is
// forgotten first. Zero or negative means unbounded.
func WithMaxSize(n int) Option {
	return func(d *memoryDeduper) {
		d.maxSize = n
	}
}

// memoryDeduper keeps ids in insertion order so the oldest can be evicted in
// O(1), and indexes them for O(1) lookup and removal.
type memoryDeduper struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a deduper remembering up to 50000 ids by default.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &memoryDeduper{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *memoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.index, oldest.Value.(string))
			d.order.Remove(oldest)
		}
	}
	d.index[id] = d.order.PushBack(id)
	return false
}

func (d *memoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[id]; ok {
		d.order.Remove(el)
		delete(d.index, id)
	}
}

func (d *memoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
