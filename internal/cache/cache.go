// Package cache holds recently scored results and generated narratives.
//
// The cache is best-effort: a miss or a backend failure only means the
// caller goes to the data store. Nothing here returns an error for a
// lookup.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

// DefaultTTL is used when a cache is created with a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// Cache stores results and narratives by diagnosis id.
type Cache interface {
	PutResult(ctx context.Context, r model.DiagnosisResult)
	GetResult(ctx context.Context, id string) (model.DiagnosisResult, bool)
	PutNarrative(ctx context.Context, id string, n *model.Narrative)
	GetNarrative(ctx context.Context, id string) (*model.Narrative, bool)
	Close() error
}

type entry struct {
	result    *model.DiagnosisResult
	narrative *model.Narrative
	expires   time.Time
}

// Memory is an in-process Cache with per-entry expiry.
type Memory struct {
	mu         sync.Mutex
	results    map[string]entry
	narratives map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemory creates a memory cache. maxEntries bounds each map; zero
// means unbounded.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		results:    make(map[string]entry),
		narratives: make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) PutResult(_ context.Context, r model.DiagnosisResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := r.Clone()
	m.put(m.results, r.DiagnosisID, entry{result: &cp})
}

func (m *Memory) GetResult(_ context.Context, id string) (model.DiagnosisResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(m.results, id)
	if !ok {
		return model.DiagnosisResult{}, false
	}
	return e.result.Clone(), true
}

func (m *Memory) PutNarrative(_ context.Context, id string, n *model.Narrative) {
	if n == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(m.narratives, id, entry{narrative: n.Clone()})
}

func (m *Memory) GetNarrative(_ context.Context, id string) (*model.Narrative, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(m.narratives, id)
	if !ok {
		return nil, false
	}
	return e.narrative.Clone(), true
}

// Len returns the number of live results.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.results)
	return len(m.results)
}

func (m *Memory) Close() error { return nil }

// put must be called with mu held.
func (m *Memory) put(items map[string]entry, id string, e entry) {
	if _, exists := items[id]; !exists && m.maxEntries > 0 && len(items) >= m.maxEntries {
		m.sweep(items)
		if len(items) >= m.maxEntries {
			m.evictOldest(items)
		}
	}
	e.expires = m.now().Add(m.ttl)
	items[id] = e
}

func (m *Memory) get(items map[string]entry, id string) (entry, bool) {
	e, ok := items[id]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.expires) {
		delete(items, id)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) sweep(items map[string]entry) {
	now := m.now()
	for id, e := range items {
		if !now.Before(e.expires) {
			delete(items, id)
		}
	}
}

func (m *Memory) evictOldest(items map[string]entry) {
	var oldestID string
	var oldest time.Time
	for id, e := range items {
		if oldestID == "" || e.expires.Before(oldest) {
			oldestID, oldest = id, e.expires
		}
	}
	delete(items, oldestID)
}
