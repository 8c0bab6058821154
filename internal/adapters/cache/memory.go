package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/matchcast/internal/domain/types"
)

type entry struct {
	report  types.Report
	expires time.Time
}

// Memory is a process-local cache used when no redis address is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory(opts ...Option) *Memory {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	return &Memory{entries: make(map[string]entry), ttl: s.ttl, now: s.now}
}

// Get returns the cached report or ErrMiss. Expired entries are removed.
func (m *Memory) Get(_ context.Context, modelID, team string) (types.Report, error) {
	key := Key(modelID, team)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return types.Report{}, ErrMiss
	}
	if !m.now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return types.Report{}, ErrMiss
	}
	return e.report, nil
}

// Set stores report until the TTL elapses.
func (m *Memory) Set(_ context.Context, modelID, team string, report types.Report) error {
	m.mu.Lock()
	m.entries[Key(modelID, team)] = entry{report: report, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

// Len is the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close drops every entry.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}
