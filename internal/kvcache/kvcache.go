// Package kvcache is the durable key-value tier behind the street and
// city-progress caches. Implementations must treat expired or corrupted
// entries as absent, never as errors.
package kvcache

import (
	"context"
	"sync"
	"time"
)

// Store is a TTL'd key-value layer. Get reports a miss with ok=false.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memoryEntry struct {
	value    []byte
	cachedAt time.Time
	ttl      time.Duration
}

// Memory is an in-process Store used in tests and as a fallback when no
// redis is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().Sub(entry.cachedAt) > entry.ttl {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Expired entries are evicted on write.
	for k, e := range m.entries {
		if m.now().Sub(e.cachedAt) > e.ttl {
			delete(m.entries, k)
		}
	}

	m.entries[key] = memoryEntry{value: value, cachedAt: m.now(), ttl: ttl}
	return nil
}
