package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is a bounded in-process TTL cache. Expired entries are dropped on
// read and swept on insert; when the sweep is not enough the oldest entry
// is evicted so the map never grows past maxEntries.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Memory{entries: make(map[string]entry), maxEntries: maxEntries}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.maxEntries {
		m.sweepLocked()
	}
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (m *Memory) sweepLocked() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	for len(m.entries) >= m.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range m.entries {
			if oldestKey == "" || e.expiresAt.Before(oldest) {
				oldestKey = k
				oldest = e.expiresAt
			}
		}
		delete(m.entries, oldestKey)
	}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
