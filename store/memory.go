package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	expires time.Time
	value   []byte
}

// Memory is an in-process Store backed by a map.
type Memory struct {
	mu sync.RWMutex
	db map[string]memoryEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{db: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.db[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Put(_ context.Context, key string, expires time.Time, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db[key] = memoryEntry{expires, value}
	return nil
}

func (m *Memory) Purge(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.db, key)
	return nil
}

// Len reports the number of entries, including expired ones not yet purged.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.db)
}
