// Package cache implements ports.ResultCache over process memory, BadgerDB
// and Redis.
package cache

import (
	"context"
	"sync"
	"time"

	"edgeproof/domain/core"
	"edgeproof/ports"
)

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// Memory is a process-local cache with lazy expiry
type Memory struct {
	mu      sync.RWMutex
	entries map[core.Hash]memoryEntry
	now     func() time.Time
}

var _ ports.ResultCache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[core.Hash]memoryEntry), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key core.Hash) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set stores a copy of value; ttl <= 0 keeps it until the process exits
func (m *Memory) Set(ctx context.Context, key core.Hash, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
