// Package cache defines the key-value store boundary used for the model
// catalog snapshot and the consensus result cache. Both are namespaced
// views over one store with independent TTLs.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a minimal TTL key-value store. Implementations must be safe for
// concurrent use; no compare-and-swap semantics are assumed and
// last-writer-wins races are tolerated.
type Store interface {
	// Get returns the value for key, and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Memory is a mutex-guarded map store with TTL expiry checked on read.
// It backs short-lived processes and tests where the ristretto store's
// buffered writes would be a nuisance.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns the value for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key. A non-positive TTL means no expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}
