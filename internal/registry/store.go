// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"sync"
	"time"
)

// Store is the key-value contract a registry backend must satisfy. Values
// are plain strings; expiry is the backend's job.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	// Sweep reclaims expired entries where the backend does not do so on
	// its own, returning how many were removed.
	Sweep(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

type memoryEntry struct {
	value      string
	expiration time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiration)
}

// MemoryStore keeps entries in a mutex-guarded map. Expired entries are
// invisible to Get immediately and physically removed by Sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiration: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.entries[key]
	if !found || e.expired(time.Now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
