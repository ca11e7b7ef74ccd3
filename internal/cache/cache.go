// SPDX-License-Identifier: MIT

// Package cache provides small typed TTL caches with in-memory and Redis
// backends. The gateway keeps extraction envelopes in one so a link shared
// into a busy channel does not hit the platform once per viewer.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a typed key/value store with per-entry TTL. Implementations are
// safe for concurrent use. Entries with a non-positive TTL are not stored.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Stats() Stats
	Close() error
}

// Stats holds cache performance counters. Size is -1 when the backend
// cannot count its entries cheaply.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
	Size      int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process cache with a background janitor.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates an in-memory cache. A positive cleanupInterval starts a
// janitor goroutine that evicts expired entries; Close stops it.
func NewMemory[V any](cleanupInterval time.Duration) *Memory[V] {
	c := &Memory[V]{
		entries: make(map[string]entry[V]),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || time.Now().After(e.expiresAt) {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

func (c *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *Memory[V]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Memory[V]) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
	}
}

// Close stops the janitor. Safe to call more than once.
func (c *Memory[V]) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Memory[V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Memory[V]) deleteExpired() {
	now := time.Now()

	c.mu.Lock()
	var evicted int64
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	c.mu.Unlock()

	c.evictions.Add(evicted)
}

// Noop is a cache that stores nothing; it stands in when caching is
// disabled so call sites stay branch-free.
type Noop[V any] struct{}

func NewNoop[V any]() Noop[V] { return Noop[V]{} }

func (Noop[V]) Get(context.Context, string) (V, bool) {
	var zero V
	return zero, false
}
func (Noop[V]) Set(context.Context, string, V, time.Duration) {}
func (Noop[V]) Delete(context.Context, string)                {}
func (Noop[V]) Stats() Stats                                  { return Stats{} }
func (Noop[V]) Close() error                                  { return nil }
