// SPDX-License-Identifier: MIT

// Package registry tracks which upstream URLs the delivery proxy is allowed
// to touch. Extraction registers every media URL it hands out; delivery
// resolves hashes and URLs back through here. Entries expire so the proxy
// never becomes an open relay.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/metrics"
)

const (
	// DefaultTTL is how long a registered URL stays resolvable.
	DefaultTTL = 5 * time.Minute
	// sweepInterval drives the background cleanup tick.
	sweepInterval = 60 * time.Second
)

// Registry maps fingerprints and URLs onto their registered targets.
type Registry struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// Options selects and configures a backend.
type Options struct {
	Backend       string // "memory", "redis" or "badger"
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Dir           string // badger data directory, "" for in-memory
	Logger        zerolog.Logger
}

// Open builds a registry over the configured backend.
func Open(opts Options) (*Registry, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case "", "memory":
		store = NewMemoryStore()
	case "redis":
		store, err = NewRedisStore(RedisConfig{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		}, opts.Logger)
	case "badger":
		store, err = NewBadgerStore(opts.Dir)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return &Registry{store: store, ttl: ttl, logger: opts.Logger}, nil
}

// NewWithStore wraps an existing store, used by tests and embedders.
func NewWithStore(store Store, ttl time.Duration, logger zerolog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{store: store, ttl: ttl, logger: logger}
}

// Fingerprint derives the 16-hex key for a URL from its canonical
// scheme://host+path form. Query strings and fragments do not contribute,
// so rotating signatures keep the same fingerprint.
func Fingerprint(raw string) string {
	normalized := raw
	if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Host != "" {
		normalized = canonicalForm(u)
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:8])
}

func canonicalForm(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()
}

// Add registers a URL under its fingerprint, its exact form and its
// canonical form, and returns the fingerprint. Re-adding within the TTL
// window refreshes the entry and yields the same key.
func (r *Registry) Add(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("registry add: not a URL: %q", raw)
	}
	normalized := canonicalForm(u)
	fp := Fingerprint(raw)

	for _, key := range []string{fp, raw, normalized} {
		if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
			return "", fmt.Errorf("registry add: %w", err)
		}
	}
	return fp, nil
}

// AddMany registers a batch and returns the fingerprints in input order.
// Unparseable entries get an empty fingerprint instead of failing the batch.
func (r *Registry) AddMany(ctx context.Context, raws []string) []string {
	out := make([]string, len(raws))
	for i, raw := range raws {
		fp, err := r.Add(ctx, raw)
		if err != nil {
			r.logger.Debug().Err(err).Msg("skipping unregistrable url")
			continue
		}
		out[i] = fp
	}
	return out
}

// Lookup resolves a fingerprint, exact URL or canonical URL to the
// registered target. The second return is false for unknown or expired keys.
func (r *Registry) Lookup(ctx context.Context, key string) (string, bool) {
	key = strings.TrimSpace(key)
	if v, ok, err := r.store.Get(ctx, key); err == nil && ok {
		metrics.IncRegistryLookup(true)
		return v, true
	}
	if u, err := url.Parse(key); err == nil && u.Host != "" {
		if v, ok, gerr := r.store.Get(ctx, canonicalForm(u)); gerr == nil && ok {
			metrics.IncRegistryLookup(true)
			return v, true
		}
	}
	metrics.IncRegistryLookup(false)
	return "", false
}

// Len reports the live entry count.
func (r *Registry) Len(ctx context.Context) int {
	n, err := r.store.Len(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("registry size unavailable")
		return 0
	}
	return n
}

// Ping reports the entry count without hiding backend errors. Readiness
// probes want the failure, not a zero.
func (r *Registry) Ping(ctx context.Context) (int, error) {
	return r.store.Len(ctx)
}

// Start runs the sweeper until ctx is cancelled. Expired entries are
// removed at least once a minute and the size gauge is refreshed.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := r.store.Sweep(ctx)
				if err != nil {
					r.logger.Warn().Err(err).Msg("registry sweep failed")
					continue
				}
				if removed > 0 {
					r.logger.Debug().Int("removed", removed).Msg("registry sweep")
				}
				metrics.RegistryEntries.Set(float64(r.Len(ctx)))
			}
		}
	}()
}

// Close releases the backend.
func (r *Registry) Close() error {
	return r.store.Close()
}
