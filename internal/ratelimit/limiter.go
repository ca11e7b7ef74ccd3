// SPDX-License-Identifier: MIT

// Package ratelimit caps expensive operations per client IP.
//
// The gateway-wide request limit lives in the router middleware; this
// package is the tighter token bucket in front of extraction, which costs
// several upstream round trips per call. Each client IP gets its own
// bucket, created on first sight and dropped again after going idle.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mediagate/mediagate/internal/metrics"
)

// Config holds the per-IP limits for one scope.
type Config struct {
	// Scope names the limiter in metrics ("extract").
	Scope string

	// Rate is the sustained refill rate per IP; Burst is the bucket size.
	Rate  rate.Limit
	Burst int

	// CleanupInterval bounds both how often idle buckets are collected and
	// how long a bucket may sit unused before collection.
	CleanupInterval time.Duration
}

// PerMinute builds a config allowing n requests per minute per IP, with
// the full allowance available as a burst.
func PerMinute(scope string, n int) Config {
	if n < 1 {
		n = 1
	}
	return Config{
		Scope:           scope,
		Rate:            rate.Limit(float64(n) / 60),
		Burst:           n,
		CleanupInterval: 5 * time.Minute,
	}
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per client IP.
type Limiter struct {
	cfg Config

	mu        sync.Mutex
	perIP     map[string]*client
	lastSweep time.Time
}

// New creates a limiter with the given config.
func New(cfg Config) *Limiter {
	if cfg.Rate <= 0 {
		cfg.Rate = rate.Limit(1.0 / 6)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Limiter{
		cfg:       cfg,
		perIP:     make(map[string]*client),
		lastSweep: time.Now(),
	}
}

// Allow reports whether ip may proceed now. When refused, retryAfter is
// the wait until the bucket next has a token.
func (l *Limiter) Allow(ip string) (ok bool, retryAfter time.Duration) {
	c := l.getClient(ip)

	res := c.lim.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		metrics.RateLimitedTotal.WithLabelValues(l.cfg.Scope).Inc()
		return false, delay
	}
	return true, 0
}

func (l *Limiter) getClient(ip string) *client {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, exists := l.perIP[ip]
	if !exists {
		c = &client{lim: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.perIP[ip] = c
	}
	c.lastSeen = now
	l.maybeSweep(now)
	return c
}

// maybeSweep drops buckets idle past the cleanup interval. Caller holds l.mu.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.CleanupInterval {
		return
	}
	for ip, c := range l.perIP {
		if now.Sub(c.lastSeen) >= l.cfg.CleanupInterval {
			delete(l.perIP, ip)
		}
	}
	l.lastSweep = now
}

// RetrySeconds converts a retry delay into a Retry-After header value,
// rounded up so clients never come back early.
func RetrySeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ClientIP extracts the originating client IP from the request, honoring
// the usual reverse proxy headers before falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Multiple hops arrive as "client, proxy1, proxy2".
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			xff = xff[:idx]
		}
		if xff = strings.TrimSpace(xff); xff != "" {
			return xff
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
