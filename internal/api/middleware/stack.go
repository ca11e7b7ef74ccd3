// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress middleware for the gateway.
package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// StackConfig configures the canonical ingress middleware stack, applied in
// one place so the ordering cannot drift between servers.
type StackConfig struct {
	AllowedOrigins []string
	APIKeys        []string

	// Rate limiting across the whole surface.
	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration

	// Observability. An empty TracingService disables span creation.
	TracingService string
	EnableMetrics  bool
	EnableLogging  bool
}

// NewRouter constructs a chi router with the canonical stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the stack to r. Order matters: the recoverer is the
// outermost net, the access gate runs last so refusals still carry request
// IDs, CORS and security headers.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(chimw.RealIP)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(SecurityHeaders())
	r.Use(InputFilter())
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.EnableLogging {
		r.Use(Logging())
	}
	if cfg.RateLimitEnabled {
		r.Use(RateLimit(cfg.RateLimitMax, cfg.RateLimitWindow))
	}
	r.Use(AccessGate(cfg.APIKeys, cfg.AllowedOrigins))
}
