// SPDX-License-Identifier: MIT

// Package api is the gateway's HTTP surface: extraction, byte delivery and
// the operational endpoints, assembled behind the canonical middleware stack.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/api/middleware"
	"github.com/mediagate/mediagate/internal/cache"
	"github.com/mediagate/mediagate/internal/config"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/health"
	"github.com/mediagate/mediagate/internal/history"
	"github.com/mediagate/mediagate/internal/media"
	"github.com/mediagate/mediagate/internal/mux"
	"github.com/mediagate/mediagate/internal/ratelimit"
	"github.com/mediagate/mediagate/internal/registry"
	"github.com/mediagate/mediagate/internal/ytdlp"
)

// Deps carries the server's collaborators. The optional ones may be nil and
// degrade their endpoint instead of failing construction.
type Deps struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Extractor  *extract.Registry
	Normalizer *media.Normalizer
	Registry   *registry.Registry
	Client     *fetch.Client
	Muxer      *mux.Muxer
	Health     *health.Manager

	// Optional.
	Results    cache.Cache[extract.Result]
	History    *history.Store
	Downloader *ytdlp.Runner
}

// Server owns the HTTP handlers. All state is read-only after New; the
// mutable pieces (registry, cache, history) are concurrency-safe themselves.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	extractor  *extract.Registry
	normalizer *media.Normalizer
	registry   *registry.Registry
	results    cache.Cache[extract.Result]
	history    *history.Store
	muxer      *mux.Muxer
	downloader *ytdlp.Runner
	client     *fetch.Client
	limiter    *ratelimit.Limiter
	health     *health.Manager
	started    time.Time
}

// New validates deps and builds the server.
func New(d Deps) (*Server, error) {
	switch {
	case d.Config == nil:
		return nil, fmt.Errorf("api: config is required")
	case d.Extractor == nil:
		return nil, fmt.Errorf("api: extractor registry is required")
	case d.Normalizer == nil:
		return nil, fmt.Errorf("api: normalizer is required")
	case d.Registry == nil:
		return nil, fmt.Errorf("api: url registry is required")
	case d.Client == nil:
		return nil, fmt.Errorf("api: fetch client is required")
	case d.Muxer == nil:
		return nil, fmt.Errorf("api: muxer is required")
	case d.Health == nil:
		return nil, fmt.Errorf("api: health manager is required")
	}

	results := d.Results
	if results == nil {
		results = cache.NewNoop[extract.Result]()
	}

	return &Server{
		cfg:        d.Config,
		logger:     d.Logger,
		extractor:  d.Extractor,
		normalizer: d.Normalizer,
		registry:   d.Registry,
		results:    results,
		history:    d.History,
		muxer:      d.Muxer,
		downloader: d.Downloader,
		client:     d.Client,
		limiter:    ratelimit.New(ratelimit.PerMinute("extract", d.Config.ExtractRateMax)),
		health:     d.Health,
		started:    time.Now(),
	}, nil
}

// Handler assembles the route table behind the middleware stack.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		APIKeys:          s.cfg.APIKeys,
		RateLimitEnabled: s.cfg.RateLimitEnabled,
		RateLimitMax:     s.cfg.RateLimitMax,
		RateLimitWindow:  s.cfg.RateLimitWindow,
		TracingService:   "mediagate-api",
		EnableMetrics:    true,
		EnableLogging:    true,
	})
	s.routes(r)
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Post("/extract", s.handleExtract)
	r.Post("/api/extract", s.handleExtract)

	r.Get("/stream", s.handleStream)
	r.Get("/download", s.handleDownload)
	r.Get("/thumbnail", s.handleThumbnail)
	r.Get("/hls-proxy", s.handleHLSProxy)
	r.Get("/hls-stream", s.handleHLSStream)
	r.Get("/merge", s.handleMerge)

	r.Get("/status", s.handleStatus)
	r.Get("/health", s.health.ServeHealth)
	r.Get("/ready", s.health.ServeReady)
	r.Get("/events", s.handleEvents)
	r.Get("/changelog", s.handleChangelog)

	if s.history.Enabled() {
		r.Get("/api/history", s.handleHistory)
	}
}
