// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/history"
	"github.com/mediagate/mediagate/internal/ratelimit"
	"github.com/mediagate/mediagate/internal/telemetry"
)

// maxExtractBody bounds the request body. A URL plus a cookie fits with room
// to spare.
const maxExtractBody = 1 << 20

type extractRequest struct {
	URL    string `json:"url"`
	Cookie string `json:"cookie,omitempty"`
}

// handleExtract runs the extraction pipeline: rate limit, validate, cache
// lookup, extract, normalize, record.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if ok, retry := s.limiter.Allow(ratelimit.ClientIP(r)); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(ratelimit.RetrySeconds(retry)))
		s.writeCode(w, r, started, http.StatusTooManyRequests,
			errs.CodeRateLimited, "Extraction rate limit reached")
		return
	}

	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExtractBody)).Decode(&req); err != nil {
		s.writeCode(w, r, started, http.StatusBadRequest,
			errs.CodeInvalidURL, "Request body must be JSON with a url field")
		return
	}
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		s.writeCode(w, r, started, http.StatusBadRequest,
			errs.CodeInvalidURL, "url is required")
		return
	}
	if u, err := url.Parse(rawURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		s.writeCode(w, r, started, http.StatusBadRequest,
			errs.CodeInvalidURL, errs.DefaultMessage(errs.CodeInvalidURL))
		return
	}

	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	accessMode := s.accessMode(r)
	clientCookie := strings.TrimSpace(req.Cookie)

	sum := sha256.Sum256([]byte(rawURL))
	cacheKey := "result:" + hex.EncodeToString(sum[:8])

	// Cookie-bearing requests bypass the cache in both directions: their
	// result may expose private content keyed to that cookie.
	if clientCookie == "" {
		if cached, ok := s.results.Get(ctx, cacheKey); ok {
			res := cached
			s.reregister(ctx, &res)
			res.Meta.AccessMode = accessMode
			res.FinishMeta(started)
			span.SetAttributes(telemetry.CachedAttribute(true))
			span.SetAttributes(telemetry.ExtractionAttributes(
				res.Platform, res.ContentType, accessMode, len(res.Items))...)
			writeJSON(w, http.StatusOK, &res)
			return
		}
	}

	res, err := s.extractor.Extract(ctx, rawURL, clientCookie)
	if err != nil {
		code := errs.CodeOf(err)
		s.history.Record(history.Entry{
			Platform: s.platformOf(rawURL),
			Outcome:  code,
			Duration: time.Since(started),
		})
		span.SetAttributes(telemetry.ErrorAttributes(code)...)
		s.writeError(w, r, started, err)
		return
	}

	s.normalizer.Normalize(ctx, res)
	res.Meta.AccessMode = accessMode
	res.FinishMeta(started)

	if clientCookie == "" && !res.UsedCookie {
		s.results.Set(ctx, cacheKey, *res, s.cfg.ResultCacheTTL)
	}

	s.history.Record(history.Entry{
		Platform:    res.Platform,
		ContentType: res.ContentType,
		Outcome:     "success",
		Duration:    time.Since(started),
		Items:       len(res.Items),
	})

	span.SetAttributes(telemetry.CachedAttribute(false))
	span.SetAttributes(telemetry.ExtractionAttributes(
		res.Platform, res.ContentType, accessMode, len(res.Items))...)
	writeJSON(w, http.StatusOK, res)
}

// reregister refreshes registry entries for a cached envelope so the
// delivery hashes inside it stay resolvable past the registry TTL.
func (s *Server) reregister(ctx context.Context, res *extract.Result) {
	var urls []string
	for _, item := range res.Items {
		if item.Thumbnail != "" {
			urls = append(urls, item.Thumbnail)
		}
		for _, src := range item.Sources {
			if src.URL != "" {
				urls = append(urls, src.URL)
			}
		}
	}
	s.registry.AddMany(ctx, urls)
}

func (s *Server) platformOf(rawURL string) string {
	if ex := s.extractor.Match(rawURL); ex != nil {
		return ex.Platform()
	}
	return "unknown"
}
