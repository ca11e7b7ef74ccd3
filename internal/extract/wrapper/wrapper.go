// SPDX-License-Identifier: MIT

// Package wrapper bridges the platforms served by the sibling extraction
// service. URLs are recognized locally against per-site patterns; the
// extraction itself is forwarded as POST /extract to the service, whose
// answer already speaks the shared envelope schema.
package wrapper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/metrics"
	"github.com/mediagate/mediagate/internal/resilience"
)

// DefaultServiceURL is where the sibling service listens when nothing is
// configured.
const DefaultServiceURL = "http://127.0.0.1:5000"

type site struct {
	name     string
	nsfw     bool
	patterns []*regexp.Regexp
}

var sites = []site{
	{name: "youtube", patterns: []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:www\.|m\.|music\.)?youtube\.com/(?:watch\?(?:[^#]*&)?v=[\w-]{11}|shorts/[\w-]{11}|live/[\w-]{11})`),
		regexp.MustCompile(`^https?://youtu\.be/[\w-]{11}`),
	}},
	{name: "bilibili", patterns: []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:www\.|m\.)?bilibili\.com/video/(?:BV[0-9A-Za-z]{10}|av\d+)`),
		regexp.MustCompile(`^https?://b23\.tv/[0-9A-Za-z]+`),
	}},
	{name: "soundcloud", patterns: []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:www\.|m\.)?soundcloud\.com/[\w-]+/[\w-]+`),
		regexp.MustCompile(`^https?://on\.soundcloud\.com/[0-9A-Za-z]+`),
	}},
	{name: "reddit", patterns: []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:www\.|old\.|new\.|np\.)?reddit\.com/(?:r|user)/[\w-]+/comments/\w+`),
		regexp.MustCompile(`^https?://(?:www\.)?reddit\.com/gallery/\w+`),
		regexp.MustCompile(`^https?://redd\.it/\w+`),
	}},
	{name: "pinterest", patterns: []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:www\.|[a-z]{2}\.)?pinterest\.(?:com|ca|fr|de|jp|it|es|co\.uk|com\.au|com\.mx)/pin/\d+`),
		regexp.MustCompile(`^https?://pin\.it/[0-9A-Za-z]+`),
	}},
	{name: "redgifs", nsfw: true, patterns: []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:www\.|v3\.)?redgifs\.com/watch/[a-z0-9]+`),
	}},
}

func siteFor(rawURL string) *site {
	for i := range sites {
		for _, re := range sites[i].patterns {
			if re.MatchString(rawURL) {
				return &sites[i]
			}
		}
	}
	return nil
}

// Extractor implements extract.Extractor for every bridged platform at
// once. The registry consults it after all native extractors declined.
type Extractor struct {
	client  *fetch.Client
	logger  zerolog.Logger
	baseURL string
	pace    *rate.Limiter
	breaker *resilience.Breaker
}

func New(env extract.Env, baseURL string) *Extractor {
	if baseURL == "" {
		baseURL = DefaultServiceURL
	}
	return &Extractor{
		client:  env.Client,
		logger:  env.Logger.With().Str("component", "extract.wrapper").Logger(),
		baseURL: strings.TrimRight(baseURL, "/"),
		// The service runs one downloader process per request; pacing the
		// calls keeps a burst of extractions from piling up processes there.
		pace: rate.NewLimiter(rate.Limit(2), 4),
		// When the service is down every bridged call would otherwise eat
		// the full request timeout before failing.
		breaker: resilience.New("wrapper", 3, 30*time.Second),
	}
}

func (e *Extractor) Platform() string { return "wrapper" }

// Platforms enumerates the bridged platform names in pattern order.
func (e *Extractor) Platforms() []string {
	out := make([]string, len(sites))
	for i, s := range sites {
		out[i] = s.name
	}
	return out
}

func (e *Extractor) Patterns() []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, s := range sites {
		out = append(out, s.patterns...)
	}
	return out
}

func (e *Extractor) Match(rawURL string) bool { return siteFor(rawURL) != nil }

type bridgeRequest struct {
	URL    string `json:"url"`
	Cookie string `json:"cookie,omitempty"`
}

func (e *Extractor) Extract(ctx context.Context, rawURL string, opts extract.Options) (*extract.Result, error) {
	s := siteFor(rawURL)
	if s == nil {
		return nil, errs.E(errs.CodeInvalidURL, "URL does not belong to a bridged platform")
	}

	payload, err := json.Marshal(bridgeRequest{URL: rawURL, Cookie: opts.Cookie})
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "encode bridge request")
	}

	// Only infrastructure errors feed the breaker. Per-URL answers, caller
	// disconnects and pacing waits say nothing about the service's health,
	// so they ride out through callErr instead.
	var res *extract.Result
	var callErr error
	err = e.breaker.Execute(func() error {
		if perr := e.pace.Wait(ctx); perr != nil {
			callErr = errs.Wrap(perr, errs.CodeTimeout, "bridge request timed out while queued")
			return nil
		}
		resp, ferr := e.client.FetchText(ctx, e.baseURL+"/extract", fetch.Options{
			Method: http.MethodPost,
			Headers: map[string]string{
				"Content-Type": "application/json",
				"Accept":       "application/json",
			},
			Body: bytes.NewReader(payload),
		})
		if ferr != nil {
			if ctx.Err() == nil && serviceFailure(ferr) {
				return ferr
			}
			callErr = ferr
			return nil
		}
		res, callErr = decodeEnvelope(resp.Data)
		return nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			metrics.WrapperRequestsTotal.WithLabelValues("breaker_open").Inc()
			return nil, errs.E(errs.CodePlatformUnavailable, "extraction service is unavailable")
		}
		metrics.WrapperRequestsTotal.WithLabelValues(errs.CodeOf(err)).Inc()
		return nil, err
	}
	if callErr != nil {
		metrics.WrapperRequestsTotal.WithLabelValues(errs.CodeOf(callErr)).Inc()
		return nil, callErr
	}
	metrics.WrapperRequestsTotal.WithLabelValues("success").Inc()

	res.Platform = s.name
	if s.nsfw {
		res.IsNsfw = true
	}
	if res.SourceURL == "" {
		res.SourceURL = rawURL
	}
	e.logger.Debug().Str("platform", s.name).Int("items", len(res.Items)).Msg("bridge answered")
	return res, nil
}

// serviceFailure reports whether err means the service itself is unwell
// rather than a per-URL answer it produced.
func serviceFailure(err error) bool {
	switch errs.CodeOf(err) {
	case errs.CodeFetchFailed, errs.CodeTimeout, errs.CodeUpstreamError:
		return true
	}
	return false
}

// decodeEnvelope parses the service answer. The service always responds
// 200; failures arrive as a success=false envelope whose code vocabulary
// matches ours and is passed through.
func decodeEnvelope(data string) (*extract.Result, error) {
	var probe struct {
		Success bool               `json:"success"`
		Error   *extract.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return nil, errs.Wrap(err, errs.CodeExtractionFailed, "bridge answered with malformed JSON")
	}
	if !probe.Success {
		if probe.Error != nil && probe.Error.Code != "" {
			return nil, errs.E(probe.Error.Code, probe.Error.Message)
		}
		return nil, errs.E(errs.CodeExtractionFailed, "bridge reported failure without a code")
	}

	var res extract.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, errs.Wrap(err, errs.CodeExtractionFailed, "bridge envelope does not match the schema")
	}
	if err := validateEnvelope(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// validateEnvelope rejects answers that would blow up downstream: every
// result needs a content type and at least one item with sourced URLs.
func validateEnvelope(res *extract.Result) error {
	if res.ContentType == "" || len(res.Items) == 0 {
		return errs.E(errs.CodeExtractionFailed, "bridge envelope is missing content type or items")
	}
	for _, item := range res.Items {
		if len(item.Sources) == 0 {
			return errs.E(errs.CodeExtractionFailed, "bridge envelope has an item without sources")
		}
		for _, src := range item.Sources {
			if src.URL == "" {
				return errs.E(errs.CodeExtractionFailed, "bridge envelope has a source without a URL")
			}
		}
	}
	return nil
}
