// SPDX-License-Identifier: MIT

// Package tiktok extracts TikTok and Douyin posts through the hybrid
// helper API. The helper resolves short links and watermark removal on
// its side, so this extractor is a single query plus response mapping.
// No credential tiers exist for this platform.
package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

const platform = "tiktok"

// DefaultAPIURL is the hybrid video_data endpoint of a local helper.
const DefaultAPIURL = "http://127.0.0.1:3035/api/hybrid/video_data"

var (
	tiktokRe      = regexp.MustCompile(`^https?://(?:www\.|m\.)?tiktok\.com/(?:@[\w.-]+/(?:video|photo)/(\d+)|t/[A-Za-z0-9]+)`)
	shortRe       = regexp.MustCompile(`^https?://(?:vm|vt)\.tiktok\.com/[A-Za-z0-9]+`)
	douyinRe      = regexp.MustCompile(`^https?://(?:www\.)?douyin\.com/(?:video|note)/(\d+)`)
	douyinShortRe = regexp.MustCompile(`^https?://v\.douyin\.com/[A-Za-z0-9]+`)
)

var patterns = []*regexp.Regexp{tiktokRe, shortRe, douyinRe, douyinShortRe}

// Extractor maps helper-API answers onto the shared envelope.
type Extractor struct {
	client *fetch.Client
	logger zerolog.Logger
	apiURL string
}

// New builds the extractor. apiURL may be empty to use the local default.
func New(env extract.Env, apiURL string) *Extractor {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Extractor{
		client: env.Client,
		logger: env.Logger.With().Str("component", "extractor").Str("platform", platform).Logger(),
		apiURL: apiURL,
	}
}

func (e *Extractor) Platform() string           { return platform }
func (e *Extractor) Patterns() []*regexp.Regexp { return patterns }

func (e *Extractor) Match(rawURL string) bool {
	for _, re := range patterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// RetryOnNoMedia is always false: the helper ignores credentials, so a
// cookie retry cannot change an empty answer.
func (e *Extractor) RetryOnNoMedia(string) bool { return false }

func (e *Extractor) Extract(ctx context.Context, rawURL string, opts extract.Options) (*extract.Result, error) {
	if !e.Match(rawURL) {
		return nil, errs.Ef(errs.CodeInvalidURL, "unrecognized tiktok url: %s", rawURL)
	}

	api := fmt.Sprintf("%s?url=%s&minimal=true", e.apiURL, url.QueryEscape(rawURL))
	resp, err := e.client.FetchText(ctx, api, fetch.Options{
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}

	var envelope hybridResponse
	if uerr := json.Unmarshal([]byte(resp.Data), &envelope); uerr != nil {
		return nil, errs.Wrap(uerr, errs.CodeExtractionFailed, "helper api returned malformed data")
	}
	if envelope.Data == nil {
		return nil, errs.E(errs.CodeExtractionFailed, "helper api answered without a data payload")
	}
	e.logger.Debug().Str("url", rawURL).Str("type", envelope.Data.Type).Msg("helper api answered")

	return e.buildResult(rawURL, envelope.Data)
}
