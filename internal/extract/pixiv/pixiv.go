// SPDX-License-Identifier: MIT

// Package pixiv extracts artwork images from pixiv.net. The artwork page
// embeds a preload JSON map keyed by illust id; extraction scopes to the
// requested id and, for multi-page works, lists the page files through the
// ajax endpoint. The image host rejects requests without a pixiv Referer,
// so every source is marked for proxied delivery.
package pixiv

import (
	"context"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

const platform = "pixiv"

var (
	artworkRe = regexp.MustCompile(`^https?://(?:www\.)?pixiv\.net/(?:en/)?(?:artworks|i)/(\d+)`)
	legacyRe  = regexp.MustCompile(`^https?://(?:www\.)?pixiv\.net/member_illust\.php\?(?:[^#]*&)?illust_id=(\d+)`)

	patterns = []*regexp.Regexp{artworkRe, legacyRe}
)

// Extractor implements extract.Extractor for pixiv.net.
type Extractor struct {
	client *fetch.Client
	logger zerolog.Logger

	// Site base, overridable in tests.
	baseURL string
}

func New(env extract.Env) *Extractor {
	return &Extractor{
		client:  env.Client,
		logger:  env.Logger.With().Str("component", "extract.pixiv").Logger(),
		baseURL: "https://www.pixiv.net",
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

// IllustID pulls the numeric artwork id out of a pixiv URL, or "".
func IllustID(rawURL string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(rawURL); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func (e *Extractor) Extract(ctx context.Context, rawURL string, opts extract.Options) (*extract.Result, error) {
	id := IllustID(rawURL)
	if id == "" {
		return nil, errs.E(errs.CodeInvalidURL, "not a pixiv artwork URL")
	}

	headers := map[string]string{
		"User-Agent":      fetch.DefaultUserAgent,
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if opts.Cookie != "" {
		headers["Cookie"] = opts.Cookie
	}

	page, err := extract.ScanPage(ctx, e.client, e.baseURL+"/artworks/"+id, headers, nil)
	if err != nil {
		return nil, mapUpstream(err)
	}
	il, err := scopedIllust(page, id, opts.Cookie != "")
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Str("id", id).Int("pages", il.PageCount).Int("type", il.IllustType).Msg("parsed artwork preload")
	return e.buildResult(ctx, rawURL, id, il, opts.Cookie)
}

// Deleted works answer with a plain 404 rather than a tombstone page.
func mapUpstream(err error) error {
	if errs.UpstreamStatusOf(err) == http.StatusNotFound {
		return errs.E(errs.CodeDeletedContent, errs.DefaultMessage(errs.CodeDeletedContent))
	}
	return err
}
