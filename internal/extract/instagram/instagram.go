// SPDX-License-Identifier: MIT

// Package instagram extracts media from posts, reels and stories. Guest
// requests go through the web GraphQL document API; credentialed requests
// use the internal media-info API with a csrftoken-derived CSRF header.
package instagram

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

const platform = "instagram"

// webAppID is the X-IG-App-ID the instagram.com web client sends. Public,
// identical for every visitor.
const webAppID = "936619743392459"

var (
	postRe  = regexp.MustCompile(`^https?://(?:www\.)?instagram\.com/(?:[A-Za-z0-9_.]+/)?(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)
	storyRe = regexp.MustCompile(`^https?://(?:www\.)?instagram\.com/stories/([A-Za-z0-9_.]+)/(\d+)`)

	patterns = []*regexp.Regexp{postRe, storyRe}
)

// Extractor implements extract.Extractor for instagram.com.
type Extractor struct {
	client *fetch.Client
	logger zerolog.Logger

	// Endpoint bases, overridable in tests.
	graphqlURL   string
	mediaInfoURL string
}

func New(env extract.Env) *Extractor {
	return &Extractor{
		client:       env.Client,
		logger:       env.Logger.With().Str("component", "extract.instagram").Logger(),
		graphqlURL:   "https://www.instagram.com/api/graphql",
		mediaInfoURL: "https://i.instagram.com/api/v1/media",
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

// StartTier sends story URLs straight to the server-cookie tier; stories
// are never readable as a guest.
func (e *Extractor) StartTier(rawURL string) extract.Tier {
	if storyRe.MatchString(rawURL) {
		return extract.TierServer
	}
	return extract.TierGuest
}

// RetryOnNoMedia limits NO_MEDIA_FOUND escalation to video-class URLs,
// where a credentialed fetch regularly surfaces variants a guest cannot see.
func (e *Extractor) RetryOnNoMedia(rawURL string) bool {
	return strings.Contains(rawURL, "/reel/") || strings.Contains(rawURL, "/reels/") ||
		strings.Contains(rawURL, "/tv/")
}

// Shortcode pulls the post shortcode out of a URL, or "".
func Shortcode(rawURL string) string {
	m := postRe.FindStringSubmatch(rawURL)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

// StoryID pulls the numeric story media id out of a story URL, or "".
func StoryID(rawURL string) string {
	m := storyRe.FindStringSubmatch(rawURL)
	if len(m) > 2 {
		return m[2]
	}
	return ""
}

func (e *Extractor) Extract(ctx context.Context, rawURL string, opts extract.Options) (*extract.Result, error) {
	contentClass := classify(rawURL)

	if id := StoryID(rawURL); id != "" {
		if opts.Cookie == "" {
			return nil, errs.E(errs.CodeLoginRequired, "stories require credentials")
		}
		return e.fetchMediaInfo(ctx, rawURL, id, contentClass, opts.Cookie)
	}

	code := Shortcode(rawURL)
	if code == "" {
		return nil, errs.E(errs.CodeInvalidURL, "not an instagram post URL")
	}

	if opts.Cookie == "" {
		return e.fetchGraphQL(ctx, rawURL, code, contentClass)
	}
	id, err := ShortcodeToMediaID(code)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInvalidURL, "unusable shortcode")
	}
	return e.fetchMediaInfo(ctx, rawURL, id, contentClass, opts.Cookie)
}

func classify(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "/stories/"):
		return extract.ContentStory
	case strings.Contains(rawURL, "/reel/"), strings.Contains(rawURL, "/reels/"):
		return extract.ContentReel
	case strings.Contains(rawURL, "/tv/"):
		return extract.ContentVideo
	default:
		return extract.ContentPost
	}
}

// csrfFromCookie pulls the csrftoken value the internal API requires in
// X-CSRFToken.
func csrfFromCookie(cookie string) string {
	for _, part := range strings.Split(cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == "csrftoken" {
			return value
		}
	}
	return ""
}
