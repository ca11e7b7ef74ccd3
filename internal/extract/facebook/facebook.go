// SPDX-License-Identifier: MIT

// Package facebook extracts videos, reels, stories and photo posts from
// facebook.com pages. Facebook serves a usable embedded-JSON page to an
// iPad user agent, so extraction is a scan of that document: resolve any
// short link, stream the page through the issue filter, then pull media
// out of the JSON block surrounding the subject id.
package facebook

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

const platform = "facebook"

const host = `^https?://(?:www\.|m\.|web\.|mbasic\.)?facebook\.com/`

var (
	videoRe = regexp.MustCompile(host + `(?:watch/?\?v=(\d+)|[^/?#]+/videos/(?:[^/]+/)?(\d+)|video\.php\?v=(\d+))`)
	reelRe  = regexp.MustCompile(host + `reel/(\d+)`)
	storyRe = regexp.MustCompile(host + `stories/(\d+)(?:/([^/?#]+))?`)
	postRe  = regexp.MustCompile(host + `(?:groups/[^/?#]+/(?:posts|permalink)/|[^/?#]+/posts/)([A-Za-z0-9]+)`)
	photoRe = regexp.MustCompile(host + `(?:photo(?:\.php)?/?\?(?:[^#]*&)?fbid=(\d+)|[^/?#]+/photos/[^/]+/(\d+))`)
	shareRe = regexp.MustCompile(host + `share/[vrp]/[A-Za-z0-9]+`)
	shortRe = regexp.MustCompile(`^https?://(?:fb\.watch|fb\.me)/[^/?#]+`)
	lphpRe  = regexp.MustCompile(`^https?://l\.facebook\.com/l\.php\?`)
)

var patterns = []*regexp.Regexp{videoRe, reelRe, storyRe, postRe, photoRe, shareRe, shortRe, lphpRe}

// Extractor scrapes facebook.com pages.
type Extractor struct {
	client *fetch.Client
	logger zerolog.Logger

	// pageBase, when set, replaces the page origin on fetches. Tests point
	// it at a local server.
	pageBase string
}

func New(env extract.Env) *Extractor {
	return &Extractor{
		client: env.Client,
		logger: env.Logger.With().Str("component", "extractor").Str("platform", platform).Logger(),
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

// StartTier places stories on the server-cookie tier. A story page is a
// login wall for guests, so the guest attempt would only burn time.
func (e *Extractor) StartTier(rawURL string) extract.Tier {
	if storyRe.MatchString(rawURL) {
		return extract.TierServer
	}
	return extract.TierGuest
}

// RetryOnNoMedia reports whether an empty result for this URL justifies a
// credentialed retry. Only video-class pages qualify; a photo post with no
// media is simply a text post.
func (e *Extractor) RetryOnNoMedia(rawURL string) bool {
	return videoRe.MatchString(rawURL) || reelRe.MatchString(rawURL) ||
		shareRe.MatchString(rawURL) || shortRe.MatchString(rawURL)
}

// link is a classified facebook URL.
type link struct {
	kind        string // extract.Content* constant
	id          string // video, post or photo id
	storyBucket string
	storyID     string
}

// parseLink classifies a full facebook.com URL. Share and short links must
// be resolved before this point.
func parseLink(rawURL string) (link, bool) {
	if m := storyRe.FindStringSubmatch(rawURL); m != nil {
		return link{kind: extract.ContentStory, storyBucket: m[1], storyID: m[2]}, true
	}
	if m := reelRe.FindStringSubmatch(rawURL); m != nil {
		return link{kind: extract.ContentReel, id: m[1]}, true
	}
	if m := videoRe.FindStringSubmatch(rawURL); m != nil {
		return link{kind: extract.ContentVideo, id: firstGroup(m)}, true
	}
	if m := photoRe.FindStringSubmatch(rawURL); m != nil {
		return link{kind: extract.ContentImage, id: firstGroup(m)}, true
	}
	if m := postRe.FindStringSubmatch(rawURL); m != nil {
		return link{kind: extract.ContentPost, id: m[1]}, true
	}
	return link{}, false
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// resolveTarget unwraps the redirect wrappers facebook hands out. l.php
// links carry the destination in the u parameter and need no network;
// fb.watch, fb.me and /share/ links redirect server-side.
func (e *Extractor) resolveTarget(ctx context.Context, rawURL string) (string, error) {
	if lphpRe.MatchString(rawURL) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", errs.Wrap(err, errs.CodeInvalidURL, "parse redirect link")
		}
		dest := u.Query().Get("u")
		if dest == "" {
			return "", errs.E(errs.CodeInvalidURL, "redirect link carries no destination")
		}
		e.logger.Debug().Str("from", rawURL).Str("to", dest).Msg("unwrapped l.php redirect")
		return dest, nil
	}
	if !shortRe.MatchString(rawURL) && !shareRe.MatchString(rawURL) {
		return rawURL, nil
	}
	resolved, err := e.client.ResolveURL(ctx, rawURL, fetch.Options{
		Headers: map[string]string{"User-Agent": fetch.MobileUserAgent},
	})
	if err != nil {
		return "", err
	}
	resolved, err = unwrapLoginRedirect(resolved)
	if err != nil {
		return "", err
	}
	e.logger.Debug().Str("from", rawURL).Str("to", resolved).Msg("resolved short link")
	return resolved, nil
}

// unwrapLoginRedirect recovers the real target from a login interstitial.
// Share links for gated content resolve to /login with the destination in
// the next parameter.
func unwrapLoginRedirect(resolved string) (string, error) {
	u, err := url.Parse(resolved)
	if err != nil || !strings.HasPrefix(u.Path, "/login") {
		return resolved, nil
	}
	if next := u.Query().Get("next"); next != "" {
		return next, nil
	}
	return "", errs.E(errs.CodeLoginRequired, "short link resolves to a login page")
}

// issuesFor is the tombstone table for the streamed page. Facebook shows
// one generic unavailable card for private, removed and expired content,
// so the ambiguous marker maps by content class: expired for stories,
// private (and therefore escalatable) for everything else.
func issuesFor(kind string) []extract.Issue {
	issues := []extract.Issue{
		{Code: errs.CodeLoginRequired, Markers: []string{
			"You must log in to continue",
			"Log in or sign up for Facebook",
		}},
		{Code: errs.CodeAgeRestricted, Markers: []string{
			`"is_age_gated":true`,
			`"age_restricted":true`,
		}},
		{Code: errs.CodeDeletedContent, Markers: []string{
			"This page isn't available",
			"This page isn’t available",
			"content was removed",
		}},
	}
	// Facebook renders the apostrophe both ways depending on locale pack.
	unavailable := []string{
		"This content isn't available right now",
		"This content isn’t available right now",
	}
	code := errs.CodePrivateContent
	if kind == extract.ContentStory {
		code = errs.CodeStoryExpired
	}
	return append(issues, extract.Issue{Code: code, Markers: unavailable})
}

func (e *Extractor) Extract(ctx context.Context, rawURL string, opts extract.Options) (*extract.Result, error) {
	target, err := e.resolveTarget(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	ln, ok := parseLink(target)
	if !ok {
		return nil, errs.Ef(errs.CodeInvalidURL, "unrecognized facebook url: %s", target)
	}

	headers := map[string]string{
		"User-Agent":      fetch.MobileUserAgent,
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if opts.Cookie != "" {
		headers["Cookie"] = opts.Cookie
	}
	fetchURL := target
	if e.pageBase != "" {
		if u, perr := url.Parse(target); perr == nil {
			fetchURL = e.pageBase + u.RequestURI()
		}
	}
	page, err := extract.ScanPage(ctx, e.client, fetchURL, headers, issuesFor(ln.kind))
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Str("url", target).Str("kind", ln.kind).Int("page_bytes", len(page)).Msg("page scanned")

	if ln.kind == extract.ContentStory {
		return e.buildStory(target, ln, page)
	}
	return e.buildPost(target, ln, page)
}
