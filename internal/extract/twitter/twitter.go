// SPDX-License-Identifier: MIT

// Package twitter extracts media from tweets in three tiers. Guest requests
// hit the public syndication CDN first and fall back to the GraphQL API with
// a disk-cached activation token when the CDN hides the tweet. Requests with
// a cookie go straight to GraphQL with a ct0-derived CSRF header.
package twitter

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

const platform = "twitter"

// bearerToken is the public bearer embedded in x.com's web client. It is
// the same for every user and carries no account privileges on its own.
const bearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

var (
	statusRe = regexp.MustCompile(`^https?://(?:www\.|mobile\.)?(?:twitter\.com|x\.com)/(?:\w+|i/web)/status(?:es)?/(\d+)`)
	shortRe  = regexp.MustCompile(`^https?://t\.co/[A-Za-z0-9]+`)

	patterns = []*regexp.Regexp{statusRe, shortRe}
)

// Extractor implements extract.Extractor for twitter.com / x.com.
type Extractor struct {
	client *fetch.Client
	logger zerolog.Logger
	guest  *guestTokens

	// Endpoint bases, overridable in tests.
	syndicationURL string
	graphqlURL     string
}

func New(env extract.Env) *Extractor {
	logger := env.Logger.With().Str("component", "extract.twitter").Logger()
	return &Extractor{
		client:         env.Client,
		logger:         logger,
		guest:          newGuestTokens(env.Client, logger),
		syndicationURL: "https://cdn.syndication.twimg.com/tweet-result",
		graphqlURL:     "https://x.com/i/api/graphql/geNbknbFuVk6S2dpb8lr2Q/TweetResultByRestId",
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

// TweetID pulls the numeric status id out of a tweet URL, or "".
func TweetID(rawURL string) string {
	m := statusRe.FindStringSubmatch(rawURL)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

func (e *Extractor) Extract(ctx context.Context, rawURL string, opts extract.Options) (*extract.Result, error) {
	if shortRe.MatchString(rawURL) {
		resolved, err := e.client.ResolveURL(ctx, rawURL, fetch.Options{})
		if err != nil {
			return nil, err
		}
		e.logger.Debug().Str("from", rawURL).Str("to", resolved).Msg("resolved t.co link")
		rawURL = resolved
	}
	id := TweetID(rawURL)
	if id == "" {
		return nil, errs.E(errs.CodeInvalidURL, "not a tweet URL")
	}

	var (
		td  *tweetData
		err error
	)
	if opts.Cookie == "" {
		td, err = e.fetchSyndication(ctx, id)
		if err != nil && e.guest != nil && errs.Is(err, errs.CodePrivateContent) {
			// Syndication cannot tell protected from NSFW-hidden. A guest
			// GraphQL call either serves the tweet or names the real reason.
			gtd, gerr := e.fetchGraphQLGuest(ctx, id)
			switch {
			case gerr == nil:
				td, err = gtd, nil
			case moreSpecific(gerr):
				err = gerr
			default:
				e.logger.Debug().Err(gerr).Str("id", id).Msg("guest graphql fallback failed")
			}
		}
	} else {
		td, err = e.fetchGraphQL(ctx, id, opts.Cookie)
	}
	if err != nil {
		return nil, err
	}
	return e.buildResult(rawURL, td)
}

// moreSpecific reports whether a guest tier error names the tweet's actual
// state rather than a transport or activation problem.
func moreSpecific(err error) bool {
	switch errs.CodeOf(err) {
	case errs.CodeAgeRestricted, errs.CodeDeletedContent, errs.CodePrivateContent:
		return true
	}
	return false
}

// csrfFromCookie pulls the ct0 value a GraphQL call must echo back in
// X-Csrf-Token.
func csrfFromCookie(cookie string) string {
	for _, part := range strings.Split(cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == "ct0" {
			return value
		}
	}
	return ""
}
