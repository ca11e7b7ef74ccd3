// SPDX-License-Identifier: MIT

package extract

import (
	"context"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/cookies"
	"github.com/mediagate/mediagate/internal/fetch"
)

// Extractor is implemented once per platform.
type Extractor interface {
	// Platform returns the lowercase platform name ("twitter", "tiktok", …).
	Platform() string
	// Patterns returns the compiled URL patterns the platform claims.
	Patterns() []*regexp.Regexp
	// Match reports whether the URL belongs to this platform.
	Match(url string) bool
	// Extract runs one extraction attempt with the credentials in opts.
	Extract(ctx context.Context, url string, opts Options) (*Result, error)
}

// Options carries the per-attempt extraction inputs. The tier driver fills
// Cookie and Source per attempt; extractors never consult the cookie store
// themselves.
type Options struct {
	// Cookie is the canonical credential for this attempt, "" for guest.
	Cookie string
	// Source labels where Cookie came from: none, server or client.
	Source string
}

// Tier identifies an authentication tier.
type Tier int

const (
	// TierGuest runs without credentials.
	TierGuest Tier = iota
	// TierServer uses the process-owned platform cookie.
	TierServer
	// TierClient uses the cookie supplied in the request.
	TierClient
)

func (t Tier) String() string {
	switch t {
	case TierServer:
		return "server"
	case TierClient:
		return "client"
	default:
		return "guest"
	}
}

// TierAdvisor is implemented by extractors whose content classes need a
// credentialed starting tier (stories, private posts).
type TierAdvisor interface {
	StartTier(url string) Tier
}

// NoMediaRetryAdvisor is implemented by extractors for which an empty
// result only justifies escalation on certain content classes.
type NoMediaRetryAdvisor interface {
	RetryOnNoMedia(url string) bool
}

// PlatformLister is implemented by extractors that front more than one
// platform and can enumerate them.
type PlatformLister interface {
	Platforms() []string
}

// Env bundles the shared dependencies handed to every extractor.
type Env struct {
	Client  *fetch.Client
	Cookies *cookies.Store
	Logger  zerolog.Logger
}
