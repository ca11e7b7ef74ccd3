// SPDX-License-Identifier: MIT

package extract

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mediagate/mediagate/internal/config"
	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/metrics"
)

// Registry resolves URLs onto extractors. Native platforms take precedence
// in a fixed order; wrapper platforms are claimed last and only served
// under the full profile.
type Registry struct {
	native  []Extractor
	wrapper Extractor
	profile config.Profile
	env     Env
	group   singleflight.Group
}

// NewRegistry wires the extractor chain. native must already be in
// resolution order; wrapper may be nil when no bridge is configured.
func NewRegistry(profile config.Profile, env Env, native []Extractor, wrapper Extractor) *Registry {
	return &Registry{
		native:  native,
		wrapper: wrapper,
		profile: profile,
		env:     env,
	}
}

// Match returns the extractor claiming the URL, native first, or nil.
func (r *Registry) Match(url string) Extractor {
	for _, ex := range r.native {
		if ex.Match(url) {
			return ex
		}
	}
	if r.wrapper != nil && r.wrapper.Match(url) {
		return r.wrapper
	}
	return nil
}

// IsSupported reports whether the URL is serviceable under the active
// profile. Native platforms always are; wrapper platforms only under full.
func (r *Registry) IsSupported(url string) bool {
	for _, ex := range r.native {
		if ex.Match(url) {
			return true
		}
	}
	if r.profile == config.ProfileFull && r.wrapper != nil && r.wrapper.Match(url) {
		return true
	}
	return false
}

// SupportedPlatforms lists platform names in resolution order.
func (r *Registry) SupportedPlatforms() []string {
	out := make([]string, 0, len(r.native)+1)
	for _, ex := range r.native {
		out = append(out, ex.Platform())
	}
	if r.profile == config.ProfileFull && r.wrapper != nil {
		if lister, ok := r.wrapper.(PlatformLister); ok {
			out = append(out, lister.Platforms()...)
		} else {
			out = append(out, r.wrapper.Platform())
		}
	}
	return out
}

// Extract resolves the URL to an extractor and runs the tiered extraction.
// Identical in-flight requests (same URL and client cookie) are coalesced
// into one upstream run.
func (r *Registry) Extract(ctx context.Context, url, clientCookie string) (*Result, error) {
	ex := r.Match(url)
	if ex == nil {
		return nil, errs.E(errs.CodeUnsupportedPlatform, errs.DefaultMessage(errs.CodeUnsupportedPlatform))
	}
	if ex == r.wrapper && r.profile != config.ProfileFull {
		return nil, errs.Ef(errs.CodePlatformUnavailable,
			"platform %s is not available on this deployment", ex.Platform())
	}

	key := url + "\x1f" + clientCookie
	started := time.Now()
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.runTiered(ctx, ex, url, clientCookie)
	})
	outcome := "success"
	if err != nil {
		outcome = errs.CodeOf(err)
	}
	metrics.ObserveExtraction(ex.Platform(), outcome, time.Since(started))
	if err != nil {
		return nil, err
	}

	// Coalesced callers each get their own envelope so meta stamping does
	// not race.
	res := *(v.(*Result))
	metrics.ObserveExtractionItems(ex.Platform(), len(res.Items))
	return &res, nil
}

// runTiered walks the authentication tiers: guest, then the server cookie,
// then the client cookie. A tier only escalates when the failure class says
// credentials could change the answer.
func (r *Registry) runTiered(ctx context.Context, ex Extractor, url, clientCookie string) (*Result, error) {
	serverCookie := ""
	if r.env.Cookies != nil {
		serverCookie = r.env.Cookies.Get(ex.Platform())
	}
	attempts := []Options{
		{Cookie: "", Source: CookieNone},
		{Cookie: serverCookie, Source: CookieServer},
		{Cookie: clientCookie, Source: CookieClient},
	}

	start := TierGuest
	if adv, ok := ex.(TierAdvisor); ok {
		start = adv.StartTier(url)
	}

	var lastErr error
	for tier := start; tier <= TierClient; tier++ {
		opts := attempts[tier]
		if tier != TierGuest && opts.Cookie == "" {
			continue
		}
		metrics.IncExtractionTier(ex.Platform(), tier.String())

		res, err := ex.Extract(ctx, url, opts)
		if err == nil {
			res.Success = true
			// The wrapper bridge stamps the platform it detected per URL.
			if res.Platform == "" {
				res.Platform = ex.Platform()
			}
			res.UsedCookie = opts.Cookie != ""
			if res.UsedCookie {
				res.CookieSource = opts.Source
			} else {
				res.CookieSource = CookieNone
			}
			return res, nil
		}
		lastErr = err
		if !r.shouldEscalate(ex, url, err) {
			return nil, err
		}
	}
	if lastErr == nil {
		// Every tier was skipped: the content class needs credentials and
		// none are configured.
		lastErr = errs.E(errs.CodeLoginRequired, "this content requires credentials and none are configured")
	}
	return nil, lastErr
}

func (r *Registry) shouldEscalate(ex Extractor, url string, err error) bool {
	switch errs.CodeOf(err) {
	case errs.CodePrivateContent, errs.CodeLoginRequired:
		return true
	case errs.CodeNoMediaFound:
		if adv, ok := ex.(NoMediaRetryAdvisor); ok {
			return adv.RetryOnNoMedia(url)
		}
		return true
	default:
		return false
	}
}
