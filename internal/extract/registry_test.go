// SPDX-License-Identifier: MIT

package extract

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/config"
	"github.com/mediagate/mediagate/internal/cookies"
	"github.com/mediagate/mediagate/internal/errs"
)

type fakeExtractor struct {
	platform string
	re       *regexp.Regexp
	fn       func(ctx context.Context, url string, opts Options) (*Result, error)
	calls    atomic.Int32
}

func (f *fakeExtractor) Platform() string            { return f.platform }
func (f *fakeExtractor) Patterns() []*regexp.Regexp  { return []*regexp.Regexp{f.re} }
func (f *fakeExtractor) Match(url string) bool       { return f.re.MatchString(url) }
func (f *fakeExtractor) Extract(ctx context.Context, url string, opts Options) (*Result, error) {
	f.calls.Add(1)
	return f.fn(ctx, url, opts)
}

func okResult() *Result {
	return &Result{ContentType: ContentVideo, Items: []MediaItem{{Index: 0, Type: "video"}}}
}

func testEnv(serverCookies map[string]string) Env {
	return Env{
		Cookies: cookies.NewStore(cookies.StoreOptions{Env: serverCookies, Logger: zerolog.Nop()}),
		Logger:  zerolog.Nop(),
	}
}

func TestRegistryNativeWinsOverWrapper(t *testing.T) {
	native := &fakeExtractor{
		platform: "tiktok",
		re:       regexp.MustCompile(`tiktok\.com`),
		fn:       func(context.Context, string, Options) (*Result, error) { return okResult(), nil },
	}
	wrapper := &fakeExtractor{
		platform: "wrapper",
		re:       regexp.MustCompile(`.`),
		fn:       func(context.Context, string, Options) (*Result, error) { return okResult(), nil },
	}
	r := NewRegistry(config.ProfileFull, testEnv(nil), []Extractor{native}, wrapper)

	if got := r.Match("https://www.tiktok.com/@u/video/1"); got != Extractor(native) {
		t.Errorf("native pattern lost to wrapper")
	}
	if got := r.Match("https://www.youtube.com/watch?v=x"); got != Extractor(wrapper) {
		t.Errorf("wrapper should claim leftover URLs")
	}
}

func TestRegistryIsSupportedByProfile(t *testing.T) {
	native := &fakeExtractor{platform: "twitter", re: regexp.MustCompile(`(twitter|x)\.com`)}
	wrapper := &fakeExtractor{platform: "wrapper", re: regexp.MustCompile(`youtube\.com`)}

	full := NewRegistry(config.ProfileFull, testEnv(nil), []Extractor{native}, wrapper)
	vercel := NewRegistry(config.ProfileVercel, testEnv(nil), []Extractor{native}, wrapper)

	if !full.IsSupported("https://x.com/u/status/1") || !vercel.IsSupported("https://x.com/u/status/1") {
		t.Error("native platform must be supported under both profiles")
	}
	if !full.IsSupported("https://youtube.com/watch?v=x") {
		t.Error("wrapper platform must be supported under full")
	}
	if vercel.IsSupported("https://youtube.com/watch?v=x") {
		t.Error("wrapper platform must not be supported under vercel")
	}
}

func TestRegistryWrapperGatedOnVercel(t *testing.T) {
	wrapper := &fakeExtractor{
		platform: "wrapper",
		re:       regexp.MustCompile(`youtube\.com`),
		fn:       func(context.Context, string, Options) (*Result, error) { return okResult(), nil },
	}
	r := NewRegistry(config.ProfileVercel, testEnv(nil), nil, wrapper)

	_, err := r.Extract(context.Background(), "https://youtube.com/watch?v=x", "")
	if errs.CodeOf(err) != errs.CodePlatformUnavailable {
		t.Errorf("err code = %s, want PLATFORM_UNAVAILABLE_ON_DEPLOYMENT", errs.CodeOf(err))
	}
	if wrapper.calls.Load() != 0 {
		t.Error("wrapper was invoked despite the profile gate")
	}
}

func TestRegistryUnsupported(t *testing.T) {
	r := NewRegistry(config.ProfileFull, testEnv(nil), nil, nil)
	_, err := r.Extract(context.Background(), "https://unknown.example/x", "")
	if errs.CodeOf(err) != errs.CodeUnsupportedPlatform {
		t.Errorf("err code = %s", errs.CodeOf(err))
	}
}

func TestTierEscalation(t *testing.T) {
	ex := &fakeExtractor{
		platform: "instagram",
		re:       regexp.MustCompile(`instagram\.com`),
	}
	ex.fn = func(_ context.Context, _ string, opts Options) (*Result, error) {
		if opts.Cookie == "" {
			return nil, errs.E(errs.CodeLoginRequired, "login required")
		}
		return okResult(), nil
	}
	env := testEnv(map[string]string{"instagram": "sessionid=srv"})
	r := NewRegistry(config.ProfileFull, env, []Extractor{ex}, nil)

	res, err := r.Extract(context.Background(), "https://instagram.com/p/abc/", "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ex.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (guest then server)", ex.calls.Load())
	}
	if !res.UsedCookie || res.CookieSource != CookieServer {
		t.Errorf("usedCookie=%v source=%q, want server credit", res.UsedCookie, res.CookieSource)
	}
}

func TestTierEscalationReachesClientCookie(t *testing.T) {
	ex := &fakeExtractor{
		platform: "instagram",
		re:       regexp.MustCompile(`instagram\.com`),
	}
	ex.fn = func(_ context.Context, _ string, opts Options) (*Result, error) {
		if opts.Source != CookieClient {
			return nil, errs.E(errs.CodePrivateContent, "private")
		}
		return okResult(), nil
	}
	// No server cookie configured, so the driver must skip straight from
	// guest to the client credential.
	r := NewRegistry(config.ProfileFull, testEnv(nil), []Extractor{ex}, nil)

	res, err := r.Extract(context.Background(), "https://instagram.com/p/abc/", "sessionid=client")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ex.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", ex.calls.Load())
	}
	if res.CookieSource != CookieClient {
		t.Errorf("cookieSource = %q", res.CookieSource)
	}
}

func TestNoEscalationOnHardFailure(t *testing.T) {
	ex := &fakeExtractor{
		platform: "facebook",
		re:       regexp.MustCompile(`facebook\.com`),
	}
	ex.fn = func(context.Context, string, Options) (*Result, error) {
		return nil, errs.E(errs.CodeFetchFailed, "network down")
	}
	env := testEnv(map[string]string{"facebook": "c_user=1"})
	r := NewRegistry(config.ProfileFull, env, []Extractor{ex}, nil)

	_, err := r.Extract(context.Background(), "https://facebook.com/watch/?v=1", "xs=2")
	if errs.CodeOf(err) != errs.CodeFetchFailed {
		t.Fatalf("err code = %s", errs.CodeOf(err))
	}
	if ex.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no escalation on FETCH_FAILED)", ex.calls.Load())
	}
}

type advisedExtractor struct {
	fakeExtractor
	start Tier
}

func (a *advisedExtractor) StartTier(string) Tier { return a.start }

func TestStartTierAdvisorSkipsGuest(t *testing.T) {
	ex := &advisedExtractor{start: TierServer}
	ex.platform = "facebook"
	ex.re = regexp.MustCompile(`facebook\.com/stories`)
	ex.fn = func(_ context.Context, _ string, opts Options) (*Result, error) {
		if opts.Source != CookieServer {
			t.Errorf("first attempt ran as %q, want server", opts.Source)
		}
		return okResult(), nil
	}
	env := testEnv(map[string]string{"facebook": "c_user=1"})
	r := NewRegistry(config.ProfileFull, env, []Extractor{ex}, nil)

	if _, err := r.Extract(context.Background(), "https://facebook.com/stories/123", ""); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", ex.calls.Load())
	}
}

func TestStartTierWithoutAnyCookieFailsClosed(t *testing.T) {
	ex := &advisedExtractor{start: TierServer}
	ex.platform = "facebook"
	ex.re = regexp.MustCompile(`facebook\.com/stories`)
	ex.fn = func(context.Context, string, Options) (*Result, error) {
		t.Error("extractor must not run without credentials")
		return nil, nil
	}
	r := NewRegistry(config.ProfileFull, testEnv(nil), []Extractor{ex}, nil)

	_, err := r.Extract(context.Background(), "https://facebook.com/stories/123", "")
	if !errs.Is(err, errs.CodeLoginRequired) {
		t.Fatalf("err = %v, want LOGIN_REQUIRED", err)
	}
	if ex.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", ex.calls.Load())
	}
}

func TestExtractCoalescesIdenticalRequests(t *testing.T) {
	release := make(chan struct{})
	ex := &fakeExtractor{
		platform: "tiktok",
		re:       regexp.MustCompile(`tiktok\.com`),
	}
	ex.fn = func(context.Context, string, Options) (*Result, error) {
		<-release
		return okResult(), nil
	}
	r := NewRegistry(config.ProfileFull, testEnv(nil), []Extractor{ex}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Extract(context.Background(), "https://tiktok.com/@u/video/9", ""); err != nil {
				t.Errorf("extract: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if ex.calls.Load() != 1 {
		t.Errorf("upstream ran %d times, want 1", ex.calls.Load())
	}
}
