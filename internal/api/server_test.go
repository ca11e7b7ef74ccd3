// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/cache"
	"github.com/mediagate/mediagate/internal/config"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/health"
	"github.com/mediagate/mediagate/internal/media"
	"github.com/mediagate/mediagate/internal/mux"
	"github.com/mediagate/mediagate/internal/registry"
)

var stubPattern = regexp.MustCompile(`^https?://(www\.)?stub\.example/`)

// stubExtractor serves canned results for URLs under stub.example.
type stubExtractor struct {
	result *extract.Result
	err    error
	calls  atomic.Int32
}

func (f *stubExtractor) Platform() string           { return "stub" }
func (f *stubExtractor) Patterns() []*regexp.Regexp { return []*regexp.Regexp{stubPattern} }
func (f *stubExtractor) Match(url string) bool      { return stubPattern.MatchString(url) }

func (f *stubExtractor) Extract(_ context.Context, _ string, _ extract.Options) (*extract.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Items = append([]extract.MediaItem(nil), f.result.Items...)
	return &res, nil
}

func stubResult(sourceURL string) *extract.Result {
	return &extract.Result{
		Platform:    "stub",
		ContentType: extract.ContentVideo,
		Title:       "Example clip",
		Author:      "someone",
		ID:          "c1",
		Items: []extract.MediaItem{{
			Type: "video",
			Sources: []extract.MediaSource{{
				Quality: "720p",
				URL:     sourceURL,
				MIME:    "video/mp4",
			}},
		}},
	}
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	reg     *registry.Registry
	stub    *stubExtractor
}

// newTestEnv builds a server over a memory registry and a stub extractor.
// mutate may adjust the deps, config included, before construction.
func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.RateLimitEnabled = false
	cfg.ExtractRateMax = 1000
	cfg.ResultCacheTTL = time.Minute

	reg := registry.NewWithStore(registry.NewMemoryStore(), time.Hour, logger)
	t.Cleanup(func() { _ = reg.Close() })

	results := cache.NewMemory[extract.Result](time.Minute)
	t.Cleanup(func() { _ = results.Close() })

	client := fetch.New(fetch.Config{Timeout: 5 * time.Second, Logger: logger})
	stub := &stubExtractor{result: stubResult("https://cdn.stub.example/v/720.mp4")}

	d := Deps{
		Config: cfg,
		Logger: logger,
		Extractor: extract.NewRegistry(config.ProfileFull,
			extract.Env{Client: client, Logger: logger},
			[]extract.Extractor{stub}, nil),
		Normalizer: media.NewNormalizer(reg, logger),
		Registry:   reg,
		Client:     client,
		Muxer:      mux.New(mux.Config{BinPath: "/nonexistent/ffmpeg", Logger: logger}),
		Health:     health.NewManager("test"),
		Results:    results,
	}
	if mutate != nil {
		mutate(&d)
	}

	srv, err := New(d)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{srv: srv, handler: srv.Handler(), reg: reg, stub: stub}
}

func (e *testEnv) get(t *testing.T, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func jsonDecode(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) extract.ErrorResult {
	t.Helper()
	var env extract.ErrorResult
	if err := jsonDecode(w, &env); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, w.Body.String())
	}
	return env
}

func TestNewRejectsMissingDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected an error for empty deps")
	}

	cfg := config.Defaults()
	if _, err := New(Deps{Config: cfg}); err == nil {
		t.Fatal("expected an error without an extractor registry")
	}
}

func TestOptionalDepsMayBeNil(t *testing.T) {
	// History, Results and Downloader are optional; the rest is not.
	env := newTestEnv(t, func(d *Deps) {
		d.Results = nil
		d.History = nil
		d.Downloader = nil
	})
	w := env.get(t, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}
}
