// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/mediagate/mediagate/internal/errs"
)

func TestHLSProxyRequiresURL(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get(t, "/hls-proxy", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Code != errs.CodeMissingParameter {
		t.Errorf("code = %q", e.Error.Code)
	}
}

func TestHLSProxyRejectsUnvettedManifest(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get(t, "/hls-proxy?url="+url.QueryEscape("https://cdn.unknown.example/master.m3u8"), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Code != errs.CodeUnauthorizedURL {
		t.Errorf("code = %q", e.Error.Code)
	}
}

func TestHLSProxySegmentBlocksInternalTargets(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get(t, "/hls-proxy?type=segment&url="+url.QueryEscape("http://127.0.0.1:1/seg.ts"), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	e := decodeError(t, w)
	if e.Error.Code != errs.CodeInvalidURL {
		t.Errorf("code = %q", e.Error.Code)
	}
	if e.Error.Message != "Segment target is not allowed" {
		t.Errorf("message = %q", e.Error.Message)
	}
}

func TestHLSStreamRequiresURL(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get(t, "/hls-stream", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Message != "url parameter is required" {
		t.Errorf("message = %q", e.Error.Message)
	}
}

func TestHLSStreamWithoutMuxer(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get(t, "/hls-stream?url="+url.QueryEscape("https://upos-sz.bilivideo.com/live.m3u8"), nil)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Code != errs.CodeFFmpegNotAvailable {
		t.Errorf("code = %q", e.Error.Code)
	}
}

func TestProxyBase(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://gate.internal:9005/hls-proxy?url=x", nil)
	if got := proxyBase(r); got != "http://gate.internal:9005/hls-proxy" {
		t.Errorf("direct = %q", got)
	}

	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "media.gate.example")
	if got := proxyBase(r); got != "https://media.gate.example/hls-proxy" {
		t.Errorf("forwarded = %q", got)
	}
}
