// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/mediagate/mediagate/internal/errs"
)

func TestMergeRequiresBothRenditions(t *testing.T) {
	env := newTestEnv(t, nil)
	video := url.QueryEscape("https://rr1.googlevideo.com/videoplayback?itag=137")

	w := env.get(t, "/merge", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("no params: expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Message != "videoUrl parameter is required" {
		t.Errorf("message = %q", e.Error.Message)
	}

	w = env.get(t, "/merge?videoUrl="+video, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("video only: expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Message != "audioUrl parameter is required" {
		t.Errorf("message = %q", e.Error.Message)
	}
}

func TestMergeWithoutMuxer(t *testing.T) {
	env := newTestEnv(t, nil)
	video := url.QueryEscape("https://rr1.googlevideo.com/videoplayback?itag=137")
	audio := url.QueryEscape("https://rr1.googlevideo.com/videoplayback?itag=140")

	w := env.get(t, "/merge?videoUrl="+video+"&audioUrl="+audio, nil)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Code != errs.CodeFFmpegNotAvailable {
		t.Errorf("code = %q", e.Error.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "" {
		t.Errorf("refusal should not carry a disposition, got %q", cd)
	}
}
