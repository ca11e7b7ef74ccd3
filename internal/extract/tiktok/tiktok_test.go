// SPDX-License-Identifier: MIT

package tiktok

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

func testExtractor(server *httptest.Server) *Extractor {
	return New(extract.Env{
		Client: fetch.New(fetch.Config{Logger: zerolog.Nop()}),
		Logger: zerolog.Nop(),
	}, server.URL+"/api/hybrid/video_data")
}

func TestMatch(t *testing.T) {
	e := New(extract.Env{Logger: zerolog.Nop()}, "")
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.tiktok.com/@night.rider/video/7234567890123456789", true},
		{"https://www.tiktok.com/@stylist/photo/7300000000000000001", true},
		{"https://www.tiktok.com/t/ZTabc123/", true},
		{"https://vm.tiktok.com/ZMabc123/", true},
		{"https://vt.tiktok.com/ZSxyz789/", true},
		{"https://www.douyin.com/video/7234567890123456789", true},
		{"https://www.douyin.com/note/7234567890123456789", true},
		{"https://v.douyin.com/abc123/", true},
		{"https://www.tiktok.com/@night.rider", false},
		{"https://www.instagram.com/p/C7c1xQaJklm/", false},
	}
	for _, tt := range tests {
		if got := e.Match(tt.url); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestExtractRejectsForeignURL(t *testing.T) {
	e := New(extract.Env{Client: fetch.New(fetch.Config{Logger: zerolog.Nop()}), Logger: zerolog.Nop()}, "")
	_, err := e.Extract(context.Background(), "https://example.com/clip", extract.Options{})
	if errs.CodeOf(err) != errs.CodeInvalidURL {
		t.Errorf("error = %v, want INVALID_URL", err)
	}
}

const videoFixture = `{"data":{"aweme_id":"7234567890123456789","type":"video","desc":"Night ride","create_time":1715853600,"duration":15934,"author":{"nickname":"Rider","unique_id":"night.rider","uid":"88"},"statistics":{"digg_count":43000,"comment_count":512,"play_count":980000,"share_count":210,"repost_count":37},"music":{"play_url":{"url_list":["https://sf16.example/music.mp3"]},"duration":30},"cover_data":{"cover":{"url_list":["https://p16.example/cover.jpg"]}},"video_data":{"nwm_video_url":"https://v16.example/sd.mp4","nwm_video_url_HQ":"https://v16.example/hd.mp4","wm_video_url":"https://v16.example/wm.mp4","wm_video_url_HQ":"https://v16.example/wm-hd.mp4"}}}`

func TestExtractVideo(t *testing.T) {
	postURL := "https://www.tiktok.com/@night.rider/video/7234567890123456789"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != postURL {
			t.Errorf("helper url param = %q, want %q", got, postURL)
		}
		if got := r.URL.Query().Get("minimal"); got != "true" {
			t.Errorf("minimal param = %q, want true", got)
		}
		_, _ = io.WriteString(w, videoFixture)
	}))
	defer server.Close()

	res, err := testExtractor(server).Extract(context.Background(), postURL, extract.Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.ContentType != extract.ContentVideo || res.ID != "7234567890123456789" {
		t.Errorf("type/id = %s/%s", res.ContentType, res.ID)
	}
	if res.Author != "Rider" || res.AuthorUsername != "night.rider" {
		t.Errorf("author = %q/%q", res.Author, res.AuthorUsername)
	}
	if res.UploadDate != "2024-05-16T10:00:00Z" {
		t.Errorf("upload date = %q", res.UploadDate)
	}
	if res.Stats == nil || res.Stats.Views != 980000 || res.Stats.Likes != 43000 || res.Stats.Comments != 512 || res.Stats.Shares != 210 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want video plus audio", len(res.Items))
	}

	video := res.Items[0]
	if video.Type != extract.ContentVideo || video.Thumbnail != "https://p16.example/cover.jpg" {
		t.Errorf("video item = %+v", video)
	}
	if len(video.Sources) != 2 {
		t.Fatalf("video sources = %d, want 2", len(video.Sources))
	}
	if video.Sources[0].Quality != "hd" || video.Sources[0].URL != "https://v16.example/hd.mp4" {
		t.Errorf("hd source = %+v", video.Sources[0])
	}
	if video.Sources[1].Quality != "sd" || video.Sources[1].URL != "https://v16.example/sd.mp4" {
		t.Errorf("sd source = %+v", video.Sources[1])
	}
	if video.Sources[0].Duration != 15.934 {
		t.Errorf("duration = %v, want 15.934", video.Sources[0].Duration)
	}

	audio := res.Items[1]
	if audio.Type != extract.ContentAudio || audio.Index != 1 {
		t.Errorf("audio item = %+v", audio)
	}
	src := audio.Sources[0]
	if src.URL != "https://sf16.example/music.mp3" || src.MIME != "audio/mpeg" || src.Extension != "mp3" {
		t.Errorf("audio source = %+v", src)
	}
	if src.Duration != 30 {
		t.Errorf("audio duration = %v, want 30", src.Duration)
	}
}

func TestExtractVideoWatermarkFallback(t *testing.T) {
	body := `{"data":{"aweme_id":"7","type":"video","author":{"nickname":"A"},"video_data":{"wm_video_url":"https://v16.example/wm.mp4","wm_video_url_HQ":"https://v16.example/wm-hd.mp4"}}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer server.Close()

	res, err := testExtractor(server).Extract(context.Background(), "https://vm.tiktok.com/ZMabc123/", extract.Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	sources := res.Items[0].Sources
	if len(sources) != 2 || sources[0].URL != "https://v16.example/wm-hd.mp4" || sources[1].URL != "https://v16.example/wm.mp4" {
		t.Errorf("fallback sources = %+v", sources)
	}
}

const slideshowFixture = `{"data":{"aweme_id":"7300000000000000001","type":"image","desc":"Three looks","author":{"nickname":"Stylist","unique_id":"style.daily"},"statistics":{"digg_count":1200,"comment_count":45,"play_count":56000},"music":{"play_url":{"url":"https://sf16.example/track.mp3"},"duration":28.5},"cover_data":{"cover":{"url_list":["https://p16.example/cover.jpg"]}},"image_data":{"no_watermark_image_list":["https://p16.example/1.jpg","https://p16.example/2.jpg","https://p16.example/3.jpg"]}}}`

func TestExtractSlideshow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, slideshowFixture)
	}))
	defer server.Close()

	res, err := testExtractor(server).Extract(context.Background(),
		"https://www.tiktok.com/@stylist/photo/7300000000000000001", extract.Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.ContentType != extract.ContentGallery {
		t.Errorf("content type = %s, want gallery", res.ContentType)
	}
	if len(res.Items) != 4 {
		t.Fatalf("items = %d, want 3 photos plus audio", len(res.Items))
	}
	for i, want := range []string{"https://p16.example/1.jpg", "https://p16.example/2.jpg", "https://p16.example/3.jpg"} {
		item := res.Items[i]
		if item.Index != i || item.Type != extract.ContentImage || item.Sources[0].URL != want {
			t.Errorf("photo %d = %+v", i, item)
		}
	}
	if res.Items[0].Thumbnail != "https://p16.example/cover.jpg" {
		t.Errorf("thumbnail = %q", res.Items[0].Thumbnail)
	}
	audio := res.Items[3]
	if audio.Type != extract.ContentAudio || audio.Sources[0].URL != "https://sf16.example/track.mp3" {
		t.Errorf("audio item = %+v", audio)
	}
	if audio.Sources[0].Duration != 28.5 {
		t.Errorf("audio duration = %v", audio.Sources[0].Duration)
	}
}

func TestExtractHelperFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no playable video", `{"data":{"aweme_id":"7","type":"video","author":{"nickname":"A"},"video_data":{}}}`, errs.CodeNoMediaFound},
		{"no slideshow images", `{"data":{"aweme_id":"7","type":"image","author":{"nickname":"A"},"image_data":{"no_watermark_image_list":[]}}}`, errs.CodeNoMediaFound},
		{"missing payload", `{"data":null}`, errs.CodeExtractionFailed},
		{"malformed body", `<html>backend exploded</html>`, errs.CodeExtractionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := testExtractor(server).Extract(context.Background(), "https://vm.tiktok.com/ZMabc123/", extract.Options{})
			if errs.CodeOf(err) != tt.want {
				t.Errorf("error = %v, want code %s", err, tt.want)
			}
		})
	}
}

func TestExtractHelperUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no result", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testExtractor(server).Extract(context.Background(), "https://vm.tiktok.com/ZMabc123/", extract.Options{})
	if errs.CodeOf(err) != errs.CodeUpstreamError {
		t.Errorf("error = %v, want UPSTREAM_ERROR", err)
	}
	if errs.UpstreamStatusOf(err) != http.StatusNotFound {
		t.Errorf("upstream status = %d, want 404", errs.UpstreamStatusOf(err))
	}
}
