// SPDX-License-Identifier: MIT

package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

func testExtractor(server *httptest.Server) *Extractor {
	e := New(extract.Env{
		Client: fetch.New(fetch.Config{Logger: zerolog.Nop()}),
		Logger: zerolog.Nop(),
	})
	if server != nil {
		e.graphqlURL = server.URL + "/api/graphql"
		e.mediaInfoURL = server.URL + "/api/v1/media"
	}
	return e
}

func TestShortcodeRoundTrip(t *testing.T) {
	known := []struct {
		code string
		id   string
	}{
		{"A", "0"},
		{"B", "1"},
		{"Q", "16"},
		{"BA", "64"},
		{"Ph", "993"},
		{"TS", "1234"},
	}
	for _, k := range known {
		id, err := ShortcodeToMediaID(k.code)
		if err != nil || id != k.id {
			t.Errorf("ShortcodeToMediaID(%q) = (%q, %v), want %q", k.code, id, err, k.id)
		}
		code, err := MediaIDToShortcode(k.id)
		if err != nil || code != k.code {
			t.Errorf("MediaIDToShortcode(%q) = (%q, %v), want %q", k.id, code, err, k.code)
		}
	}

	// Values past int64 must survive the round trip too.
	for _, code := range []string{"C7c1xPzJklm", "DAbCdEfGhIj", "B-underscor_"} {
		id, err := ShortcodeToMediaID(code)
		if err != nil {
			t.Fatalf("ShortcodeToMediaID(%q): %v", code, err)
		}
		back, err := MediaIDToShortcode(id)
		if err != nil || back != code {
			t.Errorf("round trip %q -> %q -> %q", code, id, back)
		}
	}

	if got, err := MediaIDToShortcode("1234_56789"); err != nil || got != "TS" {
		t.Errorf("MediaIDToShortcode with user suffix = (%q, %v), want TS", got, err)
	}
	if _, err := ShortcodeToMediaID("has space"); err == nil {
		t.Error("invalid digit must be rejected")
	}
	if _, err := MediaIDToShortcode("notanumber"); err == nil {
		t.Error("non-decimal media id must be rejected")
	}
}

func TestMatchAndIDs(t *testing.T) {
	e := testExtractor(nil)
	tests := []struct {
		url       string
		match     bool
		shortcode string
		storyID   string
	}{
		{"https://www.instagram.com/p/C7c1xPzJklm/", true, "C7c1xPzJklm", ""},
		{"https://instagram.com/reel/C7c1xPzJklm/?igsh=abc", true, "C7c1xPzJklm", ""},
		{"https://www.instagram.com/tv/C7c1xPzJklm/", true, "C7c1xPzJklm", ""},
		{"https://www.instagram.com/traveler/p/C7c1xPzJklm/", true, "C7c1xPzJklm", ""},
		{"https://www.instagram.com/stories/traveler/3370073161011200000/", true, "", "3370073161011200000"},
		{"https://www.instagram.com/traveler/", false, "", ""},
		{"https://example.com/p/C7c1xPzJklm/", false, "", ""},
	}
	for _, tt := range tests {
		if got := e.Match(tt.url); got != tt.match {
			t.Errorf("Match(%q) = %v, want %v", tt.url, got, tt.match)
		}
		if got := Shortcode(tt.url); got != tt.shortcode {
			t.Errorf("Shortcode(%q) = %q, want %q", tt.url, got, tt.shortcode)
		}
		if got := StoryID(tt.url); got != tt.storyID {
			t.Errorf("StoryID(%q) = %q, want %q", tt.url, got, tt.storyID)
		}
	}
}

func TestStartTier(t *testing.T) {
	e := testExtractor(nil)
	if tier := e.StartTier("https://www.instagram.com/stories/traveler/123/"); tier != extract.TierServer {
		t.Errorf("story start tier = %v, want server", tier)
	}
	if tier := e.StartTier("https://www.instagram.com/p/C7c1xPzJklm/"); tier != extract.TierGuest {
		t.Errorf("post start tier = %v, want guest", tier)
	}
}

func TestRetryOnNoMedia(t *testing.T) {
	e := testExtractor(nil)
	if !e.RetryOnNoMedia("https://www.instagram.com/reel/C7c1xPzJklm/") {
		t.Error("reels must retry on NO_MEDIA_FOUND")
	}
	if e.RetryOnNoMedia("https://www.instagram.com/p/C7c1xPzJklm/") {
		t.Error("plain posts must not retry on NO_MEDIA_FOUND")
	}
}

const sidecarFixture = `{"data":{"xdt_shortcode_media":{
	"__typename": "XDTGraphSidecar",
	"id": "3370073161011200000",
	"shortcode": "C7c1xPzJklm",
	"display_url": "https://scontent.cdninstagram.com/cover.jpg",
	"is_video": false,
	"edge_media_to_caption": {"edges": [{"node": {"text": "Three frames from the trip\nday two"}}]},
	"owner": {"username": "traveler", "full_name": "Traveler"},
	"edge_media_preview_like": {"count": 512},
	"edge_media_to_comment": {"count": 33},
	"taken_at_timestamp": 1715853600,
	"edge_sidecar_to_children": {"edges": [
		{"node": {"__typename": "XDTGraphImage", "id": "a1", "display_url": "https://scontent.cdninstagram.com/a1.jpg", "is_video": false, "dimensions": {"width": 1080, "height": 1350}}},
		{"node": {"__typename": "XDTGraphVideo", "id": "a2", "display_url": "https://scontent.cdninstagram.com/a2.jpg", "video_url": "https://scontent.cdninstagram.com/a2.mp4", "is_video": true, "video_duration": 12.5, "dimensions": {"width": 720, "height": 1280}}}
	]}
}},"status":"ok"}`

func TestExtractGuestCarousel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("doc_id"); got != postDocID {
			t.Errorf("doc_id = %q", got)
		}
		if vars := r.PostForm.Get("variables"); !strings.Contains(vars, "C7c1xPzJklm") {
			t.Errorf("variables = %q, want shortcode inside", vars)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sidecarFixture))
	}))
	defer server.Close()

	e := testExtractor(server)
	res, err := e.Extract(context.Background(), "https://www.instagram.com/p/C7c1xPzJklm/", extract.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != extract.ContentCarousel {
		t.Errorf("content type = %q, want carousel", res.ContentType)
	}
	if res.Title != "Three frames from the trip" {
		t.Errorf("title = %q", res.Title)
	}
	if res.UploadDate != "2024-05-16T10:00:00Z" {
		t.Errorf("upload date = %q", res.UploadDate)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	// Carousel order matches the sidecar edge order.
	if res.Items[0].Type != "image" || res.Items[0].Sources[0].URL != "https://scontent.cdninstagram.com/a1.jpg" {
		t.Errorf("item 0 = %+v", res.Items[0])
	}
	if res.Items[1].Type != "video" || res.Items[1].Sources[0].URL != "https://scontent.cdninstagram.com/a2.mp4" {
		t.Errorf("item 1 = %+v", res.Items[1])
	}
	if res.Items[1].Sources[0].Duration != 12.5 {
		t.Errorf("video duration = %v", res.Items[1].Sources[0].Duration)
	}
	if res.Stats == nil || res.Stats.Likes != 512 || res.Stats.Comments != 33 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestExtractGuestPrivatePost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"xdt_shortcode_media":null},"status":"ok"}`))
	}))
	defer server.Close()

	e := testExtractor(server)
	_, err := e.Extract(context.Background(), "https://www.instagram.com/p/C7c1xPzJklm/", extract.Options{})
	if !errs.Is(err, errs.CodePrivateContent) {
		t.Fatalf("err = %v, want PRIVATE_CONTENT", err)
	}
}

const reelInfoFixture = `{"items":[{
	"id": "3370073161011200001_999",
	"code": "C7c1xQaJklm",
	"taken_at": 1715853600,
	"media_type": 2,
	"image_versions2": {"candidates": [{"url": "https://scontent.cdninstagram.com/r-cover.jpg", "width": 720, "height": 1280}]},
	"video_versions": [
		{"url": "https://scontent.cdninstagram.com/r-480.mp4", "width": 480, "height": 854, "type": 102},
		{"url": "https://scontent.cdninstagram.com/r-720.mp4", "width": 720, "height": 1280, "type": 101}
	],
	"video_duration": 15.0,
	"caption": {"text": "weekend reel"},
	"user": {"username": "traveler", "full_name": "Traveler"},
	"like_count": 10, "comment_count": 2, "play_count": 1000
}],"status":"ok"}`

func TestExtractCookieTierReel(t *testing.T) {
	wantID, err := ShortcodeToMediaID("C7c1xQaJklm")
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/media/"+wantID+"/info/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-CSRFToken"); got != "tok123" {
			t.Errorf("csrf header = %q", got)
		}
		if got := r.Header.Get("X-IG-App-ID"); got != webAppID {
			t.Errorf("app id header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reelInfoFixture))
	}))
	defer server.Close()

	e := testExtractor(server)
	res, err := e.Extract(context.Background(), "https://www.instagram.com/reel/C7c1xQaJklm/", extract.Options{
		Cookie: "sessionid=xyz; csrftoken=tok123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != extract.ContentReel {
		t.Errorf("content type = %q, want reel", res.ContentType)
	}
	if len(res.Items) != 1 || len(res.Items[0].Sources) != 2 {
		t.Fatalf("items = %+v", res.Items)
	}
	top := res.Items[0].Sources[0]
	if top.URL != "https://scontent.cdninstagram.com/r-720.mp4" || top.Quality != "720p" {
		t.Errorf("top source = %+v, want 720p first", top)
	}
	if res.Stats == nil || res.Stats.Views != 1000 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestExtractStoryNeedsCredentials(t *testing.T) {
	e := testExtractor(nil)
	_, err := e.Extract(context.Background(), "https://www.instagram.com/stories/traveler/123/", extract.Options{})
	if !errs.Is(err, errs.CodeLoginRequired) {
		t.Fatalf("err = %v, want LOGIN_REQUIRED", err)
	}
}

func TestMediaInfoLoginWall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"login_required","status":"fail"}`))
	}))
	defer server.Close()

	e := testExtractor(server)
	_, err := e.Extract(context.Background(), "https://www.instagram.com/stories/traveler/123/", extract.Options{
		Cookie: "sessionid=stale; csrftoken=tok123",
	})
	if !errs.Is(err, errs.CodeLoginRequired) {
		t.Fatalf("err = %v, want LOGIN_REQUIRED", err)
	}
}
