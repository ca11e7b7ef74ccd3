// SPDX-License-Identifier: MIT

package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
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
	// Tests wire the guest tier explicitly so nothing reaches the real
	// activation endpoint.
	e.guest = nil
	if server != nil {
		e.syndicationURL = server.URL + "/tweet-result"
		e.graphqlURL = server.URL + "/graphql/TweetResultByRestId"
	}
	return e
}

func testGuestTokens(t *testing.T, e *Extractor, server *httptest.Server) *guestTokens {
	t.Helper()
	return &guestTokens{
		client:      e.client,
		logger:      zerolog.Nop(),
		activateURL: server.URL + "/guest/activate.json",
		path:        filepath.Join(t.TempDir(), "twitter-guest.json"),
	}
}

func TestTweetID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://twitter.com/nasa/status/1790000000000000000", "1790000000000000000"},
		{"https://x.com/nasa/status/1790000000000000000?s=20&t=xyz", "1790000000000000000"},
		{"https://mobile.twitter.com/nasa/statuses/42", "42"},
		{"https://www.x.com/i/web/status/99", "99"},
		{"https://x.com/nasa", ""},
		{"https://example.com/nasa/status/55", ""},
	}
	for _, tt := range tests {
		if got := TweetID(tt.url); got != tt.want {
			t.Errorf("TweetID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	e := testExtractor(nil)
	matching := []string{
		"https://x.com/nasa/status/1790000000000000000",
		"https://twitter.com/nasa/status/1790000000000000000",
		"https://t.co/AbCd123",
	}
	for _, u := range matching {
		if !e.Match(u) {
			t.Errorf("Match(%q) = false, want true", u)
		}
	}
	if e.Match("https://instagram.com/p/abc/") {
		t.Error("Match must reject foreign URLs")
	}
}

func TestUpgradePhotoURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://pbs.twimg.com/media/GG1234.jpg",
			"https://pbs.twimg.com/media/GG1234?format=jpg&name=orig",
		},
		{
			"https://pbs.twimg.com/media/GG1234?format=png&name=small",
			"https://pbs.twimg.com/media/GG1234?format=png&name=orig",
		},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := upgradePhotoURL(tt.in); got != tt.want {
			t.Errorf("upgradePhotoURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVideoVariantOrdering(t *testing.T) {
	item, ok := videoItem(0, mediaEntity{
		Type:          "video",
		MediaURLHTTPS: "https://pbs.twimg.com/thumb.jpg",
		VideoInfo: videoInfo{
			DurationMillis: 30000,
			Variants: []videoVariant{
				{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/pl/master.m3u8"},
				{Bitrate: 632000, ContentType: "video/mp4", URL: "https://video.twimg.com/vid/320x568/low.mp4"},
				{Bitrate: 2176000, ContentType: "video/mp4", URL: "https://video.twimg.com/vid/720x1280/hi.mp4"},
			},
		},
	})
	if !ok {
		t.Fatal("videoItem rejected a playable entity")
	}
	if len(item.Sources) != 2 {
		t.Fatalf("got %d sources, want 2 mp4 variants", len(item.Sources))
	}
	if item.Sources[0].Bitrate != 2176 || item.Sources[1].Bitrate != 632 {
		t.Errorf("bitrate order = [%d %d], want descending", item.Sources[0].Bitrate, item.Sources[1].Bitrate)
	}
	if item.Sources[0].Quality != "720p" || item.Sources[0].Resolution != "720x1280" {
		t.Errorf("top source quality = %q res = %q", item.Sources[0].Quality, item.Sources[0].Resolution)
	}
	if item.Sources[0].Duration != 30 {
		t.Errorf("duration = %v, want 30s", item.Sources[0].Duration)
	}
}

func TestBuildResultQuoteUnwrap(t *testing.T) {
	e := testExtractor(nil)
	outer := &tweetData{
		ID:         "1",
		Text:       "look at this",
		Name:       "Commenter",
		ScreenName: "commenter",
		Quoted: &tweetData{
			ID:         "2",
			Text:       "original clip",
			CreatedAt:  "2024-05-16T14:00:00Z",
			Name:       "Origin",
			ScreenName: "origin",
			Likes:      900,
			Media: []mediaEntity{{
				Type:          "video",
				MediaURLHTTPS: "https://pbs.twimg.com/thumb.jpg",
				VideoInfo: videoInfo{Variants: []videoVariant{
					{Bitrate: 1000000, ContentType: "video/mp4", URL: "https://video.twimg.com/vid/720x900/v.mp4"},
				}},
			}},
		},
	}

	res, err := e.buildResult("https://x.com/commenter/status/1", outer)
	if err != nil {
		t.Fatal(err)
	}
	if res.AuthorUsername != "origin" || res.ID != "2" {
		t.Errorf("quoted tweet not unwrapped: author=%q id=%q", res.AuthorUsername, res.ID)
	}
	if res.Stats.Likes != 900 {
		t.Errorf("stats not taken from quoted tweet: %+v", res.Stats)
	}
	if !strings.HasPrefix(res.Description, "quote of @origin") {
		t.Errorf("description %q does not indicate the quote", res.Description)
	}
	if res.UploadDate != "2024-05-16T14:00:00Z" {
		t.Errorf("upload date %q not taken from quoted tweet", res.UploadDate)
	}
}

func TestBuildResultNoMedia(t *testing.T) {
	e := testExtractor(nil)
	_, err := e.buildResult("https://x.com/a/status/1", &tweetData{ID: "1", Text: "words only", ScreenName: "a"})
	if !errs.Is(err, errs.CodeNoMediaFound) {
		t.Fatalf("err = %v, want NO_MEDIA_FOUND", err)
	}
}

const syndicationFixture = `{
	"__typename": "Tweet",
	"id_str": "1790000000000000000",
	"text": "Launch day!\nFull stream below.",
	"created_at": "2024-05-16T14:00:00.000Z",
	"user": {"name": "Space Agency", "screen_name": "space"},
	"favorite_count": 120,
	"conversation_count": 14,
	"mediaDetails": [{
		"type": "video",
		"media_url_https": "https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/th.jpg",
		"video_info": {
			"duration_millis": 30000,
			"variants": [
				{"content_type": "application/x-mpegURL", "url": "https://video.twimg.com/pl/master.m3u8"},
				{"bitrate": 632000, "content_type": "video/mp4", "url": "https://video.twimg.com/vid/320x568/low.mp4"},
				{"bitrate": 2176000, "content_type": "video/mp4", "url": "https://video.twimg.com/vid/720x1280/hi.mp4"}
			]
		}
	}]
}`

func TestExtractGuestTier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "1790000000000000000" {
			t.Errorf("syndication id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(syndicationFixture))
	}))
	defer server.Close()

	e := testExtractor(server)
	res, err := e.Extract(context.Background(), "https://x.com/space/status/1790000000000000000", extract.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != extract.ContentVideo {
		t.Errorf("content type = %q", res.ContentType)
	}
	if res.Title != "Launch day!" {
		t.Errorf("title = %q, want first line", res.Title)
	}
	if res.UploadDate != "2024-05-16T14:00:00Z" {
		t.Errorf("upload date = %q", res.UploadDate)
	}
	if res.Stats == nil || res.Stats.Likes != 120 || res.Stats.Comments != 14 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if len(res.Items) != 1 || len(res.Items[0].Sources) != 2 {
		t.Fatalf("items = %+v", res.Items)
	}
	if res.Items[0].Sources[0].Quality != "720p" {
		t.Errorf("top quality = %q", res.Items[0].Sources[0].Quality)
	}
}

func TestExtractSyndicationUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"not found maps to private", http.StatusNotFound, "", errs.CodePrivateContent},
		{"empty body maps to private", http.StatusOK, "{}", errs.CodePrivateContent},
		{"tombstone maps to deleted", http.StatusOK, `{"__typename":"TweetTombstone"}`, errs.CodeDeletedContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			e := testExtractor(server)
			_, err := e.Extract(context.Background(), "https://x.com/space/status/1790000000000000000", extract.Options{})
			if !errs.Is(err, tt.wantCode) {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

const graphqlFixture = `{"data":{"tweetResult":{"result":{
	"__typename": "TweetWithVisibilityResults",
	"tweet": {
		"__typename": "Tweet",
		"rest_id": "1790000000000000001",
		"core": {"user_results": {"result": {"legacy": {"name": "Private Person", "screen_name": "priv"}}}},
		"legacy": {
			"created_at": "Thu May 16 14:00:00 +0000 2024",
			"full_text": "members only clip",
			"favorite_count": 5,
			"retweet_count": 1,
			"reply_count": 0,
			"extended_entities": {"media": [{
				"type": "video",
				"media_url_https": "https://pbs.twimg.com/th2.jpg",
				"video_info": {"duration_millis": 10000, "variants": [
					{"bitrate": 950000, "content_type": "video/mp4", "url": "https://video.twimg.com/vid/480x852/v.mp4"}
				]}
			}]}
		},
		"views": {"count": "4321"}
	}
}}}}`

func TestExtractCookieTier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer AAAA") {
			t.Errorf("missing public bearer, got %q", r.Header.Get("Authorization"))
		}
		if got := r.Header.Get("X-Csrf-Token"); got != "deadbeef" {
			t.Errorf("csrf header = %q", got)
		}
		if got := r.Header.Get("X-Twitter-Auth-Type"); got != "OAuth2Session" {
			t.Errorf("auth type header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(graphqlFixture))
	}))
	defer server.Close()

	e := testExtractor(server)
	res, err := e.Extract(context.Background(), "https://x.com/priv/status/1790000000000000001", extract.Options{
		Cookie: "auth_token=abc123; ct0=deadbeef",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.AuthorUsername != "priv" {
		t.Errorf("author = %q", res.AuthorUsername)
	}
	if res.UploadDate != "2024-05-16T14:00:00Z" {
		t.Errorf("upload date = %q, ruby layout not normalized", res.UploadDate)
	}
	if res.Stats == nil || res.Stats.Views != 4321 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if len(res.Items) != 1 || res.Items[0].Sources[0].Quality != "480p" {
		t.Fatalf("items = %+v", res.Items)
	}
}

func TestExtractCookieMissingCSRF(t *testing.T) {
	e := testExtractor(nil)
	_, err := e.Extract(context.Background(), "https://x.com/a/status/5", extract.Options{Cookie: "auth_token=only"})
	if !errs.Is(err, errs.CodeLoginRequired) {
		t.Fatalf("err = %v, want LOGIN_REQUIRED", err)
	}
}

func TestGraphqlTombstone(t *testing.T) {
	_, err := graphqlToData(&graphqlTweet{Typename: "TweetTombstone"})
	if !errs.Is(err, errs.CodeDeletedContent) {
		t.Fatalf("err = %v, want DELETED_CONTENT", err)
	}

	age := &graphqlTweet{Typename: "TweetTombstone"}
	age.Tombstone.Text.Text = "Age-restricted adult content. This content might not be appropriate."
	_, err = graphqlToData(age)
	if !errs.Is(err, errs.CodeAgeRestricted) {
		t.Fatalf("err = %v, want AGE_RESTRICTED", err)
	}
}

func TestExtractGuestTokenFallback(t *testing.T) {
	var activations atomic.Int32
	handler := http.NewServeMux()
	handler.HandleFunc("/tweet-result", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler.HandleFunc("/guest/activate.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("activation method = %s, want POST", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer AAAA") {
			t.Errorf("activation bearer = %q", r.Header.Get("Authorization"))
		}
		activations.Add(1)
		w.Write([]byte(`{"guest_token":"tok-1"}`))
	})
	handler.HandleFunc("/graphql/TweetResultByRestId", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Guest-Token"); got != "tok-1" {
			t.Errorf("guest token header = %q", got)
		}
		if r.Header.Get("Cookie") != "" {
			t.Error("guest call must not carry a cookie")
		}
		w.Write([]byte(graphqlFixture))
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	e := testExtractor(server)
	e.guest = testGuestTokens(t, e, server)

	res, err := e.Extract(context.Background(), "https://x.com/priv/status/1790000000000000001", extract.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.AuthorUsername != "priv" {
		t.Errorf("author = %q", res.AuthorUsername)
	}
	if n := activations.Load(); n != 1 {
		t.Errorf("activations = %d, want 1", n)
	}

	// The token must survive on disk for the next boot.
	data, err := os.ReadFile(e.guest.path)
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	var st guestTokenState
	if err := json.Unmarshal(data, &st); err != nil || st.Token != "tok-1" {
		t.Errorf("persisted state = %s (err %v)", data, err)
	}
}

func TestGuestTokenRestoredFromDisk(t *testing.T) {
	var activations atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		activations.Add(1)
		w.Write([]byte(`{"guest_token":"tok-1"}`))
	}))
	defer server.Close()

	e := testExtractor(server)
	first := testGuestTokens(t, e, server)
	if _, err := first.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A fresh instance on the same path stands in for a restarted process.
	second := &guestTokens{
		client:      e.client,
		logger:      zerolog.Nop(),
		activateURL: first.activateURL,
		path:        first.path,
	}
	tok, err := second.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok-1" {
		t.Errorf("restored token = %q", tok)
	}
	if n := activations.Load(); n != 1 {
		t.Errorf("activations = %d, want the restart to reuse the disk token", n)
	}
}

func TestGuestTokenRetryAfterReject(t *testing.T) {
	var activations atomic.Int32
	handler := http.NewServeMux()
	handler.HandleFunc("/tweet-result", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler.HandleFunc("/guest/activate.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"guest_token":"tok-%d"}`, activations.Add(1))
	})
	handler.HandleFunc("/graphql/TweetResultByRestId", func(w http.ResponseWriter, r *http.Request) {
		// The first token is expired upstream; a replacement works.
		if r.Header.Get("X-Guest-Token") == "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(graphqlFixture))
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	e := testExtractor(server)
	e.guest = testGuestTokens(t, e, server)

	res, err := e.Extract(context.Background(), "https://x.com/priv/status/1790000000000000001", extract.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "1790000000000000001" {
		t.Errorf("id = %q", res.ID)
	}
	if n := activations.Load(); n != 2 {
		t.Errorf("activations = %d, want a reactivation after the 401", n)
	}
}

func TestGuestFallbackErrorChoice(t *testing.T) {
	tests := []struct {
		name     string
		graphql  func(w http.ResponseWriter)
		wantCode string
	}{
		{
			"tombstone names the real reason",
			func(w http.ResponseWriter) {
				w.Write([]byte(`{"data":{"tweetResult":{"result":{"__typename":"TweetTombstone","tombstone":{"text":{"text":"Age-restricted adult content."}}}}}}`))
			},
			errs.CodeAgeRestricted,
		},
		{
			"server error keeps the syndication answer",
			func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) },
			errs.CodePrivateContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.NewServeMux()
			handler.HandleFunc("/tweet-result", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			handler.HandleFunc("/guest/activate.json", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"guest_token":"tok-1"}`))
			})
			handler.HandleFunc("/graphql/TweetResultByRestId", func(w http.ResponseWriter, r *http.Request) {
				tt.graphql(w)
			})
			server := httptest.NewServer(handler)
			defer server.Close()

			e := testExtractor(server)
			e.guest = testGuestTokens(t, e, server)

			_, err := e.Extract(context.Background(), "https://x.com/priv/status/1790000000000000001", extract.Options{})
			if !errs.Is(err, tt.wantCode) {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}
