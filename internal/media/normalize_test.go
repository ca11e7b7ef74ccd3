// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/registry"
)

func testNormalizer(t *testing.T) (*Normalizer, *registry.Registry) {
	t.Helper()
	reg := registry.NewWithStore(registry.NewMemoryStore(), time.Minute, zerolog.Nop())
	t.Cleanup(func() { reg.Close() })
	return NewNormalizer(reg, zerolog.Nop()), reg
}

func TestNormalizeProgressiveSource(t *testing.T) {
	n, reg := testNormalizer(t)
	res := &extract.Result{
		ContentType: "video",
		Title:       "Launch Day",
		Author:      "NASA",
		Items: []extract.MediaItem{{
			Index:     0,
			Type:      "video",
			Thumbnail: "https://cdn.example.com/thumb.jpg",
			Sources: []extract.MediaSource{{
				Quality: "1080p",
				URL:     "https://video.example.com/v/abc.mp4",
				Size:    52428800,
			}},
		}},
	}

	n.Normalize(context.Background(), res)

	src := res.Items[0].Sources[0]
	if src.MIME != "video/mp4" || src.Extension != "mp4" {
		t.Errorf("type analysis: mime=%q ext=%q", src.MIME, src.Extension)
	}
	if src.Format != extract.FormatProgressive {
		t.Errorf("format = %q, want progressive", src.Format)
	}
	if src.SizeConfidence != SizeExact {
		t.Errorf("size confidence = %q, want exact", src.SizeConfidence)
	}
	if src.Filename != "NASA_video_Launch_Day_1080p.mp4" {
		t.Errorf("filename = %q", src.Filename)
	}
	if src.Hash == "" {
		t.Fatal("source url was not registered")
	}
	if got, ok := reg.Lookup(context.Background(), src.Hash); !ok || got != "https://video.example.com/v/abc.mp4" {
		t.Errorf("hash lookup = (%q, %v)", got, ok)
	}
	if res.Items[0].ThumbnailHash == "" {
		t.Fatal("thumbnail was not registered")
	}
	if got, ok := reg.Lookup(context.Background(), res.Items[0].ThumbnailHash); !ok || got != "https://cdn.example.com/thumb.jpg" {
		t.Errorf("thumbnail lookup = (%q, %v)", got, ok)
	}
}

func TestNormalizeStreamingSizeHonesty(t *testing.T) {
	n, _ := testNormalizer(t)
	res := &extract.Result{
		ContentType: "video",
		Title:       "Live",
		Author:      "someone",
		Items: []extract.MediaItem{{
			Index: 0,
			Type:  "video",
			Sources: []extract.MediaSource{
				{
					Quality:  "hls",
					URL:      "https://cdn.example.com/stream/master.m3u8",
					Size:     999999, // upstream lied, no bitrate to back it
					HasAudio: true,
				},
				{
					Quality:  "hls",
					URL:      "https://cdn.example.com/stream/720.m3u8",
					Bitrate:  2500,
					Duration: 60,
					HasAudio: true,
				},
			},
		}},
	}

	n.Normalize(context.Background(), res)

	noEstimate := res.Items[0].Sources[0]
	if noEstimate.Format != extract.FormatHLS {
		t.Errorf("format = %q, want hls", noEstimate.Format)
	}
	if noEstimate.Size != 0 || noEstimate.SizeConfidence != "" {
		t.Errorf("manifest without bitrate kept size (%d, %q)", noEstimate.Size, noEstimate.SizeConfidence)
	}

	estimated := res.Items[0].Sources[1]
	if estimated.Size != 18750000 || estimated.SizeConfidence != SizeEstimated {
		t.Errorf("estimated size = (%d, %q), want (18750000, estimated)", estimated.Size, estimated.SizeConfidence)
	}
}

func TestNormalizeCarouselIndexes(t *testing.T) {
	n, _ := testNormalizer(t)
	res := &extract.Result{
		ContentType:    "carousel",
		Title:          "Three frames",
		AuthorUsername: "artist",
		Items: []extract.MediaItem{
			{Index: 0, Type: "image", Sources: []extract.MediaSource{{Quality: "orig", URL: "https://img.example.com/a.jpg"}}},
			{Index: 1, Type: "image", Sources: []extract.MediaSource{{Quality: "orig", URL: "https://img.example.com/b.jpg"}}},
			{Index: 2, Type: "image", Sources: []extract.MediaSource{{Quality: "orig", URL: "https://img.example.com/c.jpg"}}},
		},
	}

	n.Normalize(context.Background(), res)

	want := []string{
		"artist_carousel_Three_frames_1_orig.jpg",
		"artist_carousel_Three_frames_2_orig.jpg",
		"artist_carousel_Three_frames_3_orig.jpg",
	}
	for i, item := range res.Items {
		if item.Sources[0].Filename != want[i] {
			t.Errorf("item %d filename = %q, want %q", i, item.Sources[0].Filename, want[i])
		}
		if item.Sources[0].Hash == "" {
			t.Errorf("item %d source not registered", i)
		}
	}
}

func TestNormalizeWithoutRegistry(t *testing.T) {
	n := NewNormalizer(nil, zerolog.Nop())
	res := &extract.Result{
		ContentType: "video",
		Items: []extract.MediaItem{{
			Sources: []extract.MediaSource{{URL: "https://video.example.com/x.mp4"}},
		}},
	}
	n.Normalize(context.Background(), res)
	if res.Items[0].Sources[0].Hash != "" {
		t.Error("hash must stay empty without a registry")
	}
	if res.Items[0].Sources[0].Filename == "" {
		t.Error("filename must still be synthesized")
	}
}
