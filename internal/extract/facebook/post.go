// SPDX-License-Identifier: MIT

package facebook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/scrape"
)

// videoKeys are the embedded-player fields tried in fidelity order. The
// browser_native pair is what the web player actually streams; playable
// and progressive are older fallbacks that still appear on some pages.
var videoKeys = []struct {
	key     string
	quality string
}{
	{"browser_native_hd_url", "hd"},
	{"browser_native_sd_url", "sd"},
	{"playable_url_quality_hd", "hd"},
	{"playable_url", "sd"},
	{"progressive_url", "progressive"},
}

// videoSources walks the priority keys inside the target block and returns
// the distinct playable URLs, best first.
func videoSources(block string) []extract.MediaSource {
	seen := make(map[string]struct{})
	var out []extract.MediaSource
	for _, vk := range videoKeys {
		u := jsonStringValue(block, vk.key)
		if u == "" || !strings.HasPrefix(u, "http") {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, extract.MediaSource{
			Quality:  vk.quality,
			URL:      u,
			HasAudio: true,
			Format:   extract.FormatProgressive,
		})
	}
	return out
}

type imageRef struct {
	URI    string `json:"uri"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// subattachments mirrors the carousel block of a multi-photo post.
type subattachments struct {
	Count int `json:"count"`
	Nodes []struct {
		Media struct {
			Typename string   `json:"__typename"`
			ID       string   `json:"id"`
			Image    imageRef `json:"image"`
		} `json:"media"`
	} `json:"nodes"`
}

// imageItems parses the all_subattachments carousel of the primary post
// section, falling back to the single photo_image of a one-photo post.
// Node order is preserved.
func imageItems(block string) []extract.MediaItem {
	if raw := scrape.ExtractJSON(block, `"all_subattachments"`); raw != "" {
		var sub subattachments
		if err := json.Unmarshal([]byte(raw), &sub); err == nil {
			var items []extract.MediaItem
			for _, node := range sub.Nodes {
				if node.Media.Image.URI == "" {
					continue
				}
				if node.Media.Typename != "" && node.Media.Typename != "Photo" {
					continue
				}
				items = append(items, imageItem(len(items), node.Media.Image))
			}
			if len(items) > 0 {
				return items
			}
		}
	}
	for _, key := range []string{"photo_image", "full_image"} {
		obj := jsonObjectValue(block, key)
		if obj == "" {
			continue
		}
		var img imageRef
		if err := json.Unmarshal([]byte(obj), &img); err != nil || img.URI == "" {
			continue
		}
		return []extract.MediaItem{imageItem(0, img)}
	}
	return nil
}

func imageItem(index int, img imageRef) extract.MediaItem {
	return extract.MediaItem{
		Index:  index,
		Type:   extract.ContentImage,
		Format: extract.FormatProgressive,
		Sources: []extract.MediaSource{{
			Quality:    "orig",
			URL:        img.URI,
			Resolution: resolutionString(img.Width, img.Height),
			Format:     extract.FormatProgressive,
		}},
	}
}

func resolutionString(w, h int) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// buildPost assembles the result for everything that is not a story.
// Video keys win when the page has both a player and attachments; a post
// URL is reclassified by what the page actually holds.
func (e *Extractor) buildPost(sourceURL string, ln link, page string) (*extract.Result, error) {
	block := targetBlock(page, ln.id)
	meta := scrape.ExtractMetaTags(page)
	res := &extract.Result{
		Success:     true,
		Platform:    platform,
		ContentType: ln.kind,
		SourceURL:   sourceURL,
		ID:          ln.id,
		Title:       pageTitle(meta),
		Author:      ownerName(block),
		Description: postMessage(block),
		UploadDate:  publishTime(block),
		Stats:       statsFromBlock(block, meta.Title+" "+meta.OGDesc),
	}

	if ln.kind != extract.ContentImage {
		if sources := videoSources(block); len(sources) > 0 {
			if ms := jsonNumberNear(block, "playable_duration_in_ms", 16); ms > 0 {
				for i := range sources {
					sources[i].Duration = float64(ms) / 1000
				}
			}
			if res.ContentType == extract.ContentPost {
				res.ContentType = extract.ContentVideo
			}
			res.Items = []extract.MediaItem{{
				Type:      extract.ContentVideo,
				Thumbnail: thumbnailURL(block, meta),
				Format:    extract.FormatProgressive,
				Sources:   sources,
			}}
			return res, nil
		}
	}

	if items := imageItems(block); len(items) > 0 {
		res.Items = items
		if len(items) > 1 {
			res.ContentType = extract.ContentCarousel
		} else {
			res.ContentType = extract.ContentImage
		}
		return res, nil
	}

	// A photo permalink that exposed nothing better still has the full
	// image behind og:image.
	if ln.kind == extract.ContentImage && meta.OGImage != "" {
		res.Items = []extract.MediaItem{imageItem(0, imageRef{URI: meta.OGImage})}
		return res, nil
	}

	return nil, errs.E(errs.CodeNoMediaFound, "no downloadable media on this page")
}
