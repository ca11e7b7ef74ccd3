// SPDX-License-Identifier: MIT

package facebook

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/scrape"
)

// storyPairRe matches one progressive rendition together with the quality
// label riding along in its metadata object.
var storyPairRe = regexp.MustCompile(`"progressive_url":"((?:[^"\\]|\\.)*)"[^}]*?"quality":"(HD|SD)"`)

// buildStory extracts the progressive renditions of a story page. Each
// frame carries at most one HD and one SD rendition, so a repeated quality
// label starts the next frame. When the URL names a single story id the
// search is scoped to its block, otherwise every frame in the bucket is
// returned in order.
func (e *Extractor) buildStory(sourceURL string, ln link, page string) (*extract.Result, error) {
	block := page
	if ln.storyID != "" {
		block = targetBlock(page, ln.storyID)
	}
	meta := scrape.ExtractMetaTags(page)

	type rendition struct {
		url     string
		quality string
	}
	seen := make(map[string]struct{})
	var rends []rendition
	for _, m := range storyPairRe.FindAllStringSubmatch(block, -1) {
		u := scrape.DecodeHTMLEntities(m[1])
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		rends = append(rends, rendition{url: u, quality: strings.ToLower(m[2])})
	}
	if len(rends) == 0 {
		return nil, errs.E(errs.CodeNoMediaFound, "story has no playable renditions")
	}

	var items []extract.MediaItem
	var cur []extract.MediaSource
	have := make(map[string]bool)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		sort.SliceStable(cur, func(i, j int) bool {
			return cur[i].Quality == "hd" && cur[j].Quality != "hd"
		})
		items = append(items, extract.MediaItem{
			Index:   len(items),
			Type:    extract.ContentVideo,
			Format:  extract.FormatProgressive,
			Sources: cur,
		})
		cur = nil
		have = make(map[string]bool)
	}
	for _, r := range rends {
		if have[r.quality] {
			flush()
		}
		have[r.quality] = true
		cur = append(cur, extract.MediaSource{
			Quality:  r.quality,
			URL:      r.url,
			HasAudio: true,
			Format:   extract.FormatProgressive,
		})
	}
	flush()
	if meta.OGImage != "" {
		items[0].Thumbnail = meta.OGImage
	}

	res := &extract.Result{
		Success:     true,
		Platform:    platform,
		ContentType: extract.ContentStory,
		SourceURL:   sourceURL,
		ID:          ln.storyID,
		Title:       pageTitle(meta),
		Author:      ownerName(block),
		UploadDate:  publishTime(block),
		Stats:       statsFromBlock(block, meta.Title),
		Items:       items,
	}
	if res.ID == "" {
		res.ID = ln.storyBucket
	}
	return res, nil
}
