// SPDX-License-Identifier: MIT

package twitter

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
)

// mediaEntity is the legacy media shape shared by the syndication CDN and
// the GraphQL legacy block.
type mediaEntity struct {
	IDStr         string    `json:"id_str"`
	Type          string    `json:"type"` // photo, video or animated_gif
	MediaURLHTTPS string    `json:"media_url_https"`
	ExpandedURL   string    `json:"expanded_url"`
	VideoInfo     videoInfo `json:"video_info"`
	Sizes         struct {
		Large struct {
			W int `json:"w"`
			H int `json:"h"`
		} `json:"large"`
	} `json:"sizes"`
}

type videoInfo struct {
	DurationMillis int            `json:"duration_millis"`
	Variants       []videoVariant `json:"variants"`
}

type videoVariant struct {
	Bitrate     int64  `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// tweetData is the tier-independent view of one tweet.
type tweetData struct {
	ID         string
	Text       string
	CreatedAt  string
	Name       string
	ScreenName string
	Likes      int64
	Retweets   int64
	Replies    int64
	Views      int64
	Media      []mediaEntity
	Retweeted  *tweetData
	Quoted     *tweetData
}

var resolutionRe = regexp.MustCompile(`/(\d+)x(\d+)/`)

// buildResult turns tweetData into the shared envelope. When the outer
// tweet has no media but a retweeted or quoted tweet does, the referenced
// tweet supplies media, author, stats and date.
func (e *Extractor) buildResult(sourceURL string, td *tweetData) (*extract.Result, error) {
	subject := td
	var note string
	if len(td.Media) == 0 {
		switch {
		case td.Retweeted != nil && len(td.Retweeted.Media) > 0:
			subject = td.Retweeted
			note = "retweet of @" + subject.ScreenName
		case td.Quoted != nil && len(td.Quoted.Media) > 0:
			subject = td.Quoted
			note = "quote of @" + subject.ScreenName
		}
	}
	if len(subject.Media) == 0 {
		return nil, errs.E(errs.CodeNoMediaFound, "tweet carries no media")
	}

	items := make([]extract.MediaItem, 0, len(subject.Media))
	hasVideo := false
	for i, m := range subject.Media {
		switch m.Type {
		case "photo":
			items = append(items, photoItem(i, m))
		case "video", "animated_gif":
			item, ok := videoItem(i, m)
			if !ok {
				continue
			}
			hasVideo = true
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, errs.E(errs.CodeNoMediaFound, "tweet media had no usable sources")
	}

	description := td.Text
	if note != "" {
		description = note + ": " + subject.Text
	}

	res := &extract.Result{
		Platform:       platform,
		ContentType:    contentTypeFor(hasVideo, len(items)),
		SourceURL:      sourceURL,
		Title:          firstLine(subject.Text),
		Author:         subject.Name,
		AuthorUsername: subject.ScreenName,
		ID:             subject.ID,
		Description:    description,
		UploadDate:     subject.CreatedAt,
		Stats: &extract.Stats{
			Views:    subject.Views,
			Likes:    subject.Likes,
			Comments: subject.Replies,
			Shares:   subject.Retweets,
		},
		Items: items,
	}
	return res, nil
}

func contentTypeFor(hasVideo bool, n int) string {
	switch {
	case hasVideo:
		return extract.ContentVideo
	case n > 1:
		return extract.ContentGallery
	default:
		return extract.ContentImage
	}
}

func photoItem(index int, m mediaEntity) extract.MediaItem {
	orig := upgradePhotoURL(m.MediaURLHTTPS)
	src := extract.MediaSource{
		Quality: "orig",
		URL:     orig,
	}
	if m.Sizes.Large.W > 0 {
		src.Resolution = fmt.Sprintf("%dx%d", m.Sizes.Large.W, m.Sizes.Large.H)
	}
	return extract.MediaItem{
		Index:     index,
		Type:      "image",
		Thumbnail: m.MediaURLHTTPS,
		Format:    extract.FormatProgressive,
		Sources:   []extract.MediaSource{src},
	}
}

func videoItem(index int, m mediaEntity) (extract.MediaItem, bool) {
	variants := make([]videoVariant, 0, len(m.VideoInfo.Variants))
	for _, v := range m.VideoInfo.Variants {
		if v.ContentType == "video/mp4" {
			variants = append(variants, v)
		}
	}
	if len(variants) == 0 {
		return extract.MediaItem{}, false
	}
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bitrate > variants[j].Bitrate
	})

	duration := float64(m.VideoInfo.DurationMillis) / 1000

	sources := make([]extract.MediaSource, 0, len(variants))
	for _, v := range variants {
		src := extract.MediaSource{
			URL:      v.URL,
			MIME:     "video/mp4",
			Bitrate:  v.Bitrate / 1000,
			Duration: duration,
			HasAudio: true,
			Format:   extract.FormatProgressive,
		}
		if w, h, ok := resolutionFromURL(v.URL); ok {
			src.Resolution = fmt.Sprintf("%dx%d", w, h)
			src.Quality = fmt.Sprintf("%dp", min(w, h))
		} else {
			src.Quality = "progressive"
		}
		sources = append(sources, src)
	}

	return extract.MediaItem{
		Index:     index,
		Type:      "video",
		Thumbnail: m.MediaURLHTTPS,
		Format:    extract.FormatProgressive,
		Sources:   sources,
	}, true
}

// upgradePhotoURL rewrites a pbs.twimg.com media URL to the original
// resolution variant.
func upgradePhotoURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	q := u.Query()
	if q.Get("format") == "" {
		if ext := strings.TrimPrefix(strings.ToLower(pathExt(u.Path)), "."); ext != "" {
			q.Set("format", ext)
			u.Path = strings.TrimSuffix(u.Path, pathExt(u.Path))
		}
	}
	q.Set("name", "orig")
	u.RawQuery = q.Encode()
	return u.String()
}

func pathExt(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 && !strings.ContainsRune(p[i:], '/') {
		return p[i:]
	}
	return ""
}

func resolutionFromURL(rawURL string) (w, h int, ok bool) {
	m := resolutionRe.FindStringSubmatch(rawURL)
	if len(m) != 3 {
		return 0, 0, false
	}
	w, _ = strconv.Atoi(m[1])
	h, _ = strconv.Atoi(m[2])
	return w, h, w > 0 && h > 0
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// parseCreatedAt accepts both the ISO form the syndication CDN emits and
// the legacy Ruby-style form GraphQL keeps, normalized to RFC 3339.
func parseCreatedAt(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, time.RubyDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}
