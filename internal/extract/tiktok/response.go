// SPDX-License-Identifier: MIT

package tiktok

import (
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
)

// hybridResponse is the helper's envelope; the interesting part is data.
type hybridResponse struct {
	Data *hybridData `json:"data"`
}

type hybridData struct {
	AwemeID    string       `json:"aweme_id"`
	Type       string       `json:"type"`
	Desc       string       `json:"desc"`
	CreateTime int64        `json:"create_time"`
	Duration   int64        `json:"duration"`
	Author     hybridAuthor `json:"author"`
	Statistics hybridStats  `json:"statistics"`
	Music      *hybridMusic `json:"music"`
	CoverData  *hybridCover `json:"cover_data"`
	VideoData  *hybridVideo `json:"video_data"`
	ImageData  *hybridImage `json:"image_data"`
}

type hybridAuthor struct {
	Nickname string `json:"nickname"`
	UniqueID string `json:"unique_id"`
	UID      string `json:"uid"`
}

type hybridStats struct {
	DiggCount    int64 `json:"digg_count"`
	CommentCount int64 `json:"comment_count"`
	PlayCount    int64 `json:"play_count"`
	ShareCount   int64 `json:"share_count"`
	RepostCount  int64 `json:"repost_count"`
}

// hybridURLList is the url_list-or-url shape the upstream uses for
// everything pointer-like.
type hybridURLList struct {
	URLList []string `json:"url_list"`
	URL     string   `json:"url"`
}

func (u *hybridURLList) first() string {
	if u == nil {
		return ""
	}
	if len(u.URLList) > 0 {
		return u.URLList[0]
	}
	return u.URL
}

type hybridMusic struct {
	PlayURL  *hybridURLList `json:"play_url"`
	Duration float64        `json:"duration"`
}

type hybridCover struct {
	Cover *hybridURLList `json:"cover"`
}

type hybridVideo struct {
	NWMVideoURL   string `json:"nwm_video_url"`
	NWMVideoURLHQ string `json:"nwm_video_url_HQ"`
	WMVideoURL    string `json:"wm_video_url"`
	WMVideoURLHQ  string `json:"wm_video_url_HQ"`
}

type hybridImage struct {
	NoWatermarkImageList []string `json:"no_watermark_image_list"`
	WatermarkImageList   []string `json:"watermark_image_list"`
}

func (e *Extractor) buildResult(sourceURL string, d *hybridData) (*extract.Result, error) {
	res := &extract.Result{
		Success:        true,
		Platform:       platform,
		SourceURL:      sourceURL,
		ID:             d.AwemeID,
		Title:          d.Desc,
		Description:    d.Desc,
		Author:         d.Author.Nickname,
		AuthorUsername: d.Author.UniqueID,
		Stats: &extract.Stats{
			Views:    d.Statistics.PlayCount,
			Likes:    d.Statistics.DiggCount,
			Comments: d.Statistics.CommentCount,
			Shares:   orShare(d.Statistics.ShareCount, d.Statistics.RepostCount),
		},
	}
	if d.CreateTime > 0 {
		res.UploadDate = time.Unix(d.CreateTime, 0).UTC().Format(time.RFC3339)
	}

	if d.Type == "image" {
		return e.buildSlideshow(res, d)
	}
	return e.buildVideo(res, d)
}

// buildVideo maps the watermark-free pair when available, falling back to
// the watermarked renditions the upstream keeps for old posts.
func (e *Extractor) buildVideo(res *extract.Result, d *hybridData) (*extract.Result, error) {
	var hd, sd string
	if d.VideoData != nil {
		hd, sd = d.VideoData.NWMVideoURLHQ, d.VideoData.NWMVideoURL
		if hd == "" && sd == "" {
			hd, sd = d.VideoData.WMVideoURLHQ, d.VideoData.WMVideoURL
		}
	}
	if hd == "" && sd == "" {
		return nil, errs.E(errs.CodeNoMediaFound, "helper api returned no playable video")
	}

	duration := float64(d.Duration) / 1000
	var sources []extract.MediaSource
	for _, s := range []struct {
		quality string
		url     string
	}{{"hd", hd}, {"sd", sd}} {
		if s.url == "" {
			continue
		}
		sources = append(sources, extract.MediaSource{
			Quality:  s.quality,
			URL:      s.url,
			Duration: duration,
			HasAudio: true,
			Format:   extract.FormatProgressive,
		})
	}

	res.ContentType = extract.ContentVideo
	res.Items = []extract.MediaItem{{
		Type:      extract.ContentVideo,
		Thumbnail: coverOf(d),
		Format:    extract.FormatProgressive,
		Sources:   sources,
	}}
	appendMusicItem(res, d)
	return res, nil
}

// buildSlideshow maps an image post: ordered photos plus the backing
// track, which a client needs to rebuild the slideshow.
func (e *Extractor) buildSlideshow(res *extract.Result, d *hybridData) (*extract.Result, error) {
	if d.ImageData == nil || len(d.ImageData.NoWatermarkImageList) == 0 {
		return nil, errs.E(errs.CodeNoMediaFound, "helper api returned no slideshow images")
	}

	res.ContentType = extract.ContentGallery
	for i, u := range d.ImageData.NoWatermarkImageList {
		res.Items = append(res.Items, extract.MediaItem{
			Index:  i,
			Type:   extract.ContentImage,
			Format: extract.FormatProgressive,
			Sources: []extract.MediaSource{{
				Quality: "orig",
				URL:     u,
				Format:  extract.FormatProgressive,
			}},
		})
	}
	if len(res.Items) > 0 {
		res.Items[0].Thumbnail = coverOf(d)
	}
	appendMusicItem(res, d)
	return res, nil
}

// appendMusicItem adds the soundtrack as a trailing audio item.
func appendMusicItem(res *extract.Result, d *hybridData) {
	if d.Music == nil {
		return
	}
	u := d.Music.PlayURL.first()
	if u == "" {
		return
	}
	res.Items = append(res.Items, extract.MediaItem{
		Index:  len(res.Items),
		Type:   extract.ContentAudio,
		Format: extract.FormatProgressive,
		Sources: []extract.MediaSource{{
			Quality:   "audio",
			URL:       u,
			MIME:      "audio/mpeg",
			Extension: "mp3",
			Duration:  d.Music.Duration,
			HasAudio:  true,
			Format:    extract.FormatProgressive,
		}},
	})
}

func coverOf(d *hybridData) string {
	if d.CoverData == nil {
		return ""
	}
	return d.CoverData.Cover.first()
}

func orShare(share, repost int64) int64 {
	if share > 0 {
		return share
	}
	return repost
}
