// SPDX-License-Identifier: MIT

package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

// Media types reported by the internal API.
const (
	mediaTypeImage    = 1
	mediaTypeVideo    = 2
	mediaTypeCarousel = 8
)

type infoResponse struct {
	Items   []infoItem `json:"items"`
	Status  string     `json:"status"`
	Message string     `json:"message"`
}

type infoItem struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	TakenAt        int64  `json:"taken_at"`
	MediaType      int    `json:"media_type"`
	ImageVersions2 struct {
		Candidates []imageCandidate `json:"candidates"`
	} `json:"image_versions2"`
	VideoVersions []videoVersion `json:"video_versions"`
	VideoDuration float64        `json:"video_duration"`
	CarouselMedia []infoItem     `json:"carousel_media"`
	Caption       *struct {
		Text string `json:"text"`
	} `json:"caption"`
	User struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
	} `json:"user"`
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	PlayCount    int64 `json:"play_count"`
	ViewCount    int64 `json:"view_count"`
}

type imageCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type videoVersion struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   int    `json:"type"`
}

// fetchMediaInfo is the credentialed tier: the internal media-info API
// with the caller's cookie and its csrftoken echoed as CSRF header.
func (e *Extractor) fetchMediaInfo(ctx context.Context, sourceURL, mediaID, contentClass, cookie string) (*extract.Result, error) {
	csrf := csrfFromCookie(cookie)
	if csrf == "" {
		return nil, errs.E(errs.CodeLoginRequired, "cookie is missing the csrftoken")
	}

	endpoint := fmt.Sprintf("%s/%s/info/", e.mediaInfoURL, mediaID)
	resp, err := e.client.FetchText(ctx, endpoint, fetch.Options{
		Headers: map[string]string{
			"Cookie":      cookie,
			"X-CSRFToken": csrf,
			"X-IG-App-ID": webAppID,
			"Accept":      "application/json",
		},
	})
	if err != nil {
		if errs.UpstreamStatusOf(err) == http.StatusNotFound {
			return nil, errs.Wrap(err, errs.CodeDeletedContent, "media not found")
		}
		return nil, err
	}

	var ir infoResponse
	if err := json.Unmarshal([]byte(resp.Data), &ir); err != nil {
		return nil, errs.E(errs.CodeLoginRequired, "instagram answered with a challenge page")
	}
	if ir.Status != "ok" {
		msg := strings.ToLower(ir.Message)
		if strings.Contains(msg, "login") || strings.Contains(msg, "checkpoint") {
			return nil, errs.Ef(errs.CodeLoginRequired, "instagram: %s", ir.Message)
		}
		return nil, errs.Ef(errs.CodeExtractionFailed, "instagram: %s", ir.Message)
	}
	if len(ir.Items) == 0 {
		return nil, errs.E(errs.CodeDeletedContent, "media no longer exists")
	}
	return e.buildFromInfo(sourceURL, contentClass, &ir.Items[0])
}

func (e *Extractor) buildFromInfo(sourceURL, contentClass string, item *infoItem) (*extract.Result, error) {
	var items []extract.MediaItem
	if item.MediaType == mediaTypeCarousel && len(item.CarouselMedia) > 0 {
		contentClass = extract.ContentCarousel
		for i := range item.CarouselMedia {
			if mi, ok := infoMediaItem(i, &item.CarouselMedia[i]); ok {
				items = append(items, mi)
			}
		}
	} else if mi, ok := infoMediaItem(0, item); ok {
		items = append(items, mi)
	}
	if len(items) == 0 {
		return nil, errs.E(errs.CodeNoMediaFound, "media carries no downloadable sources")
	}

	caption := ""
	if item.Caption != nil {
		caption = item.Caption.Text
	}
	views := item.PlayCount
	if item.ViewCount > views {
		views = item.ViewCount
	}

	res := &extract.Result{
		Platform:       platform,
		ContentType:    refineClass(contentClass, item.MediaType == mediaTypeVideo),
		SourceURL:      sourceURL,
		Title:          titleFrom("", caption),
		Author:         item.User.FullName,
		AuthorUsername: item.User.Username,
		ID:             item.ID,
		Description:    caption,
		UploadDate:     unixDate(item.TakenAt),
		Stats: &extract.Stats{
			Views:    views,
			Likes:    item.LikeCount,
			Comments: item.CommentCount,
		},
		Items: items,
	}
	return res, nil
}

func infoMediaItem(index int, item *infoItem) (extract.MediaItem, bool) {
	thumbnail := ""
	if len(item.ImageVersions2.Candidates) > 0 {
		thumbnail = item.ImageVersions2.Candidates[0].URL
	}

	if item.MediaType == mediaTypeVideo && len(item.VideoVersions) > 0 {
		versions := append([]videoVersion(nil), item.VideoVersions...)
		sort.SliceStable(versions, func(i, j int) bool {
			return versions[i].Width*versions[i].Height > versions[j].Width*versions[j].Height
		})
		seen := make(map[string]bool, len(versions))
		sources := make([]extract.MediaSource, 0, len(versions))
		for _, v := range versions {
			if v.URL == "" || seen[v.URL] {
				continue
			}
			seen[v.URL] = true
			src := extract.MediaSource{
				URL:      v.URL,
				MIME:     "video/mp4",
				Duration: item.VideoDuration,
				HasAudio: true,
				Format:   extract.FormatProgressive,
			}
			if v.Width > 0 && v.Height > 0 {
				src.Resolution = fmt.Sprintf("%dx%d", v.Width, v.Height)
				src.Quality = fmt.Sprintf("%dp", min(v.Width, v.Height))
			} else {
				src.Quality = "progressive"
			}
			sources = append(sources, src)
		}
		if len(sources) == 0 {
			return extract.MediaItem{}, false
		}
		return extract.MediaItem{
			Index:     index,
			Type:      "video",
			Thumbnail: thumbnail,
			Format:    extract.FormatProgressive,
			Sources:   sources,
		}, true
	}

	if thumbnail == "" {
		return extract.MediaItem{}, false
	}
	best := item.ImageVersions2.Candidates[0]
	src := extract.MediaSource{
		Quality: "orig",
		URL:     best.URL,
	}
	if best.Width > 0 {
		src.Resolution = fmt.Sprintf("%dx%d", best.Width, best.Height)
	}
	return extract.MediaItem{
		Index:     index,
		Type:      "image",
		Thumbnail: best.URL,
		Format:    extract.FormatProgressive,
		Sources:   []extract.MediaSource{src},
	}, true
}
