// SPDX-License-Identifier: MIT

package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
)

// postDocID identifies the PolarisPostActionLoadPostQueryQuery document the
// web client uses to hydrate a post page.
const postDocID = "8845758582119845"

type graphqlResponse struct {
	Data struct {
		Media *gqlMedia `json:"xdt_shortcode_media"`
	} `json:"data"`
	Status string `json:"status"`
}

type gqlMedia struct {
	Typename   string `json:"__typename"`
	ID         string `json:"id"`
	Shortcode  string `json:"shortcode"`
	DisplayURL string `json:"display_url"`
	VideoURL   string `json:"video_url"`
	IsVideo    bool   `json:"is_video"`
	Dimensions struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions"`
	VideoDuration float64 `json:"video_duration"`
	Title         string  `json:"title"`
	Caption       struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	Owner struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
	} `json:"owner"`
	Likes struct {
		Count int64 `json:"count"`
	} `json:"edge_media_preview_like"`
	Comments struct {
		Count int64 `json:"count"`
	} `json:"edge_media_to_comment"`
	VideoViewCount   int64 `json:"video_view_count"`
	TakenAtTimestamp int64 `json:"taken_at_timestamp"`
	Sidecar          struct {
		Edges []struct {
			Node gqlMedia `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

// fetchGraphQL is the guest tier: the web client's post-hydration GraphQL
// document, no credentials.
func (e *Extractor) fetchGraphQL(ctx context.Context, sourceURL, code, contentClass string) (*extract.Result, error) {
	variables := fmt.Sprintf(`{"shortcode":%q,"fetch_tagged_user_count":null,"hoisted_comment_id":null,"hoisted_reply_id":null}`, code)
	form := url.Values{
		"variables": {variables},
		"doc_id":    {postDocID},
	}

	resp, err := e.client.FetchText(ctx, e.graphqlURL, fetch.Options{
		Method: http.MethodPost,
		Body:   strings.NewReader(form.Encode()),
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"X-IG-App-ID":  webAppID,
			"Accept":       "application/json",
		},
	})
	if err != nil {
		if errs.UpstreamStatusOf(err) == http.StatusNotFound {
			return nil, errs.Wrap(err, errs.CodeDeletedContent, "post not found")
		}
		return nil, err
	}

	var gr graphqlResponse
	if err := json.Unmarshal([]byte(resp.Data), &gr); err != nil {
		// A login wall answers with an HTML document instead of JSON.
		return nil, errs.E(errs.CodeLoginRequired, "instagram answered with a login page")
	}
	if gr.Data.Media == nil {
		return nil, errs.E(errs.CodePrivateContent, "post is private or removed")
	}
	return e.buildFromGraphQL(sourceURL, contentClass, gr.Data.Media)
}

func (e *Extractor) buildFromGraphQL(sourceURL, contentClass string, m *gqlMedia) (*extract.Result, error) {
	var items []extract.MediaItem
	if children := m.Sidecar.Edges; len(children) > 0 {
		contentClass = extract.ContentCarousel
		for i, edge := range children {
			if item, ok := gqlItem(i, &edge.Node); ok {
				items = append(items, item)
			}
		}
	} else if item, ok := gqlItem(0, m); ok {
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errs.E(errs.CodeNoMediaFound, "post carries no downloadable media")
	}

	caption := ""
	if len(m.Caption.Edges) > 0 {
		caption = m.Caption.Edges[0].Node.Text
	}

	res := &extract.Result{
		Platform:       platform,
		ContentType:    refineClass(contentClass, m.IsVideo),
		SourceURL:      sourceURL,
		Title:          titleFrom(m.Title, caption),
		Author:         m.Owner.FullName,
		AuthorUsername: m.Owner.Username,
		ID:             m.ID,
		Description:    caption,
		UploadDate:     unixDate(m.TakenAtTimestamp),
		Stats: &extract.Stats{
			Views:    m.VideoViewCount,
			Likes:    m.Likes.Count,
			Comments: m.Comments.Count,
		},
		Items: items,
	}
	return res, nil
}

func gqlItem(index int, m *gqlMedia) (extract.MediaItem, bool) {
	if m.IsVideo && m.VideoURL != "" {
		src := extract.MediaSource{
			Quality:  "hd",
			URL:      m.VideoURL,
			MIME:     "video/mp4",
			Duration: m.VideoDuration,
			HasAudio: true,
			Format:   extract.FormatProgressive,
		}
		if m.Dimensions.Width > 0 {
			src.Resolution = fmt.Sprintf("%dx%d", m.Dimensions.Width, m.Dimensions.Height)
		}
		return extract.MediaItem{
			Index:     index,
			Type:      "video",
			Thumbnail: m.DisplayURL,
			Format:    extract.FormatProgressive,
			Sources:   []extract.MediaSource{src},
		}, true
	}
	if m.DisplayURL == "" {
		return extract.MediaItem{}, false
	}
	src := extract.MediaSource{
		Quality: "orig",
		URL:     m.DisplayURL,
	}
	if m.Dimensions.Width > 0 {
		src.Resolution = fmt.Sprintf("%dx%d", m.Dimensions.Width, m.Dimensions.Height)
	}
	return extract.MediaItem{
		Index:     index,
		Type:      "image",
		Thumbnail: m.DisplayURL,
		Format:    extract.FormatProgressive,
		Sources:   []extract.MediaSource{src},
	}, true
}

func refineClass(contentClass string, isVideo bool) string {
	if contentClass == extract.ContentPost {
		if isVideo {
			return extract.ContentVideo
		}
		return extract.ContentImage
	}
	return contentClass
}

func titleFrom(title, caption string) string {
	if title != "" {
		return title
	}
	if i := strings.IndexByte(caption, '\n'); i >= 0 {
		caption = caption[:i]
	}
	return strings.TrimSpace(caption)
}

func unixDate(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
