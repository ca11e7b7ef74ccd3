// SPDX-License-Identifier: MIT

package pixiv

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/scrape"
)

// illustTypeUgoira marks pixiv's frame-zip animations, which have no
// directly downloadable file.
const illustTypeUgoira = 2

type illustURLs struct {
	Mini     string `json:"mini"`
	Thumb    string `json:"thumb"`
	Small    string `json:"small"`
	Regular  string `json:"regular"`
	Original string `json:"original"`
}

type illust struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	IllustType    int        `json:"illustType"`
	CreateDate    string     `json:"createDate"`
	Urls          illustURLs `json:"urls"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	PageCount     int        `json:"pageCount"`
	UserName      string     `json:"userName"`
	UserAccount   string     `json:"userAccount"`
	LikeCount     int64      `json:"likeCount"`
	BookmarkCount int64      `json:"bookmarkCount"`
	ViewCount     int64      `json:"viewCount"`
	CommentCount  int64      `json:"commentCount"`
	XRestrict     int        `json:"xRestrict"`
}

type ajaxPages struct {
	Error   bool        `json:"error"`
	Message string      `json:"message"`
	Body    []pageEntry `json:"body"`
}

type pageEntry struct {
	Urls   illustURLs `json:"urls"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
}

// scopedIllust cuts the preload entry for the requested id out of the page
// and decodes it. A page without that entry is the login interstitial (or
// an account-level block when a cookie was already presented).
func scopedIllust(page, id string, hasCookie bool) (*illust, error) {
	raw := scrape.ExtractJSON(page, `"illust":{"`+id+`":`)
	if raw == "" {
		if hasCookie {
			return nil, errs.E(errs.CodePrivateContent, "artwork is hidden from this account")
		}
		return nil, errs.E(errs.CodeLoginRequired, "pixiv served the login wall instead of the artwork")
	}
	var il illust
	if err := json.Unmarshal([]byte(raw), &il); err != nil {
		return nil, errs.Wrap(err, errs.CodeExtractionFailed, "malformed artwork preload")
	}
	return &il, nil
}

func (e *Extractor) buildResult(ctx context.Context, rawURL, id string, il *illust, cookie string) (*extract.Result, error) {
	if il.IllustType == illustTypeUgoira {
		return nil, errs.E(errs.CodeUnsupportedFormat, "ugoira animations have no downloadable file")
	}
	if il.Urls.Original == "" {
		switch {
		case il.XRestrict > 0 && cookie == "":
			return nil, errs.E(errs.CodeLoginRequired, "age-restricted artwork needs a signed-in session")
		case il.XRestrict > 0:
			return nil, errs.E(errs.CodeAgeRestricted, "account settings hide age-restricted works")
		default:
			return nil, errs.E(errs.CodeNoMediaFound, "artwork preload carries no image files")
		}
	}

	res := &extract.Result{
		Success:        true,
		Platform:       platform,
		ContentType:    extract.ContentImage,
		SourceURL:      rawURL,
		Title:          scrape.DecodeHTMLEntities(il.Title),
		Author:         scrape.DecodeHTMLEntities(il.UserName),
		AuthorUsername: il.UserAccount,
		ID:             id,
		Description:    cleanDescription(il.Description),
		UploadDate:     uploadDateUTC(il.CreateDate),
		Stats:          statsOf(il),
		IsNsfw:         il.XRestrict > 0,
	}

	if il.PageCount <= 1 {
		res.Items = []extract.MediaItem{{
			Type:      extract.ContentImage,
			Thumbnail: il.Urls.Small,
			Sources:   []extract.MediaSource{pageSource(il.Urls.Original, il.Width, il.Height)},
		}}
		return res, nil
	}

	pages, err := e.fetchPages(ctx, id, cookie)
	if err != nil {
		return nil, mapUpstream(err)
	}
	if len(pages) == 0 {
		return nil, errs.E(errs.CodeNoMediaFound, "page listing came back empty")
	}
	res.ContentType = extract.ContentGallery
	for i, p := range pages {
		res.Items = append(res.Items, extract.MediaItem{
			Index:     i,
			Type:      extract.ContentImage,
			Thumbnail: p.Urls.Small,
			Sources:   []extract.MediaSource{pageSource(p.Urls.Original, p.Width, p.Height)},
		})
	}
	return res, nil
}

// fetchPages lists the files of a multi-page work through the ajax API.
func (e *Extractor) fetchPages(ctx context.Context, id, cookie string) ([]pageEntry, error) {
	headers := map[string]string{
		"User-Agent": fetch.DefaultUserAgent,
		"Accept":     "application/json",
		"Referer":    e.baseURL + "/artworks/" + id,
	}
	if cookie != "" {
		headers["Cookie"] = cookie
	}
	resp, err := e.client.FetchText(ctx, e.baseURL+"/ajax/illust/"+id+"/pages", fetch.Options{Headers: headers})
	if err != nil {
		return nil, err
	}
	var listing ajaxPages
	if err := json.Unmarshal([]byte(resp.Data), &listing); err != nil {
		return nil, errs.Wrap(err, errs.CodeExtractionFailed, "malformed page listing")
	}
	if listing.Error {
		return nil, errs.Ef(errs.CodeExtractionFailed, "pixiv refused the page listing: %s", listing.Message)
	}
	return listing.Body, nil
}

func pageSource(url string, w, h int) extract.MediaSource {
	return extract.MediaSource{
		Quality:    "orig",
		URL:        url,
		Resolution: resolutionString(w, h),
		NeedsProxy: true,
	}
}

func statsOf(il *illust) *extract.Stats {
	if il.ViewCount == 0 && il.LikeCount == 0 && il.CommentCount == 0 && il.BookmarkCount == 0 {
		return nil
	}
	return &extract.Stats{
		Views:    il.ViewCount,
		Likes:    il.LikeCount,
		Comments: il.CommentCount,
		Shares:   il.BookmarkCount,
	}
}

func resolutionString(w, h int) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// uploadDateUTC re-expresses pixiv's JST-offset timestamp in UTC.
func uploadDateUTC(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var (
	brRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe = regexp.MustCompile(`<[^>]+>`)
)

// cleanDescription flattens the HTML fragment pixiv stores as the work
// description into plain text.
func cleanDescription(s string) string {
	if s == "" {
		return ""
	}
	s = brRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(scrape.DecodeHTMLEntities(s))
}
