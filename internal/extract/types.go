// SPDX-License-Identifier: MIT

// Package extract defines the extractor contract, the platform registry and
// the shared result envelope every extractor produces.
package extract

import "time"

// Content types reported in Result.ContentType.
const (
	ContentVideo    = "video"
	ContentImage    = "image"
	ContentAudio    = "audio"
	ContentGallery  = "gallery"
	ContentStory    = "story"
	ContentCarousel = "carousel"
	ContentPost     = "post"
	ContentReel     = "reel"
)

// Cookie source values recorded on a successful extraction.
const (
	CookieNone   = "none"
	CookieServer = "server"
	CookieClient = "client"
)

// Access modes reported in meta.accessMode, reflecting how the caller
// authenticated against the gateway.
const (
	AccessPublic = "public"
	AccessAPIKey = "api-key"
)

// Source format values.
const (
	FormatHLS         = "hls"
	FormatDASH        = "dash"
	FormatProgressive = "progressive"
)

// MediaSource is one downloadable representation of a media item.
type MediaSource struct {
	Quality        string  `json:"quality,omitempty"`
	URL            string  `json:"url"`
	Resolution     string  `json:"resolution,omitempty"`
	MIME           string  `json:"mime,omitempty"`
	Extension      string  `json:"extension,omitempty"`
	Size           int64   `json:"size,omitempty"`
	SizeConfidence string  `json:"sizeConfidence,omitempty"` // "exact" or "estimated", absent when unknown
	Bitrate        int64   `json:"bitrate,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	Filename       string  `json:"filename,omitempty"`
	Hash           string  `json:"hash,omitempty"`
	Codec          string  `json:"codec,omitempty"`
	HasAudio       bool    `json:"hasAudio"`
	NeedsMerge     bool    `json:"needsMerge"`
	NeedsProxy     bool    `json:"needsProxy"`
	Format         string  `json:"format,omitempty"`
}

// MediaItem is one logical piece of media (a carousel slot, a story frame).
// Sources are ordered quality-descending.
type MediaItem struct {
	Index         int           `json:"index"`
	Type          string        `json:"type"`
	Thumbnail     string        `json:"thumbnail,omitempty"`
	ThumbnailHash string        `json:"thumbnailHash,omitempty"`
	Format        string        `json:"format,omitempty"`
	Sources       []MediaSource `json:"sources"`
}

// Stats carries whatever engagement counters the platform exposed.
type Stats struct {
	Views    int64 `json:"views,omitempty"`
	Likes    int64 `json:"likes,omitempty"`
	Comments int64 `json:"comments,omitempty"`
	Shares   int64 `json:"shares,omitempty"`
}

// ResponseMeta is attached to every envelope, success or error.
type ResponseMeta struct {
	ResponseTime  int64  `json:"responseTime"`
	AccessMode    string `json:"accessMode"`
	PublicContent bool   `json:"publicContent"`
}

// Result is the success envelope.
type Result struct {
	Success        bool         `json:"success"`
	Platform       string       `json:"platform"`
	ContentType    string       `json:"contentType"`
	SourceURL      string       `json:"sourceUrl,omitempty"`
	Title          string       `json:"title,omitempty"`
	Author         string       `json:"author,omitempty"`
	AuthorUsername string       `json:"authorUsername,omitempty"`
	ID             string       `json:"id,omitempty"`
	Description    string       `json:"description,omitempty"`
	UploadDate     string       `json:"uploadDate,omitempty"`
	Stats          *Stats       `json:"stats,omitempty"`
	Items          []MediaItem  `json:"items"`
	Meta           ResponseMeta `json:"meta"`
	UsedCookie     bool         `json:"usedCookie"`
	CookieSource   string       `json:"cookieSource,omitempty"`
	IsNsfw         bool         `json:"isNsfw,omitempty"`
}

// ErrorBody is the code/message pair inside an error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResult is the failure envelope.
type ErrorResult struct {
	Success bool         `json:"success"`
	Error   ErrorBody    `json:"error"`
	Meta    ResponseMeta `json:"meta"`
}

// FinishMeta stamps timing and access fields onto a result just before it
// leaves the gateway. AccessMode is left alone when a handler already set it
// (an API-keyed caller), otherwise it defaults to public.
func (r *Result) FinishMeta(started time.Time) {
	r.Meta.ResponseTime = time.Since(started).Milliseconds()
	if r.Meta.AccessMode == "" {
		r.Meta.AccessMode = AccessPublic
	}
	r.Meta.PublicContent = !r.UsedCookie
	if r.CookieSource == "" {
		r.CookieSource = CookieNone
	}
}
