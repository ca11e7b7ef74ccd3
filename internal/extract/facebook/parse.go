// SPDX-License-Identifier: MIT

package facebook

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/scrape"
)

// Window around the subject id. Facebook inlines the relevant JSON within
// a couple hundred kilobytes of the id, and scoping the key lookups keeps
// recommended and related media out of the result.
const (
	blockBefore = 80 << 10
	blockAfter  = 160 << 10
)

// targetBlock returns the slice of the page surrounding the first
// occurrence of id as a JSON value. Falls back to the whole page when the
// id never appears, which happens with pfbid-style post tokens.
func targetBlock(page, id string) string {
	if id == "" {
		return page
	}
	idx := -1
	for _, marker := range []string{
		`"video_id":"` + id + `"`,
		`"videoId":"` + id + `"`,
		`"post_id":"` + id + `"`,
		`"id":"` + id + `"`,
	} {
		if i := strings.Index(page, marker); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return page
	}
	start := idx - blockBefore
	if start < 0 {
		start = 0
	}
	end := idx + blockAfter
	if end > len(page) {
		end = len(page)
	}
	return page[start:end]
}

// jsonStringValue returns the decoded value of the first `"key":"…"`
// occurrence in block, honoring escaped quotes. Returns "" when the key is
// absent or holds a non-string value.
func jsonStringValue(block, key string) string {
	marker := `"` + key + `":"`
	idx := strings.Index(block, marker)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(marker):]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '\\':
			i++
		case '"':
			return scrape.DecodeHTMLEntities(rest[:i])
		}
	}
	return ""
}

// jsonObjectValue returns the balanced object assigned to key. A leading
// "[" is skipped so list-valued keys yield their first element. Returns ""
// for absent keys and scalar values, so `"message":null` never bleeds into
// a neighboring object.
func jsonObjectValue(block, key string) string {
	idx := strings.Index(block, `"`+key+`":`)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(key)+3:]
	rest = strings.TrimPrefix(rest, "[")
	if !strings.HasPrefix(rest, "{") {
		return ""
	}
	return scrape.ExtractJSON(rest, "")
}

// jsonNumberNear returns the first integer within reach bytes after the
// key, which tolerates counters nested one level deep as in
// `"reaction_count":{"count":1371}`. Returns -1 when no digits are near.
func jsonNumberNear(block, key string, reach int) int64 {
	idx := strings.Index(block, `"`+key+`"`)
	if idx < 0 {
		return -1
	}
	rest := block[idx+len(key)+2:]
	if len(rest) > reach {
		rest = rest[:reach]
	}
	start, end := -1, len(rest)
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			end = i
			break
		}
	}
	if start < 0 {
		return -1
	}
	n, err := strconv.ParseInt(rest[start:end], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// ownerName returns the posting account's display name from whichever
// owner-shaped object sits in the block.
func ownerName(block string) string {
	for _, key := range []string{"owner", "video_owner", "actors"} {
		obj := jsonObjectValue(block, key)
		if obj == "" {
			continue
		}
		if name := jsonStringValue(obj, "name"); name != "" {
			return name
		}
	}
	return ""
}

// postMessage returns the author-written text of the post.
func postMessage(block string) string {
	if obj := jsonObjectValue(block, "message"); obj != "" {
		if text := jsonStringValue(obj, "text"); text != "" {
			return text
		}
	}
	return ""
}

// publishTime returns the publish timestamp as RFC3339 UTC, or "".
func publishTime(block string) string {
	for _, key := range []string{"publish_time", "creation_time", "created_time"} {
		if ts := jsonNumberNear(block, key, 16); ts > 0 {
			return time.Unix(ts, 0).UTC().Format(time.RFC3339)
		}
	}
	return ""
}

// pageTitle strips facebook's window chrome from the rendered title.
func pageTitle(meta scrape.Meta) string {
	t := meta.OGTitle
	if t == "" {
		t = meta.Title
	}
	t = strings.TrimSuffix(t, " | Facebook")
	return strings.TrimSpace(t)
}

// thumbnailURL prefers the video's own preferred thumbnail over the
// page-level og:image.
func thumbnailURL(block string, meta scrape.Meta) string {
	if obj := jsonObjectValue(block, "preferred_thumbnail"); obj != "" {
		if uri := jsonStringValue(obj, "uri"); uri != "" {
			return uri
		}
	}
	return meta.OGImage
}

var approxCountRe = regexp.MustCompile(`(?i)([0-9][0-9.,]*)\s*([KMB])?\s+(views|likes|reactions|comments|shares)`)

// statsFromText recovers engagement counts from rendered text, the shape
// facebook draws as "1.2M views, 4.5K likes, 892 comments".
func statsFromText(text string) extract.Stats {
	var s extract.Stats
	for _, m := range approxCountRe.FindAllStringSubmatch(text, -1) {
		n := parseApproxCount(m[1], m[2])
		if n < 0 {
			continue
		}
		switch strings.ToLower(m[3]) {
		case "views":
			if s.Views == 0 {
				s.Views = n
			}
		case "likes", "reactions":
			if s.Likes == 0 {
				s.Likes = n
			}
		case "comments":
			if s.Comments == 0 {
				s.Comments = n
			}
		case "shares":
			if s.Shares == 0 {
				s.Shares = n
			}
		}
	}
	return s
}

func parseApproxCount(digits, suffix string) int64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return -1
	}
	switch strings.ToUpper(suffix) {
	case "K":
		v *= 1e3
	case "M":
		v *= 1e6
	case "B":
		v *= 1e9
	}
	return int64(v)
}

// statsFromBlock reads the JSON engagement counters, filling gaps from the
// rendered title text. Returns nil when nothing surfaced a count.
func statsFromBlock(block, titleText string) *extract.Stats {
	text := statsFromText(titleText)
	s := extract.Stats{
		Views:    orCount(jsonNumberNear(block, "video_view_count", 16), text.Views),
		Likes:    orCount(jsonNumberNear(block, "reaction_count", 32), text.Likes),
		Comments: orCount(jsonNumberNear(block, "comment_count", 48), text.Comments),
		Shares:   orCount(jsonNumberNear(block, "share_count", 32), text.Shares),
	}
	if s.Views == 0 {
		s.Views = orCount(jsonNumberNear(block, "play_count", 16), 0)
	}
	if s == (extract.Stats{}) {
		return nil
	}
	return &s
}

func orCount(n, fallback int64) int64 {
	if n >= 0 {
		return n
	}
	return fallback
}
