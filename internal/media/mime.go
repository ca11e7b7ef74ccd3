// SPDX-License-Identifier: MIT

// Package media normalizes extractor output: MIME and container analysis,
// honest size reporting, filename synthesis and URL registration.
package media

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// Confidence levels for type analysis.
const (
	ConfidenceHigh   = "high"   // explicit upstream Content-Type
	ConfidenceMedium = "medium" // derived from the URL extension
	ConfidenceLow    = "low"    // nothing to go on
)

// TypeInfo describes one source's media type.
type TypeInfo struct {
	MIME       string
	Extension  string
	Kind       string // video, image or audio
	Streaming  bool
	Playlist   bool
	Container  string
	Confidence string
}

type typeEntry struct {
	extension string
	kind      string
	streaming bool
	playlist  bool
	container string
}

// mimeTable maps the well-known types the gateway meets in the wild. Keys
// are lowercase without parameters.
var mimeTable = map[string]typeEntry{
	"video/mp4":                     {"mp4", "video", false, false, "mp4"},
	"video/webm":                    {"webm", "video", false, false, "webm"},
	"video/quicktime":               {"mov", "video", false, false, "mov"},
	"video/x-m4v":                   {"m4v", "video", false, false, "mp4"},
	"video/mp2t":                    {"ts", "video", true, false, "mpegts"},
	"audio/mp4":                     {"m4a", "audio", false, false, "mp4"},
	"audio/mpeg":                    {"mp3", "audio", false, false, "mp3"},
	"audio/ogg":                     {"ogg", "audio", false, false, "ogg"},
	"audio/wav":                     {"wav", "audio", false, false, "wav"},
	"audio/webm":                    {"weba", "audio", false, false, "webm"},
	"image/jpeg":                    {"jpg", "image", false, false, ""},
	"image/png":                     {"png", "image", false, false, ""},
	"image/gif":                     {"gif", "image", false, false, ""},
	"image/webp":                    {"webp", "image", false, false, ""},
	"image/heic":                    {"heic", "image", false, false, ""},
	"application/vnd.apple.mpegurl": {"m3u8", "video", true, true, "hls"},
	"application/x-mpegurl":         {"m3u8", "video", true, true, "hls"},
	"audio/mpegurl":                 {"m3u8", "audio", true, true, "hls"},
	"application/dash+xml":          {"mpd", "video", true, true, "dash"},
}

// extTable is the reverse direction, URL extension to MIME.
var extTable = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"m4v":  "video/x-m4v",
	"ts":   "video/mp2t",
	"m4a":  "audio/mp4",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"weba": "audio/webm",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heic": "image/heic",
	"m3u8": "application/vnd.apple.mpegurl",
	"mpd":  "application/dash+xml",
}

// ExtensionFor returns the table extension for a MIME type, or "".
func ExtensionFor(mimeType string) string {
	if entry, ok := mimeTable[cleanMIME(mimeType)]; ok {
		return entry.extension
	}
	return ""
}

// MIMEForExtension returns the table MIME for a bare extension, or "".
func MIMEForExtension(ext string) string {
	return extTable[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Analyze derives TypeInfo from the upstream Content-Type when present,
// falling back to the URL extension, else an unknown-video guess.
func Analyze(contentType, rawURL string) TypeInfo {
	if mt := cleanMIME(contentType); mt != "" {
		if entry, ok := mimeTable[mt]; ok {
			return infoFromEntry(mt, entry, ConfidenceHigh)
		}
		// Upstream spoke, we just do not have a table row for it.
		return TypeInfo{
			MIME:       mt,
			Extension:  extFromMIME(mt),
			Kind:       kindFromMIME(mt),
			Confidence: ConfidenceHigh,
		}
	}
	if ext := urlExtension(rawURL); ext != "" {
		if mt, ok := extTable[ext]; ok {
			return infoFromEntry(mt, mimeTable[mt], ConfidenceMedium)
		}
	}
	return TypeInfo{MIME: "video/mp4", Extension: "mp4", Kind: "video", Container: "mp4", Confidence: ConfidenceLow}
}

func infoFromEntry(mt string, entry typeEntry, confidence string) TypeInfo {
	return TypeInfo{
		MIME:       mt,
		Extension:  entry.extension,
		Kind:       entry.kind,
		Streaming:  entry.streaming,
		Playlist:   entry.playlist,
		Container:  entry.container,
		Confidence: confidence,
	}
}

func cleanMIME(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return strings.ToLower(mt)
}

func extFromMIME(mt string) string {
	if i := strings.IndexByte(mt, '/'); i > 0 && i+1 < len(mt) {
		sub := mt[i+1:]
		if j := strings.IndexByte(sub, '+'); j > 0 {
			sub = sub[:j]
		}
		return sub
	}
	return ""
}

func kindFromMIME(mt string) string {
	switch {
	case strings.HasPrefix(mt, "video/"):
		return "video"
	case strings.HasPrefix(mt, "audio/"):
		return "audio"
	case strings.HasPrefix(mt, "image/"):
		return "image"
	default:
		return ""
	}
}

func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	return ext
}
