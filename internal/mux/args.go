// SPDX-License-Identifier: MIT

package mux

import (
	"sort"
	"strings"
)

// Kind selects the payload a stream run produces.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// StreamSpec describes one conversion run: a manifest or rendition URL turned
// into a progressive file on stdout.
type StreamSpec struct {
	// URL is the manifest or video rendition being converted.
	URL string
	// AudioURL carries the separate audio rendition when the platform ships
	// split streams.
	AudioURL string
	Kind     Kind
	// Headers are sent upstream with every request the muxer makes.
	Headers map[string]string
	// AudioHeaders override Headers for the audio input when set.
	AudioHeaders map[string]string
}

// MergeSpec describes a remote video and audio pair muxed into one MP4.
type MergeSpec struct {
	VideoURL     string
	AudioURL     string
	Headers      map[string]string
	AudioHeaders map[string]string
	// CopyAudio tries an audio stream copy first; a failed copy is retried
	// once with an AAC transcode, provided no output was produced yet.
	CopyAudio bool
}

// StreamArgs builds the full argument vector for a conversion run.
//
// Audio runs transcode to MP3. Video runs keep the video stream untouched
// and normalise audio to AAC; a second input is mapped in when the platform
// serves split renditions.
func StreamArgs(spec StreamSpec) []string {
	args := baseArgs()
	args = append(args, inputArgs(spec.URL, spec.Headers)...)

	if spec.Kind == KindAudio {
		return append(args, mp3Args()...)
	}
	if spec.AudioURL != "" {
		args = append(args, inputArgs(spec.AudioURL, fallback(spec.AudioHeaders, spec.Headers))...)
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	}
	return append(args, fmp4Args(false)...)
}

// MergeArgs builds the argument vector for a merge run. copyAudio is passed
// explicitly so the retry path can flip it without touching the spec.
func MergeArgs(spec MergeSpec, copyAudio bool) []string {
	args := baseArgs()
	args = append(args, inputArgs(spec.VideoURL, spec.Headers)...)
	args = append(args, inputArgs(spec.AudioURL, fallback(spec.AudioHeaders, spec.Headers))...)
	args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	return append(args, fmp4Args(copyAudio)...)
}

func baseArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
}

// inputArgs renders one input with its reconnect policy and upstream headers.
func inputArgs(url string, headers map[string]string) []string {
	args := []string{"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "2"}
	if ua := headers["User-Agent"]; ua != "" {
		args = append(args, "-user_agent", ua)
	}
	if block := headerBlock(headers); block != "" {
		args = append(args, "-headers", block)
	}
	return append(args, "-i", url)
}

// headerBlock folds headers into the CRLF block the muxer expects. The
// User-Agent travels on its own flag and is skipped here.
func headerBlock(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		if k == "User-Agent" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.WriteString("\r\n")
	}
	return b.String()
}

func mp3Args() []string {
	return []string{"-vn", "-c:a", "libmp3lame", "-b:a", "192k", "-f", "mp3", "pipe:1"}
}

// fmp4Args emit a fragmented MP4, the only MP4 layout that works on a
// non-seekable destination.
func fmp4Args(copyAudio bool) []string {
	args := []string{"-c:v", "copy"}
	if copyAudio {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	return append(args,
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4", "pipe:1",
	)
}

func fallback(primary, backup map[string]string) map[string]string {
	if primary != nil {
		return primary
	}
	return backup
}

// streamMode labels a stream run for logs and metrics.
func streamMode(spec StreamSpec) string {
	switch {
	case spec.Kind == KindAudio:
		return "audio"
	case spec.AudioURL != "":
		return "dash"
	default:
		return "hls"
	}
}
