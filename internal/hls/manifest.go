// SPDX-License-Identifier: MIT

// Package hls rewrites HLS manifests so that every segment reference points
// back through the delivery proxy. Browsers block cross-origin manifest
// fetches, so the gateway serves the manifest itself and folds each URI into
// a proxy link the player can follow.
package hls

import (
	"bufio"
	"net/url"
	"strings"
)

// ContentType is the manifest media type players expect.
const ContentType = "application/vnd.apple.mpegurl"

// maxLineLen bounds a single manifest line. Signed segment URLs run long,
// but anything past this is not a playlist.
const maxLineLen = 1 << 20

// RewriteManifest repoints every URI line of an m3u8 manifest at the proxy.
// manifestURL is the manifest's own address and anchors relative and
// root-relative references; proxyBase is the absolute proxy endpoint
// (origin plus path) the rewritten links lead to.
//
// Tag and comment lines pass through untouched, so EXTINF timings and
// attribute lists survive the rewrite.
func RewriteManifest(manifest string, manifestURL *url.URL, proxyBase string) string {
	var b strings.Builder
	b.Grow(len(manifest) + len(manifest)/2)

	scanner := bufio.NewScanner(strings.NewReader(manifest))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLen)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			line = proxyBase + "?url=" + url.QueryEscape(Absolutize(manifestURL, line)) + "&type=segment"
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Absolutize resolves a manifest reference against the manifest's own URL.
// Absolute references come back unchanged, root-relative ones pick up the
// manifest's origin, relative ones are joined onto its directory.
func Absolutize(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}
