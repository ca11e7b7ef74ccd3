// SPDX-License-Identifier: MIT

package media

import (
	"net/http"
	"strconv"
	"strings"
)

// Size confidence markers carried on a source when a byte count is known.
const (
	SizeExact     = "exact"
	SizeEstimated = "estimated"
)

// SizeFromHeaders reads a definite byte count from response headers.
// Content-Length wins; a Content-Range total ("bytes 0-1/N") is accepted
// when the length is absent or refers to a partial body.
func SizeFromHeaders(h http.Header) (int64, bool) {
	if cr := h.Get("Content-Range"); cr != "" {
		if n, ok := parseRangeTotal(cr); ok {
			return n, true
		}
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

func parseRangeTotal(cr string) (int64, bool) {
	// "bytes 0-1023/4096" or "bytes */4096"
	i := strings.LastIndexByte(cr, '/')
	if i < 0 || i+1 >= len(cr) {
		return 0, false
	}
	total := strings.TrimSpace(cr[i+1:])
	if total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// EstimateSize projects a byte count from bitrate and duration. Both must
// be known; streaming manifests without them get no size at all rather
// than a guess dressed up as fact.
func EstimateSize(bitrateKbps int, durationSeconds float64) (int64, bool) {
	if bitrateKbps <= 0 || durationSeconds <= 0 {
		return 0, false
	}
	return int64(float64(bitrateKbps) * 1000 / 8 * durationSeconds), true
}
