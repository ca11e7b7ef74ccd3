// SPDX-License-Identifier: MIT

// Package scrape provides bounded-window scanning primitives for pulling
// structured fragments (JSON blobs, script bodies, meta tags, URLs) out of
// fetched documents without ever building a DOM for the whole page.
package scrape

import (
	"bytes"
	"io"
)

// DefaultWindow is the sliding-window capacity used when none is given.
const DefaultWindow = 500 * 1024

// StreamingBuffer accumulates a byte stream while retaining only the most
// recent window of it. Once the window is full, older bytes are discarded
// from the front so memory stays bounded no matter how large the stream is.
type StreamingBuffer struct {
	max   int
	buf   []byte
	total int64
}

// NewStreamingBuffer returns a buffer holding at most maxWindow bytes.
// A non-positive maxWindow selects DefaultWindow.
func NewStreamingBuffer(maxWindow int) *StreamingBuffer {
	if maxWindow <= 0 {
		maxWindow = DefaultWindow
	}
	return &StreamingBuffer{max: maxWindow}
}

// Add appends chunk to the window, discarding from the front when the
// window would overflow.
func (b *StreamingBuffer) Add(chunk []byte) {
	b.total += int64(len(chunk))
	if len(chunk) >= b.max {
		b.buf = append(b.buf[:0], chunk[len(chunk)-b.max:]...)
		return
	}
	b.buf = append(b.buf, chunk...)
	if over := len(b.buf) - b.max; over > 0 {
		copy(b.buf, b.buf[over:])
		b.buf = b.buf[:b.max]
	}
}

// Write implements io.Writer so response bodies can be piped straight in.
func (b *StreamingBuffer) Write(p []byte) (int, error) {
	b.Add(p)
	return len(p), nil
}

var _ io.Writer = (*StreamingBuffer)(nil)

// Total reports how many bytes were ever ingested, including discarded ones.
func (b *StreamingBuffer) Total() int64 { return b.total }

// Len reports the current window size.
func (b *StreamingBuffer) Len() int { return len(b.buf) }

// Bytes returns the current window. The slice is only valid until the next
// Add; callers that need to keep it must copy.
func (b *StreamingBuffer) Bytes() []byte { return b.buf }

// String returns a copy of the current window.
func (b *StreamingBuffer) String() string { return string(b.buf) }

// HasBoundary reports whether any of the markers occurs in the window.
func (b *StreamingBuffer) HasBoundary(markers ...string) bool {
	return HasBoundary(b.buf, markers...)
}

// HasBoundary reports whether data contains any of the markers.
func HasBoundary(data []byte, markers ...string) bool {
	for _, m := range markers {
		if m == "" {
			continue
		}
		if bytes.Contains(data, []byte(m)) {
			return true
		}
	}
	return false
}
