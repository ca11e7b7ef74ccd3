// SPDX-License-Identifier: MIT

package scrape

import (
	"io"
	"strings"
	"testing"
)

func TestStreamingBufferKeepsTail(t *testing.T) {
	b := NewStreamingBuffer(8)
	b.Add([]byte("abcd"))
	b.Add([]byte("efgh"))
	if got := b.String(); got != "abcdefgh" {
		t.Fatalf("window = %q, want abcdefgh", got)
	}
	b.Add([]byte("ij"))
	if got := b.String(); got != "cdefghij" {
		t.Errorf("window = %q, want cdefghij", got)
	}
	if b.Total() != 10 {
		t.Errorf("total = %d, want 10", b.Total())
	}
	if b.Len() != 8 {
		t.Errorf("len = %d, want 8", b.Len())
	}
}

func TestStreamingBufferOversizeChunk(t *testing.T) {
	b := NewStreamingBuffer(4)
	b.Add([]byte("0123456789"))
	if got := b.String(); got != "6789" {
		t.Errorf("window = %q, want 6789", got)
	}
	if b.Total() != 10 {
		t.Errorf("total = %d, want 10", b.Total())
	}
}

func TestStreamingBufferDefaultWindow(t *testing.T) {
	b := NewStreamingBuffer(0)
	if b.max != DefaultWindow {
		t.Fatalf("max = %d, want %d", b.max, DefaultWindow)
	}
}

func TestStreamingBufferAsWriter(t *testing.T) {
	b := NewStreamingBuffer(16)
	n, err := io.Copy(b, strings.NewReader("hello streaming world"))
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != 21 || b.Total() != 21 {
		t.Errorf("copied %d bytes, total %d, want 21", n, b.Total())
	}
	if got := b.String(); got != " streaming world" {
		t.Errorf("window = %q", got)
	}
}

func TestHasBoundary(t *testing.T) {
	b := NewStreamingBuffer(64)
	b.Add([]byte(`<script id="state">{"a":1}</script>`))
	if !b.HasBoundary("</script>", "</html>") {
		t.Error("expected boundary hit")
	}
	if b.HasBoundary("</body>") {
		t.Error("unexpected boundary hit")
	}
	if b.HasBoundary("") {
		t.Error("empty marker must never match")
	}
}
