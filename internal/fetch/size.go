// SPDX-License-Identifier: MIT

package fetch

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const sizeProbeConcurrency = 8

// FileSize probes the byte size of url via HEAD, falling back to a one-byte
// ranged GET when the upstream rejects HEAD or omits Content-Length.
func (c *Client) FileSize(ctx context.Context, rawurl string) (int64, bool) {
	if size, ok := c.headSize(ctx, rawurl); ok {
		return size, true
	}
	return c.rangeSize(ctx, rawurl)
}

// FileSizes probes many URLs in parallel. Unknown sizes are absent from the
// returned map.
func (c *Client) FileSizes(ctx context.Context, urls []string) map[string]int64 {
	sizes := make(map[string]int64, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sizeProbeConcurrency)
	for _, u := range urls {
		g.Go(func() error {
			if size, ok := c.FileSize(gctx, u); ok {
				mu.Lock()
				sizes[u] = size
				mu.Unlock()
			}
			// Unknown sizes are not errors; the probe is best-effort.
			return nil
		})
	}
	_ = g.Wait()
	return sizes
}

func (c *Client) headSize(ctx context.Context, rawurl string) (int64, bool) {
	resp, _, cancel, err := c.do(ctx, rawurl, Options{Method: http.MethodHead})
	if err != nil {
		return 0, false
	}
	defer cancel()
	drainClose(resp.Body)
	c.markCompleted()

	if resp.StatusCode >= 400 {
		return 0, false
	}
	if resp.ContentLength > 0 {
		return resp.ContentLength, true
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil && size > 0 {
			return size, true
		}
	}
	return 0, false
}

func (c *Client) rangeSize(ctx context.Context, rawurl string) (int64, bool) {
	resp, _, cancel, err := c.do(ctx, rawurl, Options{
		Method:  http.MethodGet,
		Headers: map[string]string{"Range": "bytes=0-0"},
	})
	if err != nil {
		return 0, false
	}
	defer cancel()
	drainClose(resp.Body)
	c.markCompleted()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, false
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// parseContentRangeTotal extracts the total from "bytes 0-0/12345".
func parseContentRangeTotal(v string) (int64, bool) {
	idx := strings.LastIndex(v, "/")
	if idx < 0 || idx == len(v)-1 {
		return 0, false
	}
	total := v[idx+1:]
	if total == "*" {
		return 0, false
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size <= 0 {
		return 0, false
	}
	return size, true
}
