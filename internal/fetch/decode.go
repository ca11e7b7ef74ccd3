// SPDX-License-Identifier: MIT

package fetch

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodeBody wraps the raw body according to Content-Encoding. When a wrap
// happens the returned header is a copy without Content-Encoding and
// Content-Length, since both describe the wire form, not the decoded stream.
func decodeBody(resp *http.Response) (io.ReadCloser, http.Header, int64) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))

	var decoded io.ReadCloser
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			// Mislabelled body; hand it through untouched.
			return resp.Body, resp.Header, resp.ContentLength
		}
		decoded = &chainedCloser{Reader: gz, closers: []io.Closer{gz, resp.Body}}
	case "deflate":
		fr := flate.NewReader(resp.Body)
		decoded = &chainedCloser{Reader: fr, closers: []io.Closer{fr, resp.Body}}
	case "br":
		decoded = &chainedCloser{Reader: brotli.NewReader(resp.Body), closers: []io.Closer{resp.Body}}
	default:
		return resp.Body, resp.Header, resp.ContentLength
	}

	header := resp.Header.Clone()
	header.Del("Content-Encoding")
	header.Del("Content-Length")
	return decoded, header, -1
}

type chainedCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *chainedCloser) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
