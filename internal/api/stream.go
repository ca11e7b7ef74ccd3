// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/log"
	"github.com/mediagate/mediagate/internal/media"
	"github.com/mediagate/mediagate/internal/metrics"
)

// proxyStream relays upstream bytes to the caller. Range is forwarded in
// both directions so seeking works through the proxy.
func (s *Server) proxyStream(w http.ResponseWriter, r *http.Request, started time.Time, endpoint, target, disposition string) {
	headers := upstreamHeaders(target)
	if rng := r.Header.Get("Range"); rng != "" {
		if headers == nil {
			headers = make(map[string]string, 1)
		}
		headers["Range"] = rng
	}

	resp, err := s.client.FetchStream(r.Context(), target, fetch.Options{
		StreamMode: true,
		Headers:    headers,
	})
	if err != nil {
		metrics.IncDelivery(endpoint, "upstream_error")
		s.writeError(w, r, started, err)
		return
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = media.Analyze("", target).MIME
	}
	w.Header().Set("Content-Type", ct)
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		w.Header().Set("Content-Range", cr)
	}
	if ar := resp.Header.Get("Accept-Ranges"); ar != "" {
		w.Header().Set("Accept-Ranges", ar)
	}
	if disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	w.WriteHeader(resp.Status)

	n, err := io.Copy(w, resp.Body)
	metrics.AddDeliveryBytes(endpoint, n)
	if err != nil {
		metrics.IncDelivery(endpoint, "aborted")
		logger := log.WithContext(r.Context(), log.WithComponent("delivery"))
		logger.Debug().Err(err).
			Str(log.FieldUpstream, target).
			Int64(log.FieldBytes, n).
			Msg("stream closed early")
		return
	}
	metrics.IncDelivery(endpoint, "ok")
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	target, ok := s.resolveDelivery(w, r, started)
	if !ok {
		return
	}
	s.proxyStream(w, r, started, "stream", target, "")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()

	if watch := q.Get("watchUrl"); watch != "" && watchURLRe.MatchString(watch) {
		if s.serveFastPath(w, r, started, watch, q.Get("quality"), q.Get("filename")) {
			return
		}
		target, err := s.authorizeURL(r.Context(), watch)
		if err != nil {
			s.writeError(w, r, started, err)
			return
		}
		s.proxyStream(w, r, started, "download", target, downloadDisposition(q.Get("filename"), target))
		return
	}

	target, ok := s.resolveDelivery(w, r, started)
	if !ok {
		return
	}
	s.proxyStream(w, r, started, "download", target, downloadDisposition(q.Get("filename"), target))
}

// serveFastPath downloads a watch page through the local downloader and
// serves the finished file with an exact Content-Length. Returns false when
// the caller should fall back to proxying.
func (s *Server) serveFastPath(w http.ResponseWriter, r *http.Request, started time.Time, watchURL, quality, filename string) bool {
	if s.downloader == nil || !s.downloader.Available() {
		return false
	}

	dl, err := s.downloader.Fetch(r.Context(), watchURL, quality)
	if err != nil {
		metrics.IncDelivery("download", "fastpath_error")
		logger := log.WithContext(r.Context(), log.WithComponent("delivery"))
		logger.Warn().Err(err).
			Str(log.FieldUpstream, watchURL).
			Msg("downloader fast path failed, falling back to proxy")
		return false
	}
	defer func() { _ = dl.Close() }()

	name := filename
	if name == "" {
		name = dl.Name
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	w.Header().Set("Content-Disposition", contentDisposition(name))

	n, err := io.Copy(w, dl)
	metrics.AddDeliveryBytes("download", n)
	if err != nil {
		metrics.IncDelivery("download", "aborted")
		return true
	}
	metrics.IncDelivery("download", "ok")
	return true
}

func downloadDisposition(filename, target string) string {
	if filename == "" {
		filename = filenameFromURL(target)
	}
	return contentDisposition(filename)
}

func filenameFromURL(target string) string {
	if u, err := url.Parse(target); err == nil {
		if base := path.Base(u.Path); strings.Contains(base, ".") && base != "." && base != ".." {
			return base
		}
	}
	return "media." + media.Analyze("", target).Extension
}

// contentDisposition renders both the plain-ASCII filename and the RFC 5987
// form so non-Latin titles survive every browser.
func contentDisposition(name string) string {
	ascii := asciiOnly(name)
	if ascii == "" {
		ascii = "download"
	}
	return `attachment; filename="` + ascii + `"; filename*=UTF-8''` + rfc5987Encode(name)
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f && r != '"' && r != '\\' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// rfc5987Encode percent-encodes every byte outside attr-char.
func rfc5987Encode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '&', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
