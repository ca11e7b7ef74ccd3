// SPDX-License-Identifier: MIT

package api

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/guard"
	"github.com/mediagate/mediagate/internal/metrics"
)

// thumbnailHosts are the platform image CDNs the thumbnail proxy will talk
// to. Tighter than the stream allow rules because thumbnails are fetched
// for arbitrary pages rendered in a browser.
var thumbnailHosts = []string{
	"cdninstagram.com", "fbcdn.net",
	"sinaimg.cn", "weibocdn.com",
	"pximg.net",
	"tiktokcdn.com",
	"twimg.com",
	"ytimg.com",
	"hdslb.com",
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	target, ok := s.resolveDelivery(w, r, started)
	if !ok {
		return
	}

	u, err := url.Parse(target)
	if err != nil {
		s.writeCode(w, r, started, http.StatusBadRequest,
			errs.CodeInvalidURL, errs.DefaultMessage(errs.CodeInvalidURL))
		return
	}
	host, err := guard.NormalizeHost(u.Hostname())
	if err != nil || !hostOnList(host, thumbnailHosts) {
		s.writeCode(w, r, started, http.StatusForbidden,
			errs.CodeUnauthorizedURL, "Host is not a known thumbnail CDN")
		return
	}

	resp, err := s.client.FetchStream(r.Context(), target, fetch.Options{
		Headers: upstreamHeaders(target),
	})
	if err != nil {
		metrics.IncDelivery("thumbnail", "upstream_error")
		s.writeError(w, r, started, err)
		return
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.Status)

	n, err := io.Copy(w, resp.Body)
	metrics.AddDeliveryBytes("thumbnail", n)
	if err != nil {
		metrics.IncDelivery("thumbnail", "aborted")
		return
	}
	metrics.IncDelivery("thumbnail", "ok")
}
