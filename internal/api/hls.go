// SPDX-License-Identifier: MIT

package api

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/guard"
	"github.com/mediagate/mediagate/internal/hls"
	"github.com/mediagate/mediagate/internal/log"
	"github.com/mediagate/mediagate/internal/metrics"
	"github.com/mediagate/mediagate/internal/mux"
)

// handleHLSProxy serves manifests rewritten to loop their URIs back through
// this endpoint, and relays the segments those rewritten URIs point at.
func (s *Server) handleHLSProxy(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()

	raw := q.Get("url")
	if raw == "" {
		s.writeCode(w, r, started, http.StatusBadRequest,
			errs.CodeMissingParameter, "url parameter is required")
		return
	}

	if q.Get("type") == "segment" {
		s.proxySegment(w, r, started, raw)
		return
	}

	target, err := s.authorizeURL(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, started, err)
		return
	}

	resp, err := s.client.FetchText(r.Context(), target, fetch.Options{
		Headers: upstreamHeaders(target),
	})
	if err != nil {
		metrics.IncDelivery("hls-proxy", "upstream_error")
		s.writeError(w, r, started, err)
		return
	}

	base, err := url.Parse(resp.FinalURL)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(target)
	}
	rewritten := hls.RewriteManifest(resp.Data, base, proxyBase(r))

	w.Header().Set("Content-Type", hls.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, rewritten)
	metrics.IncDelivery("hls-proxy", "ok")
}

// proxySegment relays one media segment. Segment URIs come out of rewritten
// manifests and may point anywhere the manifest author chose, so they get
// the resolving target check rather than the registry.
func (s *Server) proxySegment(w http.ResponseWriter, r *http.Request, started time.Time, raw string) {
	if err := guard.CheckTarget(r.Context(), raw); err != nil {
		s.writeCode(w, r, started, http.StatusBadRequest,
			errs.CodeInvalidURL, "Segment target is not allowed")
		return
	}

	headers := upstreamHeaders(raw)
	if rng := r.Header.Get("Range"); rng != "" {
		if headers == nil {
			headers = make(map[string]string, 1)
		}
		headers["Range"] = rng
	}

	resp, err := s.client.FetchStream(r.Context(), raw, fetch.Options{
		StreamMode: true,
		Headers:    headers,
	})
	if err != nil {
		metrics.IncDelivery("hls-proxy", "upstream_error")
		s.writeError(w, r, started, err)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(resp.Status)

	n, err := io.Copy(w, resp.Body)
	metrics.AddDeliveryBytes("hls-proxy", n)
	if err != nil {
		metrics.IncDelivery("hls-proxy", "aborted")
		return
	}
	metrics.IncDelivery("hls-proxy", "ok")
}

// proxyBase reconstructs this endpoint's absolute URL as the caller sees
// it, honoring forwarding proxies.
func proxyBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + "/hls-proxy"
}

// handleHLSStream converts an HLS rendition to a progressive file on the
// fly: video/mp4, or audio/mpeg when type=audio.
func (s *Server) handleHLSStream(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()

	target, ok := s.resolveURLParam(w, r, started, "url", true)
	if !ok {
		return
	}
	audioTarget, ok := s.resolveURLParam(w, r, started, "audioUrl", false)
	if !ok {
		return
	}

	if !s.muxer.Available() {
		s.writeCode(w, r, started, http.StatusNotImplemented,
			errs.CodeFFmpegNotAvailable, errs.DefaultMessage(errs.CodeFFmpegNotAvailable))
		return
	}

	kind := mux.KindVideo
	contentType := "video/mp4"
	if q.Get("type") == "audio" {
		kind = mux.KindAudio
		contentType = "audio/mpeg"
	}

	w.Header().Set("Content-Type", contentType)
	// Output length is unknowable up front and the pipe cannot seek.
	w.Header().Set("Accept-Ranges", "none")

	n, err := s.muxer.Stream(r.Context(), w, mux.StreamSpec{
		URL:          target,
		AudioURL:     audioTarget,
		Kind:         kind,
		Headers:      upstreamHeaders(target),
		AudioHeaders: upstreamHeaders(audioTarget),
	})
	metrics.AddDeliveryBytes("hls-stream", n)
	if err != nil {
		if n == 0 {
			w.Header().Del("Accept-Ranges")
			metrics.IncDelivery("hls-stream", "mux_error")
			s.writeError(w, r, started, err)
			return
		}
		metrics.IncDelivery("hls-stream", "aborted")
		logger := log.WithContext(r.Context(), log.WithComponent("delivery"))
		logger.Debug().Err(err).Int64(log.FieldBytes, n).Msg("conversion ended early")
		return
	}
	metrics.IncDelivery("hls-stream", "ok")
}
