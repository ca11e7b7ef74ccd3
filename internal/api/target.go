// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/guard"
)

var hashRe = regexp.MustCompile(`^[0-9a-f]{16}$`)

// watchURLRe recognizes a raw YouTube watch page, which the download
// endpoint may serve via the local downloader instead of a CDN URL.
var watchURLRe = regexp.MustCompile(`^https?://(www\.|m\.)?(youtube\.com/(watch\?v=|shorts/)|youtu\.be/)[\w-]{6,}`)

// signedHosts may be delivered without a registry entry: their URLs carry
// their own expiring signatures, and extraction results for these platforms
// can outlive the registry TTL in client bookmarks.
var signedHosts = []string{
	"youtube.com", "googlevideo.com", "youtu.be",
	"bilivideo.com", "bilivideo.cn", "bilibili.com",
	"akamaized.net",
}

func hostOnList(host string, list []string) bool {
	for _, allowed := range list {
		if host == allowed || hasDotSuffix(host, allowed) {
			return true
		}
	}
	return false
}

func hasDotSuffix(host, domain string) bool {
	return len(host) > len(domain)+1 &&
		host[len(host)-len(domain)-1] == '.' &&
		host[len(host)-len(domain):] == domain
}

// authorizeURL vets a caller-supplied delivery target: syntactically valid,
// not an internal host, and either registered by a prior extraction or on
// the signed-host list.
func (s *Server) authorizeURL(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errs.E(errs.CodeInvalidURL, errs.DefaultMessage(errs.CodeInvalidURL))
	}

	host, err := guard.NormalizeHost(u.Hostname())
	if err != nil {
		return "", errs.E(errs.CodeInvalidURL, errs.DefaultMessage(errs.CodeInvalidURL))
	}
	if _, blocked := guard.HostBlockReason(host); blocked {
		return "", errs.E(errs.CodeInvalidURL, "Internal hosts are not allowed")
	}

	if resolved, ok := s.registry.Lookup(ctx, raw); ok {
		return resolved, nil
	}
	if hostOnList(host, signedHosts) {
		return raw, nil
	}
	return "", errs.E(errs.CodeUnauthorizedURL, "URL is not registered for delivery")
}

// resolveDelivery turns the h= or url= query parameter into a vetted
// upstream target. On failure it writes the error envelope itself and
// returns ok=false.
func (s *Server) resolveDelivery(w http.ResponseWriter, r *http.Request, started time.Time) (string, bool) {
	q := r.URL.Query()

	if hash := q.Get("h"); hash != "" {
		if !hashRe.MatchString(hash) {
			s.writeCode(w, r, started, http.StatusBadRequest,
				errs.CodeInvalidHash, "Malformed media hash")
			return "", false
		}
		target, ok := s.registry.Lookup(r.Context(), hash)
		if !ok {
			s.writeCode(w, r, started, http.StatusNotFound,
				errs.CodeInvalidHash, "Unknown or expired media hash")
			return "", false
		}
		return target, true
	}

	if raw := q.Get("url"); raw != "" {
		target, err := s.authorizeURL(r.Context(), raw)
		if err != nil {
			s.writeError(w, r, started, err)
			return "", false
		}
		return target, true
	}

	s.writeCode(w, r, started, http.StatusBadRequest,
		errs.CodeMissingParameter, "h or url parameter is required")
	return "", false
}

// resolveURLParam vets one named URL query parameter through authorizeURL.
// Missing optional parameters come back as ("", true).
func (s *Server) resolveURLParam(w http.ResponseWriter, r *http.Request, started time.Time, name string, required bool) (string, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			s.writeCode(w, r, started, http.StatusBadRequest,
				errs.CodeMissingParameter, name+" parameter is required")
			return "", false
		}
		return "", true
	}
	target, err := s.authorizeURL(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, started, err)
		return "", false
	}
	return target, true
}

// CDN host groups that demand platform headers before serving bytes.
var (
	youtubeHosts  = []string{"youtube.com", "googlevideo.com", "youtu.be", "ytimg.com"}
	bilibiliHosts = []string{"bilivideo.com", "bilivideo.cn", "bilibili.com", "hdslb.com", "akamaized.net"}
	pixivHosts    = []string{"pximg.net", "pixiv.net"}
)

// upstreamHeaders returns the Referer and Origin headers the target's CDN
// requires. The pooled client already pins a desktop browser User-Agent.
func upstreamHeaders(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host, err := guard.NormalizeHost(u.Hostname())
	if err != nil {
		return nil
	}

	switch {
	case hostOnList(host, youtubeHosts):
		return map[string]string{"Referer": "https://www.youtube.com/"}
	case hostOnList(host, bilibiliHosts):
		return map[string]string{
			"Referer": "https://www.bilibili.com",
			"Origin":  "https://www.bilibili.com",
		}
	case hostOnList(host, pixivHosts):
		return map[string]string{"Referer": "https://www.pixiv.net/"}
	}
	return nil
}
