// SPDX-License-Identifier: MIT

// Package fetch is the gateway's upstream HTTP transport: a process-wide
// pooled client with manual redirect tracking, transparent decompression and
// a streaming mode for long-lived proxying.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mediagate/mediagate/internal/errs"
)

const (
	// DefaultUserAgent is sent on every request unless the caller overrides it.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	// MobileUserAgent mimics an iPad; some platforms serve richer embeds to it.
	MobileUserAgent = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"

	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 5
	defaultMaxTextBytes = int64(10 << 20)

	// warmWindow matches the transport keep-alive: a request completed within
	// it means pooled connections are likely still open.
	warmWindow = 60 * time.Second
)

// Config tunes the client. Zero values take the documented defaults.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	Logger       zerolog.Logger
}

// Options adjust a single request.
type Options struct {
	Method  string
	Headers map[string]string

	// Timeout bounds the whole request including the body read. Zero uses
	// the client default. Ignored for the body when StreamMode is set.
	Timeout time.Duration

	// MaxRedirects overrides the client default when positive.
	MaxRedirects int

	// NoFollow disables redirect following; the first response is returned
	// as-is (redirect statuses included).
	NoFollow bool

	// StreamMode keeps the body free of any deadline so long-lived proxying
	// can run; the timeout then bounds only the connect/header phase.
	StreamMode bool

	// MaxBytes caps FetchText reads. Zero means 10 MiB.
	MaxBytes int64

	// Body is an optional request body for POST-style calls.
	Body io.Reader
}

// Response is a streaming upstream response. Body is already decompressed
// when the upstream declared gzip, deflate or br; in that case the exposed
// header carries neither Content-Encoding nor the stale Content-Length.
type Response struct {
	Status   int
	Header   http.Header
	Body     io.ReadCloser
	FinalURL string

	// ContentLength is the upstream length, or -1 when unknown or when the
	// body was re-coded by decompression.
	ContentLength int64
}

// TextResponse is a fully-read upstream response.
type TextResponse struct {
	Status   int
	Header   http.Header
	Data     string
	FinalURL string
}

// Stats describes connection warmth. Purely observational.
type Stats struct {
	IsWarm         bool  `json:"isWarm"`
	LastRequestAge int64 `json:"lastRequestAgeMs"`
}

// Client is a pooled upstream HTTP client. Safe for concurrent use.
type Client struct {
	http         *http.Client
	timeout      time.Duration
	maxRedirects int
	userAgent    string
	logger       zerolog.Logger

	lastRequest atomic.Int64 // unix nano of the last completed request
}

// New builds the process-wide client: 100 pooled connections, 10 per host,
// keep-alive 60 s, no automatic redirects, no automatic decompression.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       warmWindow,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Decompression is handled here, not by the transport, so that br is
		// covered and proxied bodies stay verbatim when uncompressed.
		DisableCompression: true,
	}

	return &Client{
		http: &http.Client{
			// Each upstream call becomes a client span under the request's
			// server span; with tracing off this is a passthrough.
			Transport: otelhttp.NewTransport(transport),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:      cfg.Timeout,
		maxRedirects: cfg.MaxRedirects,
		userAgent:    cfg.UserAgent,
		logger:       cfg.Logger,
	}
}

// FetchStream opens url and returns the live body. The caller owns Body and
// must close it; closing also releases the request context.
func (c *Client) FetchStream(ctx context.Context, rawurl string, opts Options) (*Response, error) {
	resp, finalURL, cancel, err := c.do(ctx, rawurl, opts)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		drainClose(resp.Body)
		cancel()
		return nil, errs.E(errs.CodeRateLimited, "upstream rate limited")
	}
	if resp.StatusCode >= 400 {
		drainClose(resp.Body)
		cancel()
		return nil, errs.Upstream(resp.StatusCode, fmt.Sprintf("upstream returned %d", resp.StatusCode))
	}

	body, header, length := decodeBody(resp)
	c.markCompleted()
	return &Response{
		Status:        resp.StatusCode,
		Header:        header,
		Body:          &cancelBody{ReadCloser: body, cancel: cancel},
		FinalURL:      finalURL,
		ContentLength: length,
	}, nil
}

// FetchText fetches url and reads the whole (bounded) body.
func (c *Client) FetchText(ctx context.Context, rawurl string, opts Options) (*TextResponse, error) {
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	if _, ok := headerValue(opts.Headers, "Accept-Encoding"); !ok {
		opts.Headers["Accept-Encoding"] = "gzip, deflate, br"
	}

	resp, err := c.FetchStream(ctx, rawurl, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxTextBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, wrapTransportErr(ctx, err, rawurl)
	}
	return &TextResponse{
		Status:   resp.Status,
		Header:   resp.Header,
		Data:     string(data),
		FinalURL: resp.FinalURL,
	}, nil
}

// ResolveURL follows redirects via HEAD and reports the final location,
// falling back to GET when the upstream rejects HEAD.
func (c *Client) ResolveURL(ctx context.Context, rawurl string, opts Options) (string, error) {
	headOpts := opts
	headOpts.Method = http.MethodHead
	resp, finalURL, cancel, err := c.do(ctx, rawurl, headOpts)
	if err == nil && resp.StatusCode < 400 {
		drainClose(resp.Body)
		cancel()
		c.markCompleted()
		return finalURL, nil
	}
	if err == nil {
		drainClose(resp.Body)
		cancel()
	}

	getOpts := opts
	getOpts.Method = http.MethodGet
	resp, finalURL, cancel, err = c.do(ctx, rawurl, getOpts)
	if err != nil {
		return "", err
	}
	drainClose(resp.Body)
	cancel()
	c.markCompleted()
	if resp.StatusCode >= 400 {
		return "", errs.Upstream(resp.StatusCode, fmt.Sprintf("resolve returned %d", resp.StatusCode))
	}
	return finalURL, nil
}

// Stats reports whether the pool is warm.
func (c *Client) Stats() Stats {
	last := c.lastRequest.Load()
	if last == 0 {
		return Stats{IsWarm: false, LastRequestAge: -1}
	}
	age := time.Since(time.Unix(0, last))
	return Stats{
		IsWarm:         age < warmWindow,
		LastRequestAge: age.Milliseconds(),
	}
}

// do runs the manual redirect loop. On success the returned cancel func must
// be invoked once the response body is no longer needed.
func (c *Client) do(ctx context.Context, rawurl string, opts Options) (*http.Response, string, context.CancelFunc, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = c.maxRedirects
	}

	var reqCtx context.Context
	var cancel context.CancelFunc
	if opts.StreamMode {
		// Bound only the connect/header phase; the body must be able to
		// flow for as long as the caller keeps reading.
		reqCtx, cancel = context.WithCancel(ctx)
		watchdog := time.AfterFunc(timeout, cancel)
		defer watchdog.Stop()
	} else {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	current := rawurl
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(reqCtx, method, current, opts.Body)
		if err != nil {
			cancel()
			return nil, "", nil, errs.Wrap(err, errs.CodeInvalidURL, "malformed upstream URL")
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			cancel()
			return nil, "", nil, wrapTransportErr(ctx, err, current)
		}

		if isRedirect(resp.StatusCode) && !opts.NoFollow {
			location := resp.Header.Get("Location")
			drainClose(resp.Body)
			if location == "" {
				cancel()
				return nil, "", nil, errs.Ef(errs.CodeFetchFailed, "redirect without location from %s", hostOf(current))
			}
			next, err := req.URL.Parse(location)
			if err != nil {
				cancel()
				return nil, "", nil, errs.Wrap(err, errs.CodeFetchFailed, "unparseable redirect target")
			}
			if hop+1 > maxRedirects {
				cancel()
				return nil, "", nil, errs.Ef(errs.CodeFetchFailed, "redirect limit of %d exceeded", maxRedirects)
			}
			current = next.String()
			// Redirected GETs drop any one-shot body.
			opts.Body = nil
			continue
		}

		return resp, current, cancel, nil
	}
}

func (c *Client) markCompleted() {
	c.lastRequest.Store(time.Now().UnixNano())
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// wrapTransportErr classifies low-level errors: cancellation and deadlines
// become TIMEOUT, everything else FETCH_FAILED.
func wrapTransportErr(ctx context.Context, err error, rawurl string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return errs.Wrap(err, errs.CodeTimeout, "upstream request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Wrap(err, errs.CodeTimeout, "upstream request timed out")
	}
	return errs.Wrap(err, errs.CodeFetchFailed, "upstream request to "+hostOf(rawurl)+" failed")
}

func hostOf(rawurl string) string {
	if u, err := url.Parse(rawurl); err == nil && u.Host != "" {
		return u.Host
	}
	return "upstream"
}

func headerValue(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func drainClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// cancelBody releases the request context when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	if b.cancel != nil {
		b.cancel()
	}
	return err
}
