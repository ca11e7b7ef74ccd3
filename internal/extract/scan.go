// SPDX-License-Identifier: MIT

package extract

import (
	"context"
	"io"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/fetch"
	"github.com/mediagate/mediagate/internal/scrape"
)

const (
	// readinessThreshold is how much of a page is buffered before the
	// content-issue filter runs for the first time.
	readinessThreshold = 50 * 1024
	// scanWindow bounds how much of a page the extract phase can see.
	scanWindow = 4 << 20
)

// Issue pairs tombstone markers with the error code they imply. Marker
// match is a plain substring test against the buffered page.
type Issue struct {
	Code    string
	Markers []string
}

// DetectIssue returns the code of the first issue whose marker occurs in
// the window, or "".
func DetectIssue(window []byte, issues []Issue) string {
	for _, issue := range issues {
		if scrape.HasBoundary(window, issue.Markers...) {
			return issue.Code
		}
	}
	return ""
}

// ScanPage streams a document through a sliding window. Once the window
// crosses the readiness threshold the issue filter runs; on a hit the
// upstream is cancelled immediately and the matching code returned. At EOF
// the filter runs once more, then the buffered page is handed back.
func ScanPage(ctx context.Context, client *fetch.Client, url string, headers map[string]string, issues []Issue) (string, error) {
	resp, err := client.FetchStream(ctx, url, fetch.Options{Headers: headers})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	buf := scrape.NewStreamingBuffer(scanWindow)
	chunk := make([]byte, 32*1024)
	checked := false
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Add(chunk[:n])
			if !checked && buf.Total() >= readinessThreshold {
				checked = true
				if code := DetectIssue(buf.Bytes(), issues); code != "" {
					return "", errs.E(code, errs.DefaultMessage(code))
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", errs.Wrap(rerr, errs.CodeFetchFailed, "read page body")
		}
	}
	if code := DetectIssue(buf.Bytes(), issues); code != "" {
		return "", errs.E(code, errs.DefaultMessage(code))
	}
	return buf.String(), nil
}
