// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/metrics"
)

// RateLimit caps requests per client IP over a sliding window. The per-route
// extraction limiter lives in the handler; this one guards the whole surface.
func RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		max,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimitedTotal.WithLabelValues("global").Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeRefusal(w, http.StatusTooManyRequests,
				errs.CodeRateLimited, "Too many requests, slow down")
		}),
	)
}
