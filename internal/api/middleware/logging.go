// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/mediagate/mediagate/internal/log"
)

// Logging emits one structured line per completed request. Server errors log
// at error level so they surface without a level filter.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			logger := log.WithContext(r.Context(), log.WithComponent("http"))
			evt := logger.Info()
			if sw.status >= 500 {
				evt = logger.Error()
			}
			evt.
				Str(log.FieldEvent, "http.request").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int(log.FieldStatus, sw.status).
				Int64(log.FieldBytes, sw.bytes).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("request completed")
		})
	}
}
