// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"runtime"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/log"
)

// Recoverer turns a panic in any downstream handler into a logged 500
// instead of a dead process.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				// The server aborts streaming responses this way on client
				// disconnect; it is not a programming error.
				panic(rec)
			}
			buf := make([]byte, 8192)
			n := runtime.Stack(buf, false)

			logger := log.WithContext(r.Context(), log.WithComponent("panic-recovery"))
			logger.Error().
				Str("event", "panic.recovered").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Interface("panic_value", rec).
				Str("stack_trace", string(buf[:n])).
				Msg("panic recovered in HTTP handler")

			writeRefusal(w, http.StatusInternalServerError,
				errs.CodeInternal, errs.DefaultMessage(errs.CodeInternal))
		}()

		next.ServeHTTP(w, r)
	})
}
