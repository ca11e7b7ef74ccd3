// SPDX-License-Identifier: MIT

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mediagate/mediagate/internal/errs"
)

// HeaderAPIKey authenticates callers of the gated routes.
const HeaderAPIKey = "X-API-Key"

// Routes any caller may hit without a key or allowed origin. Delivery and
// extraction are deliberately open; the gated surface is everything else.
var publicRoutes = map[string]bool{
	"/extract":   true,
	"/stream":    true,
	"/download":  true,
	"/thumbnail": true,
	"/merge":     true,
	"/events":    true,
	"/changelog": true,
	"/health":    true,
}

// AccessGate closes every non-public route to callers that present neither a
// valid API key nor an allowed Origin or Referer.
func AccessGate(apiKeys, allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicRoutes[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/hls-") {
				next.ServeHTTP(w, r)
				return
			}
			if KeyValid(r, apiKeys) || originAllowed(r, allowedOrigins) {
				next.ServeHTTP(w, r)
				return
			}
			writeRefusal(w, http.StatusForbidden, errs.CodeForbidden,
				"Access denied")
		})
	}
}

// KeyValid reports whether the request carries one of the configured API
// keys. Comparison is constant time per key.
func KeyValid(r *http.Request, apiKeys []string) bool {
	presented := r.Header.Get(HeaderAPIKey)
	if presented == "" {
		return false
	}
	for _, key := range apiKeys {
		if key == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func originAllowed(r *http.Request, allowedOrigins []string) bool {
	source := r.Header.Get("Origin")
	if source == "" {
		source = r.Header.Get("Referer")
	}
	if source == "" {
		return false
	}
	for _, origin := range allowedOrigins {
		if origin == "" {
			continue
		}
		if origin == "*" || strings.HasPrefix(source, origin) {
			return true
		}
	}
	return false
}
