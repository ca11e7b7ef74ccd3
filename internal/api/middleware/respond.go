// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/mediagate/mediagate/internal/extract"
)

// writeRefusal emits the gateway error envelope from inside the middleware
// chain, where no handler has run yet and response time is effectively zero.
func writeRefusal(w http.ResponseWriter, status int, code, message string) {
	env := extract.ErrorResult{
		Error: extract.ErrorBody{Code: code, Message: message},
		Meta: extract.ResponseMeta{
			AccessMode:    extract.AccessPublic,
			PublicContent: true,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&env)
}
