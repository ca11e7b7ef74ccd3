// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mediagate/mediagate/internal/api/middleware"
	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a coded error onto the failure envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, started time.Time, err error) {
	code := errs.CodeOf(err)
	s.writeCode(w, r, started, errs.HTTPStatus(code), code, errs.MessageOf(err))
}

// writeCode emits the failure envelope with an explicit status, for handlers
// that refine the default status of a code.
func (s *Server) writeCode(w http.ResponseWriter, r *http.Request, started time.Time, status int, code, message string) {
	if message == "" {
		message = errs.DefaultMessage(code)
	}
	writeJSON(w, status, extract.ErrorResult{
		Error: extract.ErrorBody{Code: code, Message: message},
		Meta:  s.meta(r, started),
	})
}

func (s *Server) meta(r *http.Request, started time.Time) extract.ResponseMeta {
	return extract.ResponseMeta{
		ResponseTime:  time.Since(started).Milliseconds(),
		AccessMode:    s.accessMode(r),
		PublicContent: true,
	}
}

func (s *Server) accessMode(r *http.Request) string {
	if middleware.KeyValid(r, s.cfg.APIKeys) {
		return extract.AccessAPIKey
	}
	return extract.AccessPublic
}
