// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mediagate/mediagate/internal/api/middleware"
	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/history"
)

type statusResponse struct {
	Success    bool                 `json:"success"`
	Status     string               `json:"status"`
	Version    string               `json:"version"`
	Uptime     int64                `json:"uptime"`
	Extractors []string             `json:"extractors"`
	Meta       extract.ResponseMeta `json:"meta"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	writeJSON(w, http.StatusOK, statusResponse{
		Success:    true,
		Status:     "online",
		Version:    s.cfg.Version,
		Uptime:     int64(time.Since(s.started).Seconds()),
		Extractors: s.extractor.SupportedPlatforms(),
		Meta:       s.meta(r, started),
	})
}

type historyResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Entries []history.Entry      `json:"entries"`
	Meta    extract.ResponseMeta `json:"meta"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if !middleware.KeyValid(r, s.cfg.APIKeys) {
		s.writeCode(w, r, started, http.StatusUnauthorized,
			errs.CodeUnauthorized, "History requires an API key")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, started, errs.Wrap(err, errs.CodeInternal, "history query failed"))
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Success: true,
		Count:   len(entries),
		Entries: entries,
		Meta:    s.meta(r, started),
	})
}

// The upstream web client polls these two; the gateway has nothing to
// announce but keeps the shape stable.

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"events":  []any{},
		"meta":    s.meta(r, started),
	})
}

func (s *Server) handleChangelog(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"changelog": []any{},
		"meta":      s.meta(r, started),
	})
}
