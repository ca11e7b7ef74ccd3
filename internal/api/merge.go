// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/log"
	"github.com/mediagate/mediagate/internal/metrics"
	"github.com/mediagate/mediagate/internal/mux"
)

// handleMerge muxes a split video and audio rendition pair into one MP4
// streamed straight to the caller.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()

	videoTarget, ok := s.resolveURLParam(w, r, started, "videoUrl", true)
	if !ok {
		return
	}
	audioTarget, ok := s.resolveURLParam(w, r, started, "audioUrl", true)
	if !ok {
		return
	}

	if !s.muxer.Available() {
		s.writeCode(w, r, started, http.StatusNotImplemented,
			errs.CodeFFmpegNotAvailable, errs.DefaultMessage(errs.CodeFFmpegNotAvailable))
		return
	}

	filename := q.Get("filename")
	if filename == "" {
		filename = "merged.mp4"
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "none")
	w.Header().Set("Content-Disposition", contentDisposition(filename))

	n, err := s.muxer.Merge(r.Context(), w, mux.MergeSpec{
		VideoURL:     videoTarget,
		AudioURL:     audioTarget,
		Headers:      upstreamHeaders(videoTarget),
		AudioHeaders: upstreamHeaders(audioTarget),
		CopyAudio:    q.Get("copyAudio") == "1",
	})
	metrics.AddDeliveryBytes("merge", n)
	if err != nil {
		if n == 0 {
			w.Header().Del("Accept-Ranges")
			w.Header().Del("Content-Disposition")
			metrics.IncDelivery("merge", "mux_error")
			s.writeError(w, r, started, err)
			return
		}
		metrics.IncDelivery("merge", "aborted")
		logger := log.WithContext(r.Context(), log.WithComponent("delivery"))
		logger.Debug().Err(err).Int64(log.FieldBytes, n).Msg("merge ended early")
		return
	}
	metrics.IncDelivery("merge", "ok")
}
