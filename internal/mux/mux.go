// SPDX-License-Identifier: MIT

// Package mux drives the external muxer binary for deliveries the client
// cannot assemble itself: HLS conversions, split-rendition merges, and audio
// extraction. Every run streams the muxer's stdout straight into the HTTP
// response, so output starts flowing before the conversion finishes.
package mux

import (
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
)

// DefaultTimeout caps a single run's wall clock when the config carries none.
const DefaultTimeout = 60 * time.Second

// killTimeout bounds how long a SIGKILLed process group may linger.
const killTimeout = 5 * time.Second

// wellKnownPaths are probed before falling back to a PATH lookup, so a
// distribution-installed binary wins over whatever the environment exposes.
var wellKnownPaths = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
}

// Config carries the muxer settings.
type Config struct {
	// BinPath pins the muxer binary. Empty means discover one.
	BinPath string
	// Timeout caps each run's wall clock. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Muxer spawns and supervises muxer subprocesses. A missing binary is not
// fatal at construction time; runs then fail with FFMPEG_NOT_AVAILABLE so
// the rest of the gateway keeps serving.
type Muxer struct {
	bin       string
	lookupErr error
	timeout   time.Duration
	logger    zerolog.Logger
}

// New resolves the binary and returns a ready Muxer.
func New(cfg Config) *Muxer {
	bin := cfg.BinPath
	var lookupErr error
	if bin == "" {
		bin, lookupErr = Lookup()
	} else if info, err := os.Stat(bin); err != nil || info.IsDir() {
		// A pinned path that does not exist reads as absent, so the
		// conversion endpoints degrade instead of erroring per request.
		lookupErr = errs.E(errs.CodeFFmpegNotAvailable, errs.DefaultMessage(errs.CodeFFmpegNotAvailable))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &Muxer{
		bin:       bin,
		lookupErr: lookupErr,
		timeout:   timeout,
		logger:    cfg.Logger.With().Str("component", "mux").Logger(),
	}
	if lookupErr != nil {
		m.logger.Warn().Msg("no muxer binary found, conversion endpoints disabled")
	} else {
		m.logger.Debug().Str("bin", bin).Msg("muxer binary resolved")
	}
	return m
}

// Lookup locates the muxer binary.
func Lookup() (string, error) {
	for _, p := range wellKnownPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", errs.E(errs.CodeFFmpegNotAvailable, errs.DefaultMessage(errs.CodeFFmpegNotAvailable))
}

// Available reports whether a muxer binary was resolved.
func (m *Muxer) Available() bool { return m.lookupErr == nil }

// Bin returns the resolved binary path, or the empty string when none was
// found.
func (m *Muxer) Bin() string { return m.bin }
