// SPDX-License-Identifier: MIT

// Package ytdlp shells out to the yt-dlp downloader to materialize a watch
// URL into a local MP4. The delivery layer streams the file to the client
// and falls back to the generic proxy when anything here fails.
package ytdlp

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/procgroup"
)

// DefaultTimeout caps one download when the config carries none. Full videos
// take longer to materialize than a muxer pass, so this runs generous.
const DefaultTimeout = 3 * time.Minute

const killTimeout = 5 * time.Second

// Config carries the runner settings.
type Config struct {
	// BinPath names the yt-dlp binary; empty means "yt-dlp" on PATH.
	BinPath string
	// TempDir is the parent for per-download directories. Empty means the
	// system temp dir.
	TempDir string
	// Timeout caps one download's wall clock. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Runner spawns supervised yt-dlp downloads.
type Runner struct {
	bin     string
	tempDir string
	timeout time.Duration
	logger  zerolog.Logger
}

// New builds a Runner. The binary is not probed here; a missing one simply
// fails the first download, which the caller treats as a fallthrough.
func New(cfg Config) *Runner {
	bin := cfg.BinPath
	if bin == "" {
		bin = "yt-dlp"
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		bin:     bin,
		tempDir: tempDir,
		timeout: timeout,
		logger:  cfg.Logger.With().Str("component", "ytdlp").Logger(),
	}
}

// Available reports whether the downloader binary resolves.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.bin)
	return err == nil
}

// Download is a materialized file that removes its directory on Close.
type Download struct {
	f    *os.File
	dir  string
	Size int64
	Name string
}

func (d *Download) Read(p []byte) (int, error) { return d.f.Read(p) }

// Close releases the file and deletes the temp directory.
func (d *Download) Close() error {
	err := d.f.Close()
	if rmErr := os.RemoveAll(d.dir); err == nil {
		err = rmErr
	}
	return err
}

// Fetch runs the downloader against watchURL and returns the materialized
// file. quality optionally caps the video height ("720" or "720p").
func (r *Runner) Fetch(ctx context.Context, watchURL, quality string) (*Download, error) {
	dir := filepath.Join(r.tempDir, "mediagate-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "create download directory")
	}

	dl, err := r.fetchInto(ctx, dir, watchURL, quality)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return dl, nil
}

func (r *Runner) fetchInto(ctx context.Context, dir, watchURL, quality string) (*Download, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := buildArgs(dir, watchURL, quality)
	// #nosec G204 -- bin comes from config, args are built internally
	cmd := exec.CommandContext(ctx, r.bin, args...)
	procgroup.Set(cmd)
	cmd.Cancel = func() error {
		return procgroup.KillGroup(cmd.Process.Pid, 2*time.Second, killTimeout)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "attach downloader stderr")
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), errs.CodeTimeout, errs.DefaultMessage(errs.CodeTimeout))
		}
		return nil, errs.Wrap(err, errs.CodeDownloadFailed, "failed to start downloader")
	}
	r.logger.Debug().Int("pid", cmd.Process.Pid).Str("url", watchURL).Msg("downloader started")

	var lastLine string
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			lastLine = scanner.Text()
		}
	}()

	<-scanDone
	waitErr := cmd.Wait()
	if waitErr != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), errs.CodeTimeout, errs.DefaultMessage(errs.CodeTimeout))
		}
		r.logger.Warn().Str("url", watchURL).Str("stderr", lastLine).Msg("downloader exited with error")
		return nil, errs.Wrap(waitErr, errs.CodeDownloadFailed, errs.DefaultMessage(errs.CodeDownloadFailed))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "video.*"))
	if err != nil || len(matches) == 0 {
		return nil, errs.E(errs.CodeDownloadFailed, "downloader produced no file")
	}
	path := matches[0]

	f, err := os.Open(path) // #nosec G304 -- path is inside the run's own temp dir
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeDownloadFailed, "open downloaded file")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errs.Wrap(err, errs.CodeDownloadFailed, "stat downloaded file")
	}

	r.logger.Info().
		Str("url", watchURL).
		Int64("size", info.Size()).
		Dur("elapsed", time.Since(started)).
		Msg("download materialized")

	return &Download{f: f, dir: dir, Size: info.Size(), Name: filepath.Base(path)}, nil
}

func buildArgs(dir, watchURL, quality string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"--merge-output-format", "mp4",
		"-f", formatSelector(quality),
		"-o", filepath.Join(dir, "video.%(ext)s"),
		watchURL,
	}
}

// formatSelector maps a requested height cap onto a yt-dlp format chain that
// prefers an MP4 pair and degrades to whatever single file exists.
func formatSelector(quality string) string {
	height := parseHeight(quality)
	if height <= 0 {
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	}
	h := strconv.Itoa(height)
	return "bestvideo[ext=mp4][height<=" + h + "]+bestaudio[ext=m4a]/best[ext=mp4][height<=" + h + "]/best"
}

func parseHeight(quality string) int {
	q := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(quality)), "p")
	if q == "" {
		return 0
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
