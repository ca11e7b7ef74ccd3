// SPDX-License-Identifier: MIT

package mux

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/metrics"
	"github.com/mediagate/mediagate/internal/procgroup"
)

// Stream converts the source described by spec and writes the result to w.
// The returned count is the number of bytes that reached w; once it is
// non-zero the response is committed and an error can only close the stream.
func (m *Muxer) Stream(ctx context.Context, w io.Writer, spec StreamSpec) (int64, error) {
	return m.run(ctx, w, StreamArgs(spec), streamMode(spec), errs.CodeConversionFailed)
}

// Merge downloads the video and audio renditions and muxes them into one MP4
// on w. With CopyAudio set, a failed stream copy is retried once with an AAC
// transcode, but only while nothing has been written yet.
func (m *Muxer) Merge(ctx context.Context, w io.Writer, spec MergeSpec) (int64, error) {
	if spec.CopyAudio {
		n, err := m.run(ctx, w, MergeArgs(spec, true), "merge", errs.CodeMergeFailed)
		if err == nil || n > 0 || errs.Is(err, errs.CodeTimeout) || errs.Is(err, errs.CodeFFmpegNotAvailable) {
			return n, err
		}
		m.logger.Warn().Str("video", spec.VideoURL).Msg("audio copy failed before first byte, retrying with transcode")
		return m.run(ctx, w, MergeArgs(spec, false), "merge", errs.CodeMergeFailed)
	}
	return m.run(ctx, w, MergeArgs(spec, false), "merge", errs.CodeMergeFailed)
}

func (m *Muxer) run(ctx context.Context, w io.Writer, args []string, mode, failCode string) (int64, error) {
	if m.lookupErr != nil {
		return 0, m.lookupErr
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// #nosec G204 -- bin comes from config or discovery, args are built internally
	cmd := exec.CommandContext(ctx, m.bin, args...)
	procgroup.Set(cmd)
	cmd.Cancel = func() error {
		return procgroup.KillGroup(cmd.Process.Pid, 2*time.Second, killTimeout)
	}

	out := &countingWriter{dst: w}
	cmd.Stdout = out

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeInternal, "attach muxer stderr")
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return 0, errs.Wrap(ctx.Err(), errs.CodeTimeout, errs.DefaultMessage(errs.CodeTimeout))
		}
		metrics.MuxerRunsTotal.WithLabelValues(mode, "spawn_error").Inc()
		return 0, errs.Wrap(err, failCode, "failed to start muxer process")
	}
	m.logger.Debug().Int("pid", cmd.Process.Pid).Str("mode", mode).Msg("muxer started")

	tail := &stderrTail{}
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			tail.add(scanner.Text())
		}
	}()

	// Drain stderr to EOF before Wait; Wait closes the pipe. The context
	// watchdog still kills the group on deadline, which unblocks the scan.
	<-scanDone
	waitErr := cmd.Wait()
	elapsed := time.Since(started)
	metrics.MuxerDuration.Observe(elapsed.Seconds())

	committed := out.n.Load()
	if waitErr == nil {
		metrics.MuxerRunsTotal.WithLabelValues(mode, "ok").Inc()
		m.logger.Debug().
			Str("mode", mode).
			Int64("bytes", committed).
			Dur("elapsed", elapsed).
			Msg("muxer finished")
		return committed, nil
	}

	if ctx.Err() != nil {
		metrics.MuxerRunsTotal.WithLabelValues(mode, "timeout").Inc()
		m.logger.Warn().
			Str("mode", mode).
			Int64("bytes", committed).
			Dur("elapsed", elapsed).
			Msg("muxer run cancelled")
		return committed, errs.Wrap(ctx.Err(), errs.CodeTimeout, errs.DefaultMessage(errs.CodeTimeout))
	}

	metrics.MuxerRunsTotal.WithLabelValues(mode, "error").Inc()
	m.logger.Error().
		Str("mode", mode).
		Int64("bytes", committed).
		Str("stderr", tail.String()).
		Msg("muxer exited with error")
	// The stderr tail stays in the logs; clients get the generic message so
	// upstream URLs and tokens never leak into responses.
	return committed, errs.Wrap(waitErr, failCode, errs.DefaultMessage(failCode))
}

// countingWriter tracks how many output bytes were committed downstream.
type countingWriter struct {
	dst io.Writer
	n   atomic.Int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if n > 0 {
		w.n.Add(int64(n))
	}
	return n, err
}

const tailLines = 8

// stderrTail keeps the last few diagnostic lines the muxer printed.
type stderrTail struct {
	mu    sync.Mutex
	lines []string
}

func (t *stderrTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > tailLines {
		t.lines = t.lines[len(t.lines)-tailLines:]
	}
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
