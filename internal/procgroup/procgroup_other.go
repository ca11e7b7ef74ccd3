// SPDX-License-Identifier: MIT

//go:build !linux

package procgroup

import (
	"os"
	"os/exec"
	"time"

	"github.com/mediagate/mediagate/internal/log"
)

func set(cmd *exec.Cmd) {
	// No group leadership on this platform; KillGroup degrades to the leader.
}

func killGroup(pid int, grace, timeout time.Duration) error {
	if pid <= 0 {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}

	logger := log.WithComponent("procgroup")
	logger.Debug().Int("pid", pid).Msg("interrupting leader process (no group support)")
	_ = proc.Signal(os.Interrupt)

	done := make(chan struct{})
	go func() {
		_, _ = proc.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		_ = proc.Kill()
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrKillFailed
	}
}
