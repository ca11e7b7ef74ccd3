// SPDX-License-Identifier: MIT

// Package procgroup starts child processes in their own process group and
// tears the whole group down when a run is cancelled. Without it, killing
// the muxer leader would leave its helper processes orphaned.
package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

// ErrKillFailed reports a process group that survived the SIGKILL deadline.
var ErrKillFailed = errors.New("process group did not exit")

// Set configures the command to start as a process group leader.
// Must be called before Start for KillGroup to reap the whole tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// KillGroup terminates the process group led by pid: SIGTERM, a grace
// period, then SIGKILL. It returns nil when the group is already gone.
func KillGroup(pid int, grace, timeout time.Duration) error {
	return killGroup(pid, grace, timeout)
}
