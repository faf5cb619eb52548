//go:build !windows

package runtimeproc

import (
	"os/exec"
	"syscall"
)

// killProcessGroup kills a process and its entire process group. Unix
// signals the negative pid to reach the whole group.
func killProcessGroup(pid int, cmd *exec.Cmd) error {
	if pid > 0 {
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			return err
		}
		return nil
	}
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && err.Error() != "os: process already finished" {
			return err
		}
	}
	return nil
}

// setProcAttr makes the spawned runtime a session/process-group leader
// so killProcessGroup can reach its children too.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
