//go:build windows

package runtimeproc

import (
	"os/exec"
	"syscall"
)

// killProcessGroup kills the spawned process directly; Windows has no
// Unix-style process groups, so clean child teardown relies on having
// launched with CREATE_NEW_PROCESS_GROUP instead.
func killProcessGroup(pid int, cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && err.Error() != "os: process already finished" {
		return err
	}
	return nil
}

// setProcAttr creates a new process group for the spawned runtime.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
