// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

//go:build !windows

package texconv

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the subprocess in its own process group so a
// timeout can terminate the converter and any children it spawns
// together instead of leaking orphans.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup sends SIGKILL to the subprocess's entire process
// group (negative pid), the POSIX idiom for killing a process tree
// this driver never needs to enumerate by hand.
func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}

// registerProcess and releaseProcess are no-ops on POSIX: the process
// group set up before Start is all the state termination needs.
func registerProcess(cmd *exec.Cmd) {}
func releaseProcess(cmd *exec.Cmd)  {}
