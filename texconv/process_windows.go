// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

//go:build windows

package texconv

import (
	"os/exec"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// setProcessGroup is a no-op on Windows; the job object created in
// registerProcess is what groups the converter with its children.
func setProcessGroup(cmd *exec.Cmd) {}

// jobs maps a running command to the job object its process was
// assigned to, so terminateGroup can kill the whole tree.
var (
	jobsMu sync.Mutex
	jobs   = map[*exec.Cmd]windows.Handle{}
)

// registerProcess creates a kill-on-close job object and assigns the
// just-started subprocess to it. Children the converter spawns inherit
// job membership, so terminating the job terminates the tree. Failure
// to set the job up degrades to plain Process.Kill in terminateGroup.
func registerProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return
	}
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info))); err != nil {
		windows.CloseHandle(job)
		return
	}
	proc, err := windows.OpenProcess(
		windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		windows.CloseHandle(job)
		return
	}
	defer windows.CloseHandle(proc)
	if err := windows.AssignProcessToJobObject(job, proc); err != nil {
		windows.CloseHandle(job)
		return
	}
	jobsMu.Lock()
	jobs[cmd] = job
	jobsMu.Unlock()
}

// terminateGroup terminates the subprocess's job object, taking any
// children the converter spawned down with it. Falls back to killing
// the single process if no job was registered.
func terminateGroup(cmd *exec.Cmd) error {
	jobsMu.Lock()
	job, ok := jobs[cmd]
	delete(jobs, cmd)
	jobsMu.Unlock()
	if ok {
		err := windows.TerminateJobObject(job, 1)
		windows.CloseHandle(job)
		return err
	}
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// releaseProcess drops the job handle after a normal exit. The
// kill-on-close limit makes the close itself reap any straggler
// children the converter left behind.
func releaseProcess(cmd *exec.Cmd) {
	jobsMu.Lock()
	job, ok := jobs[cmd]
	delete(jobs, cmd)
	jobsMu.Unlock()
	if ok {
		windows.CloseHandle(job)
	}
}
