//go:build !windows

package runner

import (
	"errors"
	"os/exec"
	"syscall"
)

// DefaultShell is the shell used when none is configured.
const DefaultShell = "/bin/sh"

const shellFlag = "-c"

// Each child leads its own process group so signals reach its descendants.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(cmd *exec.Cmd) error { return signalGroup(cmd, syscall.SIGTERM) }
func killGroup(cmd *exec.Cmd) error      { return signalGroup(cmd, syscall.SIGKILL) }

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// The group outlives its leader when the leader backgrounded something, so
// the leader's own exit says nothing here.
func groupAlive(cmd *exec.Cmd, _ bool) bool {
	if cmd.Process == nil {
		return false
	}
	err := syscall.Kill(-cmd.Process.Pid, 0)
	if err != nil && !errors.Is(err, syscall.EPERM) {
		return false
	}
	// Zombies still answer signal 0.
	if running, ok := groupHasRunningMember(cmd.Process.Pid); ok {
		return running
	}
	return true
}

// Shell convention: death by signal N reports 128+N.
func exitCode(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}
