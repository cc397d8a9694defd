//go:build windows

package runner

import (
	"errors"
	"os"
	"os/exec"
)

// DefaultShell is the shell used when none is configured.
const DefaultShell = "cmd.exe"

const shellFlag = "/C"

func setProcessGroup(*exec.Cmd) {}

// Windows has no SIGTERM; both paths kill the process.
func terminateGroup(cmd *exec.Cmd) error { return killGroup(cmd) }

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Without process groups only the leader is tracked.
func groupAlive(cmd *exec.Cmd, waited bool) bool { return cmd.Process != nil && !waited }

func exitCode(err *exec.ExitError) int { return err.ExitCode() }
