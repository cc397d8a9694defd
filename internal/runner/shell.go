package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
)

// ShellSpawner runs commands through the platform shell as "<shell> -c <command>".
type ShellSpawner struct {
	Shell string   // defaults to DefaultShell
	Dir   string   // optional working directory
	Env   []string // optional environment; nil inherits the supervisor's
}

// Spawn starts command with its stdout and stderr wired to pipes the
// returned handle reads from.
func (s ShellSpawner) Spawn(_ context.Context, command string) (Handle, error) {
	shell := s.Shell
	if shell == "" {
		shell = DefaultShell
	}
	// #nosec G204 -- running operator-declared commands is the point.
	cmd := exec.Command(shell, shellFlag, command)
	cmd.Dir = s.Dir
	if s.Env != nil {
		cmd.Env = s.Env
	}
	setProcessGroup(cmd)

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, err
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	startErr := cmd.Start()
	// The child holds its own copies of the write ends.
	_ = outW.Close()
	_ = errW.Close()
	if startErr != nil {
		_ = outR.Close()
		_ = errR.Close()
		return nil, startErr
	}
	return &shellHandle{cmd: cmd, stdout: outR, stderr: errR}, nil
}

type shellHandle struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File

	waited    atomic.Bool
	closeOnce sync.Once
}

func (h *shellHandle) PID() int          { return h.cmd.Process.Pid }
func (h *shellHandle) Stdout() io.Reader { return h.stdout }
func (h *shellHandle) Stderr() io.Reader { return h.stderr }

func (h *shellHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	h.waited.Store(true)
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitCode(exitErr), nil
	}
	return -1, err
}

func (h *shellHandle) Terminate() error { return terminateGroup(h.cmd) }
func (h *shellHandle) Kill() error      { return killGroup(h.cmd) }
func (h *shellHandle) Alive() bool      { return groupAlive(h.cmd, h.waited.Load()) }

func (h *shellHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = errors.Join(h.stdout.Close(), h.stderr.Close())
	})
	return err
}
