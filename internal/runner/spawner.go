package runner

import (
	"context"
	"io"
)

// Spawner starts one OS process per command. It is the seam between the
// runner and the platform so tests can substitute a fake.
type Spawner interface {
	Spawn(ctx context.Context, command string) (Handle, error)
}

// Handle controls a started process.
type Handle interface {
	PID() int
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the process exits and returns its exit code. The
	// error is non-nil only when the exit status could not be obtained.
	Wait() (int, error)
	// Terminate asks the process group to stop. It stays valid after Wait
	// returns, so descendants the leader left behind can still be reached.
	Terminate() error
	// Kill forcibly stops the process group.
	Kill() error
	// Alive reports whether any member of the process group still exists.
	Alive() bool
	// Close releases the output streams. Blocked reads return afterwards.
	Close() error
}
