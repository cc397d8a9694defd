package runner

import "fmt"

// State is a process lifecycle stage. Transitions only move forward:
// Starting → Running → Exited|Failed. A start failure jumps straight to Failed.
type State int

const (
	Starting State = iota
	Running
	Exited
	Failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Status is a snapshot of one process's lifecycle.
type Status struct {
	State  State
	PID    int    // set once Running
	Code   int    // set when Exited
	Reason string // set when Failed
}

// Terminal reports whether the process is finished for good.
func (s Status) Terminal() bool {
	return s.State == Exited || s.State == Failed
}

func (s Status) String() string {
	switch s.State {
	case Running:
		return fmt.Sprintf("running (pid %d)", s.PID)
	case Exited:
		return fmt.Sprintf("exited with %d", s.Code)
	case Failed:
		return "failed: " + s.Reason
	default:
		return s.State.String()
	}
}

// advances reports whether moving from cur to next is a legal transition.
func advances(cur, next State) bool {
	if cur == next || cur == Exited || cur == Failed {
		return false
	}
	return next > cur
}
