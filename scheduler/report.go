package scheduler

import (
	"fmt"
	"strings"
)

type State int

const (
	Loaded State = iota
	Running
	Completed
	Killed
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// Result is what became of one program.
type Result struct {
	Index int
	State State

	// ExitCode is set for Completed programs.
	ExitCode int64

	// Cause, Value and PC describe the trap that killed a program. Syscall
	// is the id of an unsupported syscall.
	Cause   string
	Value   uint64
	PC      uint64
	Syscall uint64

	Cycles uint64
}

func (r Result) String() string {
	switch r.State {
	case Completed:
		return fmt.Sprintf("app %d: completed, exit code %d", r.Index, r.ExitCode)
	case Killed:
		return fmt.Sprintf("app %d: killed, %s at pc %#x (value %#x)", r.Index, r.Cause, r.PC, r.Value)
	default:
		return fmt.Sprintf("app %d: %s", r.Index, r.State)
	}
}

type Report struct {
	Results []Result
}

func (r *Report) count(s State) int {
	var n int

	for _, res := range r.Results {
		if res.State == s {
			n++
		}
	}

	return n
}

func (r *Report) Completed() int {
	return r.count(Completed)
}

func (r *Report) Killed() int {
	return r.count(Killed)
}

func (r *Report) Summary() string {
	var sb strings.Builder

	for _, res := range r.Results {
		sb.WriteString(res.String())
		sb.WriteByte('\n')
	}

	fmt.Fprintf(&sb, "%d programs: %d completed, %d killed\n", len(r.Results), r.Completed(), r.Killed())

	return sb.String()
}
