package syscalls

import "fmt"

type OutcomeKind int

const (
	Completed OutcomeKind = iota
	Terminated
	Unsupported
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Terminated:
		return "terminated"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Outcome is the result of routing a syscall. Value is the return value
// for Completed, the exit code for Terminated and the syscall id for
// Unsupported.
type Outcome struct {
	Kind  OutcomeKind
	Value uint64
}

func Complete(v uint64) Outcome {
	return Outcome{Kind: Completed, Value: v}
}

func Terminate(code uint64) Outcome {
	return Outcome{Kind: Terminated, Value: code}
}

func Unsupport(id uint64) Outcome {
	return Outcome{Kind: Unsupported, Value: id}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Unsupported:
		return fmt.Sprintf("unsupported(%s)", Name(o.Value))
	default:
		return fmt.Sprintf("%s(%d)", o.Kind, int64(o.Value))
	}
}
