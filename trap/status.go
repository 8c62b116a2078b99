package trap

import (
	"fmt"

	"github.com/evanphx/batchos/arch"
)

// Status is what the transition primitive reports when a context traps:
// the raw cause and its auxiliary value (faulting address or instruction).
type Status struct {
	Cause uint64
	Value uint64
}

type Kind int

const (
	SyscallRequested Kind = iota
	Exception
	Interrupt
)

func (k Kind) String() string {
	switch k {
	case SyscallRequested:
		return "syscall"
	case Exception:
		return "exception"
	case Interrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Trap is a classified Status. Code is the exception or interrupt number.
type Trap struct {
	Kind  Kind
	Code  uint64
	Value uint64
}

var exceptionNames = map[uint64]string{
	arch.InstructionMisaligned:  "instruction-misaligned",
	arch.InstructionAccessFault: "instruction-access-fault",
	arch.IllegalInstruction:     "illegal-instruction",
	arch.Breakpoint:             "breakpoint",
	arch.LoadMisaligned:         "load-misaligned",
	arch.LoadAccessFault:        "load-access-fault",
	arch.StoreMisaligned:        "store-misaligned",
	arch.StoreAccessFault:       "store-access-fault",
	arch.UserEnvCall:            "user-ecall",
	arch.SupervisorEnvCall:      "supervisor-ecall",
	arch.InstructionPageFault:   "instruction-page-fault",
	arch.LoadPageFault:          "load-page-fault",
	arch.StorePageFault:         "store-page-fault",
}

var interruptNames = map[uint64]string{
	arch.SupervisorSoftware: "supervisor-software",
	arch.SupervisorTimer:    "supervisor-timer",
	arch.SupervisorExternal: "supervisor-external",
}

// Classify sorts a Status into exactly one Kind.
func Classify(s Status) Trap {
	if s.Cause&arch.CauseInterrupt != 0 {
		return Trap{Kind: Interrupt, Code: s.Cause &^ arch.CauseInterrupt, Value: s.Value}
	}

	switch s.Cause {
	case arch.UserEnvCall, arch.SupervisorEnvCall:
		return Trap{Kind: SyscallRequested, Code: s.Cause}
	default:
		return Trap{Kind: Exception, Code: s.Cause, Value: s.Value}
	}
}

// Name is the short name of the exception or interrupt.
func (t Trap) Name() string {
	var (
		name string
		ok   bool
	)

	if t.Kind == Interrupt {
		name, ok = interruptNames[t.Code]
	} else {
		name, ok = exceptionNames[t.Code]
	}

	if !ok {
		return fmt.Sprintf("%s-%d", t.Kind, t.Code)
	}

	return name
}

func (t Trap) String() string {
	return fmt.Sprintf("%s %s (value=%#x)", t.Kind, t.Name(), t.Value)
}
