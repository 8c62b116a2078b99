// Package syscalls maps syscall numbers onto the capability registry and
// provides the kernel's own capability implementations.
package syscalls

import (
	"context"
	"fmt"

	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

type SysArgs struct {
	Index uint64
	Args  SyscallRequest
}

type SyscallRequest struct {
	R0, R1, R2, R3, R4, R5 uint64
}

// Func forwards one syscall to its category's implementation. It is only
// called when that category is registered.
type Func func(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64

type Entry struct {
	Name     string
	Category kernel.Category
	Call     Func
}

const MaxSyscall = 2048

// Syscalls is indexed by syscall number. Each category file fills in its
// entries from init.
var Syscalls [MaxSyscall]Entry

// Name returns the name of syscall id, or a placeholder for unknown ids.
func Name(id uint64) string {
	if id < MaxSyscall && Syscalls[id].Call != nil {
		return Syscalls[id].Name
	}

	return fmt.Sprintf("sys_%d", id)
}
