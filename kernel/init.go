package kernel

import (
	"io"

	"github.com/evanphx/batchos/memory"
	"github.com/evanphx/batchos/trap"
)

// InitProcess creates the record for image index, about to run c against
// mem. The process gets the lowest free entity and the kernel's stdio.
func (k *Kernel) InitProcess(index int, mem *memory.VirtualMemory, c *trap.Context) *Process {
	proc := &Process{
		Kernel:   k,
		Index:    index,
		Mem:      mem,
		Context:  c,
		heapBase: k.HeapBase,
		brk:      k.HeapBase,
		status:   Running,
	}

	k.processes.AssignEntity(proc)

	proc.HookupStdio(io.NopCloser(k.stdin), Shared(k.stdout), Shared(k.stderr))

	k.L.Trace("process-init", "entity", proc.Entity, "index", index, "pc", c.PC)

	return proc
}
