package syscalls

import (
	"context"

	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// Router answers syscalls from the capabilities in a registry.
type Router struct {
	L        hclog.Logger
	Registry *kernel.Registry
}

func NewRouter(l hclog.Logger, reg *kernel.Registry) *Router {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	return &Router{
		L:        l,
		Registry: reg,
	}
}

// Route runs syscall id for caller. Unknown ids and ids whose category has
// no implementation are Unsupported whatever the arguments. Route itself
// never terminates a program; exit comes back as Completed.
func (r *Router) Route(ctx context.Context, caller kernel.Caller, id uint64, args [6]uint64) Outcome {
	if id >= MaxSyscall {
		r.L.Debug("syscall-unknown", "entity", caller.Entity, "id", id)
		return Unsupport(id)
	}

	ent := &Syscalls[id]

	if ent.Call == nil {
		r.L.Debug("syscall-unknown", "entity", caller.Entity, "id", id)
		return Unsupport(id)
	}

	if !r.Registry.Has(ent.Category) {
		r.L.Debug("syscall-unregistered", "entity", caller.Entity, "name", ent.Name, "category", ent.Category)
		return Unsupport(id)
	}

	sa := SysArgs{
		Index: id,
		Args: SyscallRequest{
			R0: args[0], R1: args[1], R2: args[2],
			R3: args[3], R4: args[4], R5: args[5],
		},
	}

	ret := ent.Call(ctx, r.L, r.Registry, caller, sa)

	r.L.Trace("syscall", "entity", caller.Entity, "flow", caller.Flow, "name", ent.Name,
		"a0", args[0], "a1", args[1], "a2", args[2], "ret", ret)

	return Complete(uint64(ret))
}
