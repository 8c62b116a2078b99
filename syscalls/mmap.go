package syscalls

import (
	"context"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// RegionMemory gives programs a heap through brk and anonymous mappings
// through mmap. Address hints, protections and flags are ignored.
type RegionMemory struct {
	L hclog.Logger
}

func (m *RegionMemory) Brk(ctx context.Context, c kernel.Caller, addr uint64) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	cur, err := task.Brk(addr)
	if err != nil {
		m.L.Debug("brk refused", "error", err, "entity", c.Entity)
	}

	return int64(cur)
}

func (m *RegionMemory) Mmap(ctx context.Context, c kernel.Caller, addr, length uint64, prot, flags int) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	if length == 0 {
		return -abi.EINVAL
	}

	start, err := task.Map(length)
	if err != nil {
		m.L.Debug("mmap refused", "error", err, "entity", c.Entity, "length", length)
		return -abi.ENOMEM
	}

	return int64(start)
}

func (m *RegionMemory) Munmap(ctx context.Context, c kernel.Caller, addr, length uint64) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	if err := task.Unmap(addr, length); err != nil {
		return -abi.EINVAL
	}

	return 0
}

func sysBrk(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Memory()
	return svc.Brk(ctx, c, args.Args.R0)
}

func sysMmap(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Memory()
	return svc.Mmap(ctx, c, args.Args.R0, args.Args.R1, int(args.Args.R2), int(args.Args.R3))
}

func sysMunmap(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Memory()
	return svc.Munmap(ctx, c, args.Args.R0, args.Args.R1)
}

func init() {
	Syscalls[abi.SysBrk] = Entry{"brk", kernel.CategoryMemory, sysBrk}
	Syscalls[abi.SysMmap] = Entry{"mmap", kernel.CategoryMemory, sysMmap}
	Syscalls[abi.SysMunmap] = Entry{"munmap", kernel.CategoryMemory, sysMunmap}
}
