package syscalls

import (
	"context"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// BatchProcess is process control for a kernel that runs one program at a
// time: a program can leave and ask who it is, but never has children.
type BatchProcess struct {
	kernel.UnimplementedProcess
}

// Exit hands the code back; the scheduler turns it into termination.
func (BatchProcess) Exit(ctx context.Context, c kernel.Caller, code int64) int64 {
	return code
}

func (BatchProcess) Getpid(ctx context.Context, c kernel.Caller) int64 {
	return int64(c.Entity)
}

func (BatchProcess) Waitpid(ctx context.Context, c kernel.Caller, pid int64, status uint64) int64 {
	return -abi.ECHILD
}

func sysExit(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Process()
	return svc.Exit(ctx, c, int64(args.Args.R0))
}

func sysGetpid(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Process()
	return svc.Getpid(ctx, c)
}

func sysFork(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Process()
	return svc.Fork(ctx, c)
}

func sysExec(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Process()
	return svc.Exec(ctx, c, args.Args.R0, args.Args.R1)
}

func sysWaitpid(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Process()
	return svc.Waitpid(ctx, c, int64(args.Args.R0), args.Args.R1)
}

func init() {
	Syscalls[abi.SysExit] = Entry{"exit", kernel.CategoryProcess, sysExit}
	Syscalls[abi.SysGetpid] = Entry{"getpid", kernel.CategoryProcess, sysGetpid}
	Syscalls[abi.SysFork] = Entry{"fork", kernel.CategoryProcess, sysFork}
	Syscalls[abi.SysExec] = Entry{"exec", kernel.CategoryProcess, sysExec}
	Syscalls[abi.SysWaitpid] = Entry{"waitpid", kernel.CategoryProcess, sysWaitpid}
}
