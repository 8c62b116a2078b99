package syscalls

import (
	"context"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

func sysThreadCreate(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Thread()
	return svc.ThreadCreate(ctx, c, args.Args.R0, args.Args.R1)
}

func sysGettid(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Thread()
	return svc.Gettid(ctx, c)
}

func sysWaittid(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Thread()
	return svc.Waittid(ctx, c, int64(args.Args.R0))
}

func sysMutexCreate(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Sync()
	return svc.MutexCreate(ctx, c, args.Args.R0 != 0)
}

func sysMutexLock(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Sync()
	return svc.MutexLock(ctx, c, int64(args.Args.R0))
}

func sysMutexUnlock(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Sync()
	return svc.MutexUnlock(ctx, c, int64(args.Args.R0))
}

func sysSemaphoreCreate(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Sync()
	return svc.SemaphoreCreate(ctx, c, int64(args.Args.R0))
}

func sysSemaphoreUp(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Sync()
	return svc.SemaphoreUp(ctx, c, int64(args.Args.R0))
}

func sysSemaphoreDown(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Sync()
	return svc.SemaphoreDown(ctx, c, int64(args.Args.R0))
}

func init() {
	Syscalls[abi.SysThreadCreate] = Entry{"thread_create", kernel.CategoryThread, sysThreadCreate}
	Syscalls[abi.SysGettid] = Entry{"gettid", kernel.CategoryThread, sysGettid}
	Syscalls[abi.SysWaittid] = Entry{"waittid", kernel.CategoryThread, sysWaittid}

	Syscalls[abi.SysMutexCreate] = Entry{"mutex_create", kernel.CategorySync, sysMutexCreate}
	Syscalls[abi.SysMutexLock] = Entry{"mutex_lock", kernel.CategorySync, sysMutexLock}
	Syscalls[abi.SysMutexUnlock] = Entry{"mutex_unlock", kernel.CategorySync, sysMutexUnlock}
	Syscalls[abi.SysSemaphoreCreate] = Entry{"semaphore_create", kernel.CategorySync, sysSemaphoreCreate}
	Syscalls[abi.SysSemaphoreUp] = Entry{"semaphore_up", kernel.CategorySync, sysSemaphoreUp}
	Syscalls[abi.SysSemaphoreDown] = Entry{"semaphore_down", kernel.CategorySync, sysSemaphoreDown}
}
