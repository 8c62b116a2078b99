package syscalls

import (
	"context"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

func sysKill(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Signal()
	return svc.Kill(ctx, c, int64(args.Args.R0), int(args.Args.R1))
}

func sysSigaction(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Signal()
	return svc.Sigaction(ctx, c, int(args.Args.R0), args.Args.R1, args.Args.R2)
}

func sysSigprocmask(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Signal()
	return svc.Sigprocmask(ctx, c, int(args.Args.R0), args.Args.R1, args.Args.R2)
}

func init() {
	Syscalls[abi.SysKill] = Entry{"kill", kernel.CategorySignal, sysKill}
	Syscalls[abi.SysSigaction] = Entry{"sigaction", kernel.CategorySignal, sysSigaction}
	Syscalls[abi.SysSigprocmask] = Entry{"sigprocmask", kernel.CategorySignal, sysSigprocmask}
}
