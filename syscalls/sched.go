package syscalls

import (
	"context"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// Uniprocessor is scheduling with a single resident program: yielding
// returns straight to the caller.
type Uniprocessor struct{}

func (Uniprocessor) Yield(ctx context.Context, c kernel.Caller) int64 {
	return 0
}

func sysYield(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Scheduling()
	return svc.Yield(ctx, c)
}

func init() {
	Syscalls[abi.SysYield] = Entry{"yield", kernel.CategoryScheduling, sysYield}
}
