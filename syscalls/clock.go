package syscalls

import (
	"context"
	"time"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

type timespec struct {
	Sec  int64
	NSec int64
}

const (
	ClockRealtime  = 0
	ClockMonotonic = 1
	ClockBoottime  = 7
)

// HostClock serves time from the host clock, relative to when it was
// created for the monotonic clocks.
type HostClock struct {
	start time.Time
}

func NewHostClock() *HostClock {
	return &HostClock{start: time.Now()}
}

func (h *HostClock) GetTime(ctx context.Context, c kernel.Caller) int64 {
	return time.Since(h.start).Milliseconds()
}

func (h *HostClock) ClockGettime(ctx context.Context, c kernel.Caller, clk int, ptr uint64) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	var ts timespec

	switch clk {
	case ClockRealtime:
		t := time.Now()
		ts = timespec{
			Sec:  t.Unix(),
			NSec: int64(t.Nanosecond()),
		}
	case ClockMonotonic, ClockBoottime:
		ns := time.Since(h.start).Nanoseconds()
		ts = timespec{
			Sec:  ns / int64(time.Second),
			NSec: ns % int64(time.Second),
		}
	default:
		return -abi.EINVAL
	}

	err := task.CopyOut(ptr, ts)
	if err != nil {
		return -abi.EFAULT
	}

	return 0
}

func (h *HostClock) Nanosleep(ctx context.Context, c kernel.Caller, req, rem uint64) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	var ts timespec

	err := task.CopyIn(req, &ts)
	if err != nil {
		return -abi.EFAULT
	}

	if ts.Sec < 0 || ts.NSec < 0 || ts.NSec >= int64(time.Second) {
		return -abi.EINVAL
	}

	dur := time.Duration(ts.Sec)*time.Second + time.Duration(ts.NSec)

	timer := time.NewTimer(dur)
	defer timer.Stop()

	began := time.Now()

	select {
	case <-timer.C:
		return 0
	case <-ctx.Done():
		if rem != 0 {
			left := dur - time.Since(began)
			if left < 0 {
				left = 0
			}

			task.CopyOut(rem, timespec{
				Sec:  int64(left / time.Second),
				NSec: int64(left % time.Second),
			})
		}

		return -abi.EINTR
	}
}

func sysGetTime(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Clock()
	return svc.GetTime(ctx, c)
}

func sysClockGettime(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Clock()
	return svc.ClockGettime(ctx, c, int(args.Args.R0), args.Args.R1)
}

func sysNanosleep(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.Clock()
	return svc.Nanosleep(ctx, c, args.Args.R0, args.Args.R1)
}

func init() {
	Syscalls[abi.SysGetTime] = Entry{"get_time", kernel.CategoryClock, sysGetTime}
	Syscalls[abi.SysClockGettime] = Entry{"clock_gettime", kernel.CategoryClock, sysClockGettime}
	Syscalls[abi.SysNanosleep] = Entry{"nanosleep", kernel.CategoryClock, sysNanosleep}
}
