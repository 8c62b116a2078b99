package syscalls

import (
	"context"
	"io"

	"golang.org/x/sys/unix"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// ConsoleIO serves the standard descriptors every program starts with.
// There is no filesystem: open finds nothing.
type ConsoleIO struct {
	kernel.UnimplementedIO

	L hclog.Logger
}

func (c *ConsoleIO) Write(ctx context.Context, caller kernel.Caller, fd int, buf, n uint64) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	if fd != abi.Stdout && fd != abi.Stderr {
		return -1
	}

	f, ok := task.GetFile(fd)
	if !ok {
		return -1
	}

	w, ok := f.Writer()
	if !ok {
		return -abi.EBADF
	}

	if n == 0 {
		return 0
	}

	data, err := task.Mem.Project(buf, n)
	if err != nil {
		c.L.Debug("error reading data from userspace", "error", err, "entity", caller.Entity)
		return -abi.EFAULT
	}

	wn, err := w.Write(data)
	if err != nil {
		c.L.Error("error writing data", "error", err, "fd", fd)
		return -abi.EIO
	}

	return int64(wn)
}

func (c *ConsoleIO) Open(ctx context.Context, caller kernel.Caller, path uint64, flags int) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	name, err := task.ReadCString(path)
	if err != nil {
		c.L.Debug("error reading path from userspace", "error", err, "entity", caller.Entity)
		return -abi.EFAULT
	}

	c.L.Debug("open", "path", string(name), "flags", flags)

	return -abi.ENOENT
}

func (c *ConsoleIO) Read(ctx context.Context, caller kernel.Caller, fd int, buf, n uint64) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	f, ok := task.GetFile(fd)
	if !ok {
		return -abi.EBADF
	}

	r, ok := f.Reader()
	if !ok {
		return -abi.EBADF
	}

	if n == 0 {
		return 0
	}

	dst, err := task.Mem.Project(buf, n)
	if err != nil {
		return -abi.EFAULT
	}

	rn, err := r.Read(dst)
	if err != nil {
		if err == io.EOF {
			return 0
		}

		if rn == 0 || err != io.ErrUnexpectedEOF {
			c.L.Error("error reading", "error", err, "fd", fd)
			return -abi.EIO
		}
	}

	return int64(rn)
}

func (c *ConsoleIO) Close(ctx context.Context, caller kernel.Caller, fd int) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	err := task.CloseFile(fd)
	if err != nil {
		if errors.Cause(err) == kernel.ErrUnknownFile {
			return -abi.EBADF
		}

		c.L.Error("error closing fd", "error", err, "fd", fd)
		return -abi.EIO
	}

	return 0
}

func (c *ConsoleIO) Ioctl(ctx context.Context, caller kernel.Caller, fd int, cmd, arg uint64) int64 {
	task, ok := kernel.GetTask(ctx)
	if !ok {
		return -abi.ENOSYS
	}

	file, ok := task.GetFile(fd)
	if !ok {
		return -abi.EBADF
	}

	switch cmd {
	case abi.TIOCGWINSZ:
		hfd, ok := file.Fd()
		if !ok {
			return -abi.ENOTTY
		}

		ws, err := unix.IoctlGetWinsize(int(hfd), unix.TIOCGWINSZ)
		if err != nil {
			return -abi.ENOTTY
		}

		err = task.CopyOut(arg, ws)
		if err != nil {
			c.L.Debug("error copying data to userspace", "error", err)
			return -abi.EFAULT
		}

		return 0
	default:
		return -abi.EINVAL
	}
}

func sysRead(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.IO()
	return svc.Read(ctx, c, int(args.Args.R0), args.Args.R1, args.Args.R2)
}

func sysWrite(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.IO()
	return svc.Write(ctx, c, int(args.Args.R0), args.Args.R1, args.Args.R2)
}

func sysOpen(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.IO()
	return svc.Open(ctx, c, args.Args.R0, int(args.Args.R1))
}

func sysClose(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.IO()
	return svc.Close(ctx, c, int(args.Args.R0))
}

func sysIoctl(ctx context.Context, l hclog.Logger, reg *kernel.Registry, c kernel.Caller, args SysArgs) int64 {
	svc, _ := reg.IO()
	return svc.Ioctl(ctx, c, int(args.Args.R0), args.Args.R1, args.Args.R2)
}

func init() {
	Syscalls[abi.SysRead] = Entry{"read", kernel.CategoryIO, sysRead}
	Syscalls[abi.SysWrite] = Entry{"write", kernel.CategoryIO, sysWrite}
	Syscalls[abi.SysOpen] = Entry{"open", kernel.CategoryIO, sysOpen}
	Syscalls[abi.SysClose] = Entry{"close", kernel.CategoryIO, sysClose}
	Syscalls[abi.SysIoctl] = Entry{"ioctl", kernel.CategoryIO, sysIoctl}
}
