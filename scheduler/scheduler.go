// Package scheduler runs the programs of an image table one after another,
// each to completion or until it is killed.
package scheduler

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/arch"
	"github.com/evanphx/batchos/boundary"
	"github.com/evanphx/batchos/config"
	"github.com/evanphx/batchos/kernel"
	"github.com/evanphx/batchos/loader"
	"github.com/evanphx/batchos/memory"
	"github.com/evanphx/batchos/syscalls"
	"github.com/evanphx/batchos/trap"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const (
	causeUnsupported = "unsupported-syscall"
	causeInterrupted = "interrupted"
)

type Scheduler struct {
	L hclog.Logger

	cfg      *config.Config
	table    *loader.Table
	kernel   *kernel.Kernel
	mem      *memory.VirtualMemory
	loader   *loader.Loader
	platform *boundary.Platform
	router   *syscalls.Router
	stack    *memory.Region
}

// New prepares the run slots, the user stack and the hart for table. Every
// error it returns is a boot error.
func New(l hclog.Logger, cfg *config.Config, table *loader.Table, k *kernel.Kernel) (*Scheduler, error) {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	mem := memory.NewVirtualMemory()

	ld := loader.NewLoader(l.Named("loader"), mem, table)
	if err := ld.Check(); err != nil {
		return nil, err
	}

	for i := 0; i < table.Count; i++ {
		img := table.Image(i)

		size := ld.SlotSize()
		if table.InPlace() {
			size = uint64(len(img.Bytes))
		}

		if err := cfg.CheckLayout(img.LoadAddress, img.LoadAddress+size); err != nil {
			return nil, errors.Wrapf(err, "image %d", i)
		}
	}

	stack, err := mem.NewRegion(cfg.StackBottom(), cfg.StackSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating user stack")
	}

	plat, err := boundary.New(l.Named("boundary"), mem)
	if err != nil {
		return nil, err
	}

	k.HeapBase = cfg.HeapBase

	return &Scheduler{
		L:        l,
		cfg:      cfg,
		table:    table,
		kernel:   k,
		mem:      mem,
		loader:   ld,
		platform: plat,
		router:   syscalls.NewRouter(l.Named("syscall"), k.Registry),
		stack:    stack,
	}, nil
}

// Platform exposes the hart driver, for diagnostics.
func (s *Scheduler) Platform() *boundary.Platform {
	return s.platform
}

// Run executes every image in table order. A program's fault never stops
// the batch; Run only returns an error when ctx is done or an image could
// not be placed in memory.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	s.kernel.Registry.Seal()

	s.L.Info("batch-start", "programs", s.table.Count, "capabilities", fmt.Sprint(s.kernel.Registry.Registered()))

	var report Report

	seq := s.table.Sequence()

	for {
		img, ok := seq.Next()
		if !ok {
			break
		}

		if err := ctx.Err(); err != nil {
			return &report, err
		}

		res, err := s.runOne(ctx, img)
		if err != nil {
			return &report, err
		}

		report.Results = append(report.Results, res)
	}

	s.L.Info("batch-complete",
		"programs", len(report.Results),
		"completed", report.Completed(),
		"killed", report.Killed())

	return &report, nil
}

func (s *Scheduler) runOne(ctx context.Context, img loader.AppImage) (Result, error) {
	res := Result{Index: img.Index, State: Loaded}

	invalidate, err := s.loader.Load(img)
	if err != nil {
		return res, err
	}

	if invalidate {
		s.platform.InvalidateICache()
		s.loader.Flushed()
	}

	s.stack.Reset()

	c := trap.ForUser(img.LoadAddress)
	c.SetReg(arch.SP, s.cfg.StackTop)

	proc := s.kernel.InitProcess(img.Index, s.mem, c)
	pctx := kernel.SetTask(ctx, &kernel.Task{Process: proc})

	if s.cfg.TimerQuantum > 0 {
		s.platform.ArmTimer(s.cfg.TimerQuantum)
	} else {
		s.platform.DisarmTimer()
	}

	start := s.platform.Cycle()
	gen := s.platform.Generation()

	s.L.Debug("program-start", "index", img.Index, "entry", fmt.Sprintf("%#x", img.LoadAddress))

	res.State = Running

	for res.State == Running {
		if ctx.Err() != nil {
			res.State = Killed
			res.Cause = causeInterrupted
			break
		}

		st := c.Run(s.platform)

		tr := trap.Classify(st)

		if tr.Kind != trap.SyscallRequested {
			res.State = Killed
			res.Cause = tr.Name()
			res.Value = tr.Value
			break
		}

		s.syscall(pctx, proc, c, &res)
	}

	s.platform.DisarmTimer()

	res.PC = c.PC
	res.Cycles = s.platform.Cycle() - start

	switch res.State {
	case Completed:
		proc.Exit(res.ExitCode)

		s.L.Info("program-completed", "index", res.Index, "code", res.ExitCode, "cycles", res.Cycles)
	case Killed:
		proc.Exit(-1)

		s.L.Error("program-killed",
			"index", res.Index,
			"cause", res.Cause,
			"addr", fmt.Sprintf("%#x", res.Value),
			"pc", fmt.Sprintf("%#x", res.PC))

		if s.L.IsTrace() {
			s.L.Trace("killed-context", "context", spew.Sdump(c))
		}
	}

	s.loader.Settle(s.platform.Generation() != gen)

	return res, nil
}

func (s *Scheduler) syscall(ctx context.Context, proc *kernel.Process, c *trap.Context, res *Result) {
	id := c.Reg(arch.A7)

	var args [6]uint64
	for i := range args {
		args[i] = c.Reg(arch.A0 + i)
	}

	out := s.router.Route(ctx, proc.Caller(), id, args)

	if out.Kind == syscalls.Completed && id == abi.SysExit {
		out = syscalls.Terminate(out.Value)
	}

	switch out.Kind {
	case syscalls.Completed:
		c.SetReg(arch.A0, out.Value)
		c.AdvancePC(arch.InstWidth)
	case syscalls.Terminated:
		res.State = Completed
		res.ExitCode = int64(out.Value)
	case syscalls.Unsupported:
		res.State = Killed
		res.Cause = causeUnsupported
		res.Syscall = id
		res.Value = id
	}
}
