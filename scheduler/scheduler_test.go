package scheduler

import (
	"bytes"
	"context"
	"testing"

	"github.com/evanphx/batchos/abi"
	"github.com/evanphx/batchos/arch"
	"github.com/evanphx/batchos/asm"
	"github.com/evanphx/batchos/config"
	"github.com/evanphx/batchos/console"
	"github.com/evanphx/batchos/kernel"
	"github.com/evanphx/batchos/loader"
	"github.com/evanphx/batchos/log"
	"github.com/evanphx/batchos/syscalls"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

const base = 0x1000

type batch struct {
	sched *Scheduler
	out   *console.Recorder
	logs  *bytes.Buffer
	reg   *kernel.Registry
}

func newBatch(t *testing.T, cfg *config.Config, disabled []kernel.Category, images ...[]byte) *batch {
	if cfg == nil {
		cfg = config.Default()
		cfg.Base = base
	}

	var logs bytes.Buffer
	l := log.Capture(&logs, hclog.Info)

	reg := kernel.NewRegistry()
	require.NoError(t, syscalls.RegisterDefaults(reg, l, disabled))

	k, err := kernel.NewKernel(l.Named("kernel"), reg)
	require.NoError(t, err)

	out := &console.Recorder{}
	k.SetStdio(nil, console.NewWriter(out), console.NewWriter(out))

	table, err := loader.Locate(loader.BuildTable(cfg.Base, cfg.Stride, images...))
	require.NoError(t, err)

	sched, err := New(l, cfg, table, k)
	require.NoError(t, err)

	return &batch{sched: sched, out: out, logs: &logs, reg: reg}
}

func exit(p *asm.Program, code int32) *asm.Program {
	return p.Li(arch.A0, code).Li(arch.A7, abi.SysExit).Emit(asm.ECALL)
}

// hello writes msg to stdout, then exits with code.
func hello(msg string, code int32) []byte {
	var p asm.Program

	p.Li(arch.A0, abi.Stdout)

	at := p.PC()
	p.Emit(asm.AUIPC(arch.A1, 0), asm.NOP)

	p.Li(arch.A2, int32(len(msg))).Li(arch.A7, abi.SysWrite).Emit(asm.ECALL)
	exit(&p, code)

	off := p.Data([]byte(msg))
	p.Set(int(at/4)+1, asm.ADDI(arch.A1, arch.A1, off-at))

	return p.Bytes()
}

func TestScheduler(t *testing.T) {
	n := neko.Modern(t)

	n.It("runs every program in order and survives a fault", func(t *testing.T) {
		var bad asm.Program
		bad.Emit(asm.NOP, 0xffffffff)

		b := newBatch(t, nil, nil, hello("hello", 0), bad.Bytes())

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, "hello", b.out.String())

		require.Len(t, rep.Results, 2)

		require.Equal(t, Completed, rep.Results[0].State)
		require.Equal(t, int64(0), rep.Results[0].ExitCode)

		require.Equal(t, Killed, rep.Results[1].State)
		require.Equal(t, "illegal-instruction", rep.Results[1].Cause)
		require.Equal(t, uint64(0xffffffff), rep.Results[1].Value)
		require.Equal(t, uint64(base+4), rep.Results[1].PC)

		require.Equal(t, 1, rep.Completed())
		require.Equal(t, 1, rep.Killed())

		require.Contains(t, b.logs.String(), "program-completed")
		require.Contains(t, b.logs.String(), "program-killed")
		require.Contains(t, rep.Summary(), "2 programs: 1 completed, 1 killed")
	})

	n.It("runs the program after a killed one", func(t *testing.T) {
		var bad asm.Program
		bad.Emit(asm.LD(arch.A0, 0, 8))

		b := newBatch(t, nil, nil, bad.Bytes(), hello("next", 3))

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, Killed, rep.Results[0].State)
		require.Equal(t, "load-access-fault", rep.Results[0].Cause)

		require.Equal(t, Completed, rep.Results[1].State)
		require.Equal(t, int64(3), rep.Results[1].ExitCode)
		require.Equal(t, "next", b.out.String())
	})

	n.It("returns syscall results in a0", func(t *testing.T) {
		var p asm.Program

		p.Li(arch.A0, abi.Stdout).Li(arch.A1, base).Li(arch.A2, 4).Li(arch.A7, abi.SysWrite).Emit(asm.ECALL)
		p.Li(arch.A7, abi.SysExit).Emit(asm.ECALL)

		b := newBatch(t, nil, nil, p.Bytes())

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, Completed, rep.Results[0].State)
		require.Equal(t, int64(4), rep.Results[0].ExitCode)
		require.Len(t, b.out.Bytes(), 4)
	})

	n.It("kills a program that asks for an unknown syscall", func(t *testing.T) {
		var p asm.Program

		p.Li(arch.A7, 5).Emit(asm.ECALL)
		exit(&p, 0)

		b := newBatch(t, nil, nil, p.Bytes())

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		res := rep.Results[0]
		require.Equal(t, Killed, res.State)
		require.Equal(t, "unsupported-syscall", res.Cause)
		require.Equal(t, uint64(5), res.Syscall)
	})

	n.It("kills a program whose capability is not registered", func(t *testing.T) {
		var p asm.Program
		exit(&p, 7)

		b := newBatch(t, nil, []kernel.Category{kernel.CategoryProcess}, p.Bytes())

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, Killed, rep.Results[0].State)
		require.Equal(t, "unsupported-syscall", rep.Results[0].Cause)
		require.Equal(t, uint64(abi.SysExit), rep.Results[0].Syscall)
	})

	n.It("stops a looping program with the timer", func(t *testing.T) {
		var spin asm.Program
		spin.Emit(asm.JAL(0, 0))

		cfg := config.Default()
		cfg.Base = base
		cfg.TimerQuantum = 1000

		b := newBatch(t, cfg, nil, spin.Bytes(), hello("after", 0))

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, Killed, rep.Results[0].State)
		require.Equal(t, "supervisor-timer", rep.Results[0].Cause)
		require.Equal(t, uint64(base), rep.Results[0].PC)

		require.Equal(t, Completed, rep.Results[1].State)
		require.Equal(t, "after", b.out.String())
	})

	n.It("gives every program a fresh stack", func(t *testing.T) {
		var first asm.Program
		first.Li(arch.T0, 1234).Emit(asm.SD(arch.T0, arch.SP, -8))
		exit(&first, 0)

		var second asm.Program
		second.Emit(asm.LD(arch.T0, arch.SP, -8), asm.ADDI(arch.A0, arch.T0, 0))
		second.Li(arch.A7, abi.SysExit).Emit(asm.ECALL)

		var top asm.Program
		top.Emit(asm.ADDI(arch.A0, arch.SP, 0))
		top.Li(arch.A7, abi.SysExit).Emit(asm.ECALL)

		b := newBatch(t, nil, nil, first.Bytes(), second.Bytes(), top.Bytes())

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, int64(0), rep.Results[1].ExitCode)
		require.Equal(t, int64(config.DefaultStackTop), rep.Results[2].ExitCode)
	})

	n.It("loads each program at its own slot when a stride is set", func(t *testing.T) {
		cfg := config.Default()
		cfg.Base = 0x10000
		cfg.Stride = 0x10000

		var p asm.Program
		p.Emit(asm.AUIPC(arch.A0, 0))
		p.Li(arch.A7, abi.SysExit).Emit(asm.ECALL)

		b := newBatch(t, cfg, nil, p.Bytes(), p.Bytes())

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, int64(0x10000), rep.Results[0].ExitCode)
		require.Equal(t, int64(0x20000), rep.Results[1].ExitCode)
	})

	n.It("flushes again after a program that fenced its own slot", func(t *testing.T) {
		var p asm.Program
		p.Emit(asm.FENCEI)
		exit(&p, 0)

		b := newBatch(t, nil, nil, p.Bytes(), p.Bytes())

		gen := b.sched.Platform().Generation()

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, rep.Completed())

		// two loads and two fence.i
		require.Equal(t, gen+4, b.sched.Platform().Generation())
	})

	n.It("kills a program whose entry is not instruction aligned", func(t *testing.T) {
		cfg := config.Default()
		cfg.Base = base + 2

		var p asm.Program
		exit(&p, 0)

		b := newBatch(t, cfg, nil, p.Bytes())

		rep, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, Killed, rep.Results[0].State)
		require.Equal(t, "instruction-misaligned", rep.Results[0].Cause)
		require.Equal(t, uint64(base+2), rep.Results[0].Value)
	})

	n.It("seals the registry once the batch starts", func(t *testing.T) {
		var p asm.Program
		exit(&p, 0)

		b := newBatch(t, nil, nil, p.Bytes())

		_, err := b.sched.Run(context.Background())
		require.NoError(t, err)

		require.True(t, b.reg.Sealed())
		require.ErrorIs(t, b.reg.InitSignal(kernel.UnimplementedSignal{}), kernel.ErrSealed)
	})

	n.It("stops between programs when the context is done", func(t *testing.T) {
		var p asm.Program
		exit(&p, 0)

		b := newBatch(t, nil, nil, p.Bytes())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rep, err := b.sched.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, rep.Results)
	})

	n.It("refuses images that overlap the stack", func(t *testing.T) {
		cfg := config.Default()
		cfg.Base = cfg.StackBottom() - 0x1000

		var p asm.Program
		exit(&p, 0)

		table, err := loader.Locate(loader.BuildTable(cfg.Base, 0, p.Bytes()))
		require.NoError(t, err)

		k, err := kernel.NewKernel(nil, nil)
		require.NoError(t, err)

		_, err = New(nil, cfg, table, k)
		require.ErrorIs(t, err, config.ErrStackOverlap)
	})

	n.Meow()
}
