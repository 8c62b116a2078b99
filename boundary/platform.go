// Package boundary is the only code that moves the hart between the kernel
// and a program. Everything that touches the hart's register file or trap
// CSRs on behalf of the kernel lives here.
package boundary

import (
	"fmt"
	"sync/atomic"

	"github.com/evanphx/batchos/arch"
	"github.com/evanphx/batchos/exec"
	"github.com/evanphx/batchos/trap"
	hclog "github.com/hashicorp/go-hclog"
)

// Platform drives a single hart on behalf of the kernel.
type Platform struct {
	L hclog.Logger

	vm *exec.VM

	// handoff plays the role of sscratch: it holds the context in flight,
	// and trap entry recovers it with one swap.
	handoff atomic.Pointer[trap.Context]
}

func New(l hclog.Logger, mem exec.Memory) (*Platform, error) {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	vm, err := exec.NewVM(l.Named("hart"), mem)
	if err != nil {
		return nil, err
	}

	return &Platform{
		L:  l,
		vm: vm,
	}, nil
}

// VM exposes the hart, for diagnostics.
func (p *Platform) VM() *exec.VM {
	return p.vm
}

func (p *Platform) InvalidateICache() {
	p.vm.InvalidateICache()
}

func (p *Platform) Generation() uint64 {
	return p.vm.Generation()
}

// ArmTimer delivers a timer interrupt once the program in flight retires
// quantum more instructions.
func (p *Platform) ArmTimer(quantum uint64) {
	p.vm.ArmTimer(quantum)
}

func (p *Platform) DisarmTimer() {
	p.vm.DisarmTimer()
}

func (p *Platform) Cycle() uint64 {
	return p.vm.Cycle()
}

func statusFor(c *trap.Context, cur uint64) uint64 {
	st := cur &^ (arch.SstatusSPP | arch.SstatusSPIE)

	if c.Privilege == arch.Supervisor {
		st |= arch.SstatusSPP
	}

	if c.InterruptsEnabled {
		st |= arch.SstatusSPIE
	}

	return st
}

// Enter runs c on the hart until it traps and returns the trap. The
// context's registers, pc and mode are updated to the state at the trap.
// Enter never fails: every fault the program can provoke comes back as a
// Status. A pc that is not instruction aligned is reported as a misaligned
// fetch without entering the program.
func (p *Platform) Enter(c *trap.Context) trap.Status {
	if c.PC%arch.InstWidth != 0 {
		p.L.Trace("trap", "cause", "misaligned-entry", "pc", fmt.Sprintf("%#x", c.PC))
		return trap.Status{Cause: arch.InstructionMisaligned, Value: c.PC}
	}

	vm := p.vm

	vm.WriteCSR(arch.CSRSstatus, statusFor(c, vm.ReadCSR(arch.CSRSstatus)))
	vm.WriteCSR(arch.CSRSepc, c.PC)

	c.Anchor.Hold(vm.X)

	if prev := p.handoff.Swap(c); prev != nil {
		panic(fmt.Sprintf("boundary: entering %p while %p is in flight", c, prev))
	}

	vm.X[arch.Zero] = 0
	for i := 1; i < arch.NumRegs; i++ {
		vm.X[i] = c.Reg(i)
	}

	vm.Sret()

	vm.Run()

	p.trapEntry()

	st := vm.ReadCSR(arch.CSRSstatus)

	c.PC = vm.ReadCSR(arch.CSRSepc)
	c.InterruptsEnabled = st&arch.SstatusSPIE != 0

	if st&arch.SstatusSPP != 0 {
		c.Privilege = arch.Supervisor
	} else {
		c.Privilege = arch.User
	}

	status := trap.Status{
		Cause: vm.ReadCSR(arch.CSRScause),
		Value: vm.ReadCSR(arch.CSRStval),
	}

	p.L.Trace("trap", "cause", status.Cause, "value", fmt.Sprintf("%#x", status.Value), "pc", fmt.Sprintf("%#x", c.PC))

	return status
}

// trapEntry runs at stvec. It recovers the running context from the
// handoff slot, spills the hart's registers into it and puts the kernel's
// registers back.
func (p *Platform) trapEntry() {
	c := p.handoff.Swap(nil)
	if c == nil {
		panic("boundary: trap taken with no context in flight")
	}

	vm := p.vm

	for i := 1; i < arch.NumRegs; i++ {
		c.SetReg(i, vm.X[i])
	}

	vm.X = c.Anchor.Release()
}

// InFlight reports whether a context currently owns the hart.
func (p *Platform) InFlight() bool {
	return p.handoff.Load() != nil
}
