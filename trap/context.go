// Package trap defines the execution context of a program and the
// classification of the traps that hand control back to the kernel.
package trap

import (
	"fmt"

	"github.com/evanphx/batchos/arch"
)

// Anchor holds the kernel's register file while a context is running. It is
// only touched by the platform boundary during a transition.
type Anchor struct {
	regs [arch.NumRegs]uint64
	held bool
}

// Hold records the kernel register file before entering the context.
func (a *Anchor) Hold(regs [arch.NumRegs]uint64) {
	if a.held {
		panic("trap: anchor already holds a kernel frame")
	}

	a.regs = regs
	a.held = true
}

// Release returns the kernel register file saved by Hold.
func (a *Anchor) Release() [arch.NumRegs]uint64 {
	if !a.held {
		panic("trap: anchor released without a kernel frame")
	}

	a.held = false
	return a.regs
}

// Held reports whether a kernel frame is parked in the anchor, which is
// only the case while the context is running.
func (a *Anchor) Held() bool {
	return a.held
}

// Context is the register file and mode of one program.
type Context struct {
	Anchor Anchor

	// Regs holds x1..x31; x0 is hardwired to zero and not stored.
	Regs [arch.NumRegs - 1]uint64

	PC                uint64
	Privilege         arch.Privilege
	InterruptsEnabled bool
}

// ForUser returns a context that starts executing at entry in user mode
// with interrupts enabled.
func ForUser(entry uint64) *Context {
	return &Context{
		PC:                entry,
		Privilege:         arch.User,
		InterruptsEnabled: true,
	}
}

// ForSupervisor returns a context that starts executing at entry in
// supervisor mode, for nested kernel code.
func ForSupervisor(entry uint64) *Context {
	return &Context{
		PC:                entry,
		Privilege:         arch.Supervisor,
		InterruptsEnabled: true,
	}
}

// Reg returns general register i. Register 0 always reads as zero.
func (c *Context) Reg(i int) uint64 {
	if i <= 0 || i >= arch.NumRegs {
		return 0
	}

	return c.Regs[i-1]
}

// SetReg sets general register i. Writes to register 0 are dropped.
func (c *Context) SetReg(i int, v uint64) {
	if i <= 0 || i >= arch.NumRegs {
		return
	}

	c.Regs[i-1] = v
}

// AdvancePC moves the program counter past the instruction that trapped.
// The scheduler uses it after a syscall, never after a fault.
func (c *Context) AdvancePC(width uint64) {
	c.PC += width
}

// Enterer performs the privilege transition into a context.
type Enterer interface {
	Enter(c *Context) Status
}

// Run transfers control to the context and blocks until it traps.
func (c *Context) Run(e Enterer) Status {
	return e.Enter(c)
}

func (c *Context) String() string {
	return fmt.Sprintf("pc=%#x mode=%s sp=%#x a0=%#x a7=%#x",
		c.PC, c.Privilege, c.Reg(arch.SP), c.Reg(arch.A0), c.Reg(arch.A7))
}
