// Package exec provides an interpreter for an RV64IM hart with user and
// supervisor privilege levels.
package exec

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/evanphx/batchos/arch"
	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultDecodeCacheSize is the number of decoded instructions kept by the
// hart's instruction cache.
const DefaultDecodeCacheSize = 4096

// Trap is the cause and auxiliary value of a trap taken by the hart.
type Trap struct {
	Cause uint64
	Value uint64
}

func (t Trap) Interrupt() bool {
	return t.Cause&arch.CauseInterrupt != 0
}

func (t Trap) String() string {
	if t.Interrupt() {
		return fmt.Sprintf("interrupt %d (value=%#x)", t.Cause&^arch.CauseInterrupt, t.Value)
	}

	return fmt.Sprintf("exception %d (value=%#x)", t.Cause, t.Value)
}

// VM is a single emulated hart.
type VM struct {
	L hclog.Logger

	X    [arch.NumRegs]uint64
	PC   uint64
	Mode arch.Privilege

	csr    csrFile
	memory Memory

	// icache holds decoded instructions keyed by address. Like a real
	// instruction cache it is not coherent with stores; it is only purged
	// by fence.i or InvalidateICache.
	icache     *lru.ARCCache
	generation uint64

	cycle uint64
	trace bool
}

func NewVM(l hclog.Logger, memory Memory) (*VM, error) {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	cache, err := lru.NewARC(DefaultDecodeCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating decode cache")
	}

	vm := &VM{
		L:      l,
		memory: memory,
		icache: cache,
		Mode:   arch.Supervisor,
		trace:  l.IsTrace(),
	}

	vm.csr.stvec = arch.TrapVector

	return vm, nil
}

// Memory returns the physical memory the hart executes against.
func (vm *VM) Memory() Memory {
	return vm.memory
}

// Cycle returns the number of retired instructions.
func (vm *VM) Cycle() uint64 {
	return vm.cycle
}

// InvalidateICache purges every decoded instruction, as fence.i does.
func (vm *VM) InvalidateICache() {
	vm.icache.Purge()
	vm.generation++
}

// Generation counts icache invalidations, including those performed by
// programs executing fence.i.
func (vm *VM) Generation() uint64 {
	return vm.generation
}

// ArmTimer raises a supervisor timer interrupt after delta more retired
// instructions.
func (vm *VM) ArmTimer(delta uint64) {
	vm.csr.stimecmp = vm.cycle + delta
	vm.csr.sie |= arch.STIE
}

func (vm *VM) DisarmTimer() {
	vm.csr.stimecmp = math.MaxUint64
	vm.csr.sie &^= arch.STIE
}

func (vm *VM) timerPending() bool {
	return vm.csr.stimecmp != 0 && vm.cycle >= vm.csr.stimecmp
}

func (vm *VM) pendingInterrupt() (Trap, bool) {
	if vm.csr.sie&arch.STIE == 0 || !vm.timerPending() {
		return Trap{}, false
	}

	// Supervisor interrupts are always taken from user mode.
	if vm.Mode == arch.Supervisor && vm.csr.sstatus&arch.SstatusSIE == 0 {
		return Trap{}, false
	}

	return Trap{Cause: arch.CauseInterrupt | arch.SupervisorTimer}, true
}

func (vm *VM) setReg(r uint8, v uint64) {
	if r != 0 {
		vm.X[r] = v
	}
}

// Sret returns from supervisor mode into the privilege level and program
// counter recorded in sstatus and sepc.
func (vm *VM) Sret() {
	st := vm.csr.sstatus

	if st&arch.SstatusSPP != 0 {
		vm.Mode = arch.Supervisor
	} else {
		vm.Mode = arch.User
	}

	if st&arch.SstatusSPIE != 0 {
		st |= arch.SstatusSIE
	} else {
		st &^= arch.SstatusSIE
	}

	st |= arch.SstatusSPIE
	st &^= arch.SstatusSPP

	vm.csr.sstatus = st
	vm.PC = vm.csr.sepc
}

// take enters supervisor mode at stvec, recording t in the trap CSRs.
func (vm *VM) take(t Trap) Trap {
	st := vm.csr.sstatus

	if vm.Mode == arch.Supervisor {
		st |= arch.SstatusSPP
	} else {
		st &^= arch.SstatusSPP
	}

	if st&arch.SstatusSIE != 0 {
		st |= arch.SstatusSPIE
	} else {
		st &^= arch.SstatusSPIE
	}

	st &^= arch.SstatusSIE

	vm.csr.sstatus = st
	vm.csr.sepc = vm.PC
	vm.csr.scause = t.Cause
	vm.csr.stval = t.Value

	vm.Mode = arch.Supervisor
	vm.PC = vm.csr.stvec

	return t
}

// Run executes instructions until the hart takes a trap, and returns it.
// The trap CSRs describe the trap when Run returns.
func (vm *VM) Run() Trap {
	for {
		if t, ok := vm.Step(); ok {
			return t
		}
	}
}

// Step executes a single instruction. It reports true when the instruction
// (or a pending interrupt) caused a trap.
func (vm *VM) Step() (Trap, bool) {
	if t, ok := vm.pendingInterrupt(); ok {
		return vm.take(t), true
	}

	in, t := vm.fetch()
	if t != nil {
		return vm.take(*t), true
	}

	if vm.trace {
		vm.L.Trace("step", "pc", fmt.Sprintf("%#x", vm.PC), "inst", Disassemble(in.Raw))
	}

	if t := vm.execute(in); t != nil {
		return vm.take(*t), true
	}

	vm.cycle++

	return Trap{}, false
}

func (vm *VM) fetch() (*Inst, *Trap) {
	if val, ok := vm.icache.Get(vm.PC); ok {
		return val.(*Inst), nil
	}

	raw, t := vm.fetchWord(vm.PC)
	if t != nil {
		return nil, t
	}

	in := Decode(raw)
	if in.Op == OpIllegal {
		return nil, &Trap{Cause: arch.IllegalInstruction, Value: uint64(raw)}
	}

	vm.icache.Add(vm.PC, &in)

	return &in, nil
}

func (vm *VM) jump(target uint64) *Trap {
	if target%arch.InstWidth != 0 {
		return &Trap{Cause: arch.InstructionMisaligned, Value: target}
	}

	vm.PC = target
	return nil
}

func mulh(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	h := int64(hi)

	if a < 0 {
		h -= b
	}

	if b < 0 {
		h -= a
	}

	return h
}

func mulhsu(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	h := int64(hi)

	if a < 0 {
		h -= int64(b)
	}

	return h
}

func div(a, b int64) int64 {
	switch {
	case b == 0:
		return -1
	case a == math.MinInt64 && b == -1:
		return a
	default:
		return a / b
	}
}

func rem(a, b int64) int64 {
	switch {
	case b == 0:
		return a
	case a == math.MinInt64 && b == -1:
		return 0
	default:
		return a % b
	}
}

func divu(a, b uint64) uint64 {
	if b == 0 {
		return math.MaxUint64
	}

	return a / b
}

func remu(a, b uint64) uint64 {
	if b == 0 {
		return a
	}

	return a % b
}

func sext32(v uint64) uint64 {
	return uint64(int64(int32(v)))
}

func bool64(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}

func (vm *VM) execute(in *Inst) *Trap {
	var (
		pc   = vm.PC
		next = pc + arch.InstWidth
		rs1  = vm.X[in.Rs1]
		rs2  = vm.X[in.Rs2]
		imm  = uint64(in.Imm)
	)

	switch in.Op {
	case OpLUI:
		vm.setReg(in.Rd, imm)
	case OpAUIPC:
		vm.setReg(in.Rd, pc+imm)
	case OpJAL:
		if t := vm.jump(pc + imm); t != nil {
			return t
		}
		vm.setReg(in.Rd, next)
		return nil
	case OpJALR:
		if t := vm.jump((rs1 + imm) &^ 1); t != nil {
			return t
		}
		vm.setReg(in.Rd, next)
		return nil

	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		var taken bool

		switch in.Op {
		case OpBEQ:
			taken = rs1 == rs2
		case OpBNE:
			taken = rs1 != rs2
		case OpBLT:
			taken = int64(rs1) < int64(rs2)
		case OpBGE:
			taken = int64(rs1) >= int64(rs2)
		case OpBLTU:
			taken = rs1 < rs2
		case OpBGEU:
			taken = rs1 >= rs2
		}

		if taken {
			return vm.jump(pc + imm)
		}

	case OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU:
		var (
			size   uint64
			signed bool
		)

		switch in.Op {
		case OpLB:
			size, signed = 1, true
		case OpLH:
			size, signed = 2, true
		case OpLW:
			size, signed = 4, true
		case OpLD:
			size = 8
		case OpLBU:
			size = 1
		case OpLHU:
			size = 2
		case OpLWU:
			size = 4
		}

		v, t := vm.load(rs1+imm, size, signed)
		if t != nil {
			return t
		}

		vm.setReg(in.Rd, v)

	case OpSB:
		if t := vm.store(rs1+imm, 1, rs2); t != nil {
			return t
		}
	case OpSH:
		if t := vm.store(rs1+imm, 2, rs2); t != nil {
			return t
		}
	case OpSW:
		if t := vm.store(rs1+imm, 4, rs2); t != nil {
			return t
		}
	case OpSD:
		if t := vm.store(rs1+imm, 8, rs2); t != nil {
			return t
		}

	case OpADDI:
		vm.setReg(in.Rd, rs1+imm)
	case OpSLTI:
		vm.setReg(in.Rd, bool64(int64(rs1) < in.Imm))
	case OpSLTIU:
		vm.setReg(in.Rd, bool64(rs1 < imm))
	case OpXORI:
		vm.setReg(in.Rd, rs1^imm)
	case OpORI:
		vm.setReg(in.Rd, rs1|imm)
	case OpANDI:
		vm.setReg(in.Rd, rs1&imm)
	case OpSLLI:
		vm.setReg(in.Rd, rs1<<(imm&0x3f))
	case OpSRLI:
		vm.setReg(in.Rd, rs1>>(imm&0x3f))
	case OpSRAI:
		vm.setReg(in.Rd, uint64(int64(rs1)>>(imm&0x3f)))

	case OpADD:
		vm.setReg(in.Rd, rs1+rs2)
	case OpSUB:
		vm.setReg(in.Rd, rs1-rs2)
	case OpSLL:
		vm.setReg(in.Rd, rs1<<(rs2&0x3f))
	case OpSLT:
		vm.setReg(in.Rd, bool64(int64(rs1) < int64(rs2)))
	case OpSLTU:
		vm.setReg(in.Rd, bool64(rs1 < rs2))
	case OpXOR:
		vm.setReg(in.Rd, rs1^rs2)
	case OpSRL:
		vm.setReg(in.Rd, rs1>>(rs2&0x3f))
	case OpSRA:
		vm.setReg(in.Rd, uint64(int64(rs1)>>(rs2&0x3f)))
	case OpOR:
		vm.setReg(in.Rd, rs1|rs2)
	case OpAND:
		vm.setReg(in.Rd, rs1&rs2)

	case OpADDIW:
		vm.setReg(in.Rd, sext32(rs1+imm))
	case OpSLLIW:
		vm.setReg(in.Rd, sext32(uint64(uint32(rs1)<<(imm&0x1f))))
	case OpSRLIW:
		vm.setReg(in.Rd, sext32(uint64(uint32(rs1)>>(imm&0x1f))))
	case OpSRAIW:
		vm.setReg(in.Rd, uint64(int64(int32(rs1)>>(imm&0x1f))))
	case OpADDW:
		vm.setReg(in.Rd, sext32(rs1+rs2))
	case OpSUBW:
		vm.setReg(in.Rd, sext32(rs1-rs2))
	case OpSLLW:
		vm.setReg(in.Rd, sext32(uint64(uint32(rs1)<<(rs2&0x1f))))
	case OpSRLW:
		vm.setReg(in.Rd, sext32(uint64(uint32(rs1)>>(rs2&0x1f))))
	case OpSRAW:
		vm.setReg(in.Rd, uint64(int64(int32(rs1)>>(rs2&0x1f))))

	case OpMUL:
		vm.setReg(in.Rd, rs1*rs2)
	case OpMULH:
		vm.setReg(in.Rd, uint64(mulh(int64(rs1), int64(rs2))))
	case OpMULHSU:
		vm.setReg(in.Rd, uint64(mulhsu(int64(rs1), rs2)))
	case OpMULHU:
		hi, _ := bits.Mul64(rs1, rs2)
		vm.setReg(in.Rd, hi)
	case OpDIV:
		vm.setReg(in.Rd, uint64(div(int64(rs1), int64(rs2))))
	case OpDIVU:
		vm.setReg(in.Rd, divu(rs1, rs2))
	case OpREM:
		vm.setReg(in.Rd, uint64(rem(int64(rs1), int64(rs2))))
	case OpREMU:
		vm.setReg(in.Rd, remu(rs1, rs2))
	case OpMULW:
		vm.setReg(in.Rd, sext32(rs1*rs2))
	case OpDIVW:
		a, b := int32(rs1), int32(rs2)
		switch {
		case b == 0:
			vm.setReg(in.Rd, math.MaxUint64)
		case a == math.MinInt32 && b == -1:
			vm.setReg(in.Rd, uint64(int64(a)))
		default:
			vm.setReg(in.Rd, uint64(int64(a/b)))
		}
	case OpDIVUW:
		a, b := uint32(rs1), uint32(rs2)
		if b == 0 {
			vm.setReg(in.Rd, math.MaxUint64)
		} else {
			vm.setReg(in.Rd, sext32(uint64(a/b)))
		}
	case OpREMW:
		a, b := int32(rs1), int32(rs2)
		switch {
		case b == 0:
			vm.setReg(in.Rd, uint64(int64(a)))
		case a == math.MinInt32 && b == -1:
			vm.setReg(in.Rd, 0)
		default:
			vm.setReg(in.Rd, uint64(int64(a%b)))
		}
	case OpREMUW:
		a, b := uint32(rs1), uint32(rs2)
		if b == 0 {
			vm.setReg(in.Rd, sext32(uint64(a)))
		} else {
			vm.setReg(in.Rd, sext32(uint64(a%b)))
		}

	case OpFENCE:
		// single hart, memory is always ordered
	case OpFENCEI:
		vm.PC = next
		vm.InvalidateICache()
		return nil

	case OpECALL:
		if vm.Mode == arch.User {
			return &Trap{Cause: arch.UserEnvCall}
		}
		return &Trap{Cause: arch.SupervisorEnvCall}
	case OpEBREAK:
		return &Trap{Cause: arch.Breakpoint, Value: pc}
	case OpSRET:
		if vm.Mode != arch.Supervisor {
			return &Trap{Cause: arch.IllegalInstruction, Value: uint64(in.Raw)}
		}
		vm.Sret()
		return nil
	case OpWFI:
		if vm.Mode != arch.Supervisor {
			return &Trap{Cause: arch.IllegalInstruction, Value: uint64(in.Raw)}
		}
		if vm.csr.sie&arch.STIE != 0 && vm.csr.stimecmp > vm.cycle {
			vm.cycle = vm.csr.stimecmp - 1
		}
	case OpSFENCEVMA:
		if vm.Mode != arch.Supervisor {
			return &Trap{Cause: arch.IllegalInstruction, Value: uint64(in.Raw)}
		}

	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		if t := vm.csrOp(in); t != nil {
			return t
		}

	default:
		return &Trap{Cause: arch.IllegalInstruction, Value: uint64(in.Raw)}
	}

	vm.PC = next
	return nil
}
