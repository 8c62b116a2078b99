package exec

import "github.com/evanphx/batchos/arch"

type csrFile struct {
	sstatus  uint64
	sie      uint64
	stvec    uint64
	sscratch uint64
	sepc     uint64
	scause   uint64
	stval    uint64
	stimecmp uint64
}

func csrPrivilege(num uint16) arch.Privilege {
	if (num>>8)&0x3 == 0 {
		return arch.User
	}

	return arch.Supervisor
}

func csrReadOnly(num uint16) bool {
	return (num>>10)&0x3 == 0x3
}

func (vm *VM) sip() uint64 {
	var v uint64

	if vm.timerPending() {
		v |= arch.STIE
	}

	return v
}

// ReadCSR reads a CSR with supervisor rights. Unknown CSRs read as zero.
func (vm *VM) ReadCSR(num uint16) uint64 {
	v, _ := vm.readCSR(num)
	return v
}

// WriteCSR writes a CSR with supervisor rights.
func (vm *VM) WriteCSR(num uint16, v uint64) {
	vm.writeCSR(num, v)
}

func (vm *VM) readCSR(num uint16) (uint64, bool) {
	switch num {
	case arch.CSRSstatus:
		return vm.csr.sstatus, true
	case arch.CSRSie:
		return vm.csr.sie, true
	case arch.CSRStvec:
		return vm.csr.stvec, true
	case arch.CSRSscratch:
		return vm.csr.sscratch, true
	case arch.CSRSepc:
		return vm.csr.sepc, true
	case arch.CSRScause:
		return vm.csr.scause, true
	case arch.CSRStval:
		return vm.csr.stval, true
	case arch.CSRSip:
		return vm.sip(), true
	case arch.CSRStimecmp:
		return vm.csr.stimecmp, true
	case arch.CSRCycle, arch.CSRTime, arch.CSRInstret:
		return vm.cycle, true
	default:
		return 0, false
	}
}

func (vm *VM) writeCSR(num uint16, v uint64) bool {
	switch num {
	case arch.CSRSstatus:
		vm.csr.sstatus = v & arch.SstatusWritable
	case arch.CSRSie:
		vm.csr.sie = v & (arch.SSIE | arch.STIE | arch.SEIE)
	case arch.CSRStvec:
		vm.csr.stvec = v &^ 0x3
	case arch.CSRSscratch:
		vm.csr.sscratch = v
	case arch.CSRSepc:
		vm.csr.sepc = v &^ 0x3
	case arch.CSRScause:
		vm.csr.scause = v
	case arch.CSRStval:
		vm.csr.stval = v
	case arch.CSRSip:
		// Only software interrupts are writable and none are modelled.
	case arch.CSRStimecmp:
		vm.csr.stimecmp = v
	default:
		return false
	}

	return true
}

// csrOp performs a Zicsr instruction from the current privilege level.
func (vm *VM) csrOp(in *Inst) *Trap {
	illegal := &Trap{Cause: arch.IllegalInstruction, Value: uint64(in.Raw)}

	if vm.Mode < csrPrivilege(in.CSR) {
		return illegal
	}

	var (
		src   uint64
		write = true
	)

	switch in.Op {
	case OpCSRRW, OpCSRRS, OpCSRRC:
		src = vm.X[in.Rs1]
	default:
		src = uint64(in.Rs1)
	}

	if (in.Op != OpCSRRW && in.Op != OpCSRRWI) && in.Rs1 == 0 {
		write = false
	}

	if write && csrReadOnly(in.CSR) {
		return illegal
	}

	old, ok := vm.readCSR(in.CSR)
	if !ok {
		return illegal
	}

	if write {
		var v uint64

		switch in.Op {
		case OpCSRRW, OpCSRRWI:
			v = src
		case OpCSRRS, OpCSRRSI:
			v = old | src
		default:
			v = old &^ src
		}

		vm.writeCSR(in.CSR, v)
	}

	vm.setReg(in.Rd, old)

	return nil
}
