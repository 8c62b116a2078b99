// Package arch holds the RV64 architectural constants shared by the hart
// interpreter, the platform boundary and the kernel.
package arch

// Privilege is a hart privilege level.
type Privilege uint8

const (
	User       Privilege = 0
	Supervisor Privilege = 1
)

func (p Privilege) String() string {
	switch p {
	case User:
		return "user"
	case Supervisor:
		return "supervisor"
	default:
		return "unknown"
	}
}

// Integer register indices.
const (
	Zero = 0
	RA   = 1
	SP   = 2
	GP   = 3
	TP   = 4
	T0   = 5
	T1   = 6
	T2   = 7
	S0   = 8
	S1   = 9
	A0   = 10
	A1   = 11
	A2   = 12
	A3   = 13
	A4   = 14
	A5   = 15
	A6   = 16
	A7   = 17

	NumRegs = 32
)

var RegNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// InstWidth is the encoded width of every instruction the hart accepts,
// including ecall.
const InstWidth = 4

// Control and status registers.
const (
	CSRSstatus  = 0x100
	CSRSie      = 0x104
	CSRStvec    = 0x105
	CSRSscratch = 0x140
	CSRSepc     = 0x141
	CSRScause   = 0x142
	CSRStval    = 0x143
	CSRSip      = 0x144
	CSRStimecmp = 0x14D

	CSRCycle   = 0xC00
	CSRTime    = 0xC01
	CSRInstret = 0xC02
)

// sstatus bits.
const (
	SstatusSIE  = 1 << 1
	SstatusSPIE = 1 << 5
	SstatusSPP  = 1 << 8

	SstatusWritable = SstatusSIE | SstatusSPIE | SstatusSPP
)

// sie/sip bits.
const (
	SSIE = 1 << 1
	STIE = 1 << 5
	SEIE = 1 << 9
)

// CauseInterrupt is set in scause when the trap is an interrupt.
const CauseInterrupt = uint64(1) << 63

// Exception codes.
const (
	InstructionMisaligned  = 0
	InstructionAccessFault = 1
	IllegalInstruction     = 2
	Breakpoint             = 3
	LoadMisaligned         = 4
	LoadAccessFault        = 5
	StoreMisaligned        = 6
	StoreAccessFault       = 7
	UserEnvCall            = 8
	SupervisorEnvCall      = 9
	InstructionPageFault   = 12
	LoadPageFault          = 13
	StorePageFault         = 15
)

// Interrupt codes.
const (
	SupervisorSoftware = 1
	SupervisorTimer    = 5
	SupervisorExternal = 9
)

// TrapVector is the value the kernel installs in stvec. Trap entry is
// handled by the platform boundary, so the address is never fetched.
const TrapVector = 0xffff_ffff_ffff_f000
