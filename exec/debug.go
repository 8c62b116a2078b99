package exec

import (
	"fmt"

	"github.com/evanphx/batchos/arch"
)

func reg(r uint8) string {
	return arch.RegNames[r&0x1f]
}

// Disassemble renders raw in assembler syntax. Used by tracing and by the
// image dump tool.
func Disassemble(raw uint32) string {
	in := Decode(raw)

	switch in.Op {
	case OpIllegal:
		return fmt.Sprintf(".word 0x%08x", raw)
	case OpLUI, OpAUIPC:
		return fmt.Sprintf("%s %s, %#x", in.Op, reg(in.Rd), uint64(in.Imm)>>12&0xfffff)
	case OpJAL:
		return fmt.Sprintf("jal %s, %d", reg(in.Rd), in.Imm)
	case OpJALR:
		return fmt.Sprintf("jalr %s, %d(%s)", reg(in.Rd), in.Imm, reg(in.Rs1))
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		return fmt.Sprintf("%s %s, %s, %d", in.Op, reg(in.Rs1), reg(in.Rs2), in.Imm)
	case OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU:
		return fmt.Sprintf("%s %s, %d(%s)", in.Op, reg(in.Rd), in.Imm, reg(in.Rs1))
	case OpSB, OpSH, OpSW, OpSD:
		return fmt.Sprintf("%s %s, %d(%s)", in.Op, reg(in.Rs2), in.Imm, reg(in.Rs1))
	case OpADDI, OpSLTI, OpSLTIU, OpXORI, OpORI, OpANDI, OpSLLI, OpSRLI, OpSRAI,
		OpADDIW, OpSLLIW, OpSRLIW, OpSRAIW:
		return fmt.Sprintf("%s %s, %s, %d", in.Op, reg(in.Rd), reg(in.Rs1), in.Imm)
	case OpFENCE, OpFENCEI, OpECALL, OpEBREAK, OpSRET, OpWFI:
		return in.Op.String()
	case OpSFENCEVMA:
		return fmt.Sprintf("sfence.vma %s, %s", reg(in.Rs1), reg(in.Rs2))
	case OpCSRRW, OpCSRRS, OpCSRRC:
		return fmt.Sprintf("%s %s, %#x, %s", in.Op, reg(in.Rd), in.CSR, reg(in.Rs1))
	case OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return fmt.Sprintf("%s %s, %#x, %d", in.Op, reg(in.Rd), in.CSR, in.Rs1)
	default:
		return fmt.Sprintf("%s %s, %s, %s", in.Op, reg(in.Rd), reg(in.Rs1), reg(in.Rs2))
	}
}
