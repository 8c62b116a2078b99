package exec

// Op identifies a decoded instruction.
type Op uint8

const (
	OpIllegal Op = iota

	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU

	OpSB
	OpSH
	OpSW
	OpSD

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	OpFENCE
	OpFENCEI
	OpECALL
	OpEBREAK
	OpSRET
	OpWFI
	OpSFENCEVMA

	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	numOps
)

var opNames = [numOps]string{
	OpIllegal: "illegal",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld", OpLBU: "lbu", OpLHU: "lhu", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori", OpANDI: "andi",
	OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw", OpSRAW: "sraw",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw", OpREMW: "remw", OpREMUW: "remuw",
	OpFENCE: "fence", OpFENCEI: "fence.i", OpECALL: "ecall", OpEBREAK: "ebreak",
	OpSRET: "sret", OpWFI: "wfi", OpSFENCEVMA: "sfence.vma",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}

	return "unknown"
}

// Inst is a decoded instruction as kept in the decode cache.
type Inst struct {
	Raw uint32
	Op  Op

	Rd, Rs1, Rs2 uint8

	Imm int64
	CSR uint16
}

func immI(raw uint32) int64 {
	return int64(int32(raw) >> 20)
}

func immS(raw uint32) int64 {
	return int64(int32(raw&0xfe000000)>>20) | int64((raw>>7)&0x1f)
}

func immB(raw uint32) int64 {
	return int64(int32(raw&0x80000000)>>19) |
		int64((raw&0x80)<<4) |
		int64((raw>>20)&0x7e0) |
		int64((raw>>7)&0x1e)
}

func immU(raw uint32) int64 {
	return int64(int32(raw & 0xfffff000))
}

func immJ(raw uint32) int64 {
	return int64(int32(raw&0x80000000)>>11) |
		int64(raw&0xff000) |
		int64((raw>>9)&0x800) |
		int64((raw>>20)&0x7fe)
}

// Decode turns a raw instruction word into an Inst. Unknown encodings,
// including every compressed encoding, decode as OpIllegal.
func Decode(raw uint32) Inst {
	in := Inst{
		Raw: raw,
		Rd:  uint8((raw >> 7) & 0x1f),
		Rs1: uint8((raw >> 15) & 0x1f),
		Rs2: uint8((raw >> 20) & 0x1f),
	}

	if raw&0x3 != 0x3 {
		return in
	}

	var (
		opcode = raw & 0x7f
		funct3 = (raw >> 12) & 0x7
		funct7 = raw >> 25
	)

	switch opcode {
	case 0x37:
		in.Op, in.Imm = OpLUI, immU(raw)
	case 0x17:
		in.Op, in.Imm = OpAUIPC, immU(raw)
	case 0x6f:
		in.Op, in.Imm = OpJAL, immJ(raw)
	case 0x67:
		if funct3 == 0 {
			in.Op, in.Imm = OpJALR, immI(raw)
		}
	case 0x63:
		in.Imm = immB(raw)
		in.Op = [8]Op{OpBEQ, OpBNE, OpIllegal, OpIllegal, OpBLT, OpBGE, OpBLTU, OpBGEU}[funct3]
	case 0x03:
		in.Imm = immI(raw)
		in.Op = [8]Op{OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU, OpIllegal}[funct3]
	case 0x23:
		in.Imm = immS(raw)
		in.Op = [8]Op{OpSB, OpSH, OpSW, OpSD, OpIllegal, OpIllegal, OpIllegal, OpIllegal}[funct3]
	case 0x13:
		in.Imm = immI(raw)
		switch funct3 {
		case 0:
			in.Op = OpADDI
		case 2:
			in.Op = OpSLTI
		case 3:
			in.Op = OpSLTIU
		case 4:
			in.Op = OpXORI
		case 6:
			in.Op = OpORI
		case 7:
			in.Op = OpANDI
		case 1:
			if raw>>26 == 0 {
				in.Op, in.Imm = OpSLLI, int64((raw>>20)&0x3f)
			}
		case 5:
			switch raw >> 26 {
			case 0x00:
				in.Op, in.Imm = OpSRLI, int64((raw>>20)&0x3f)
			case 0x10:
				in.Op, in.Imm = OpSRAI, int64((raw>>20)&0x3f)
			}
		}
	case 0x1b:
		in.Imm = immI(raw)
		switch {
		case funct3 == 0:
			in.Op = OpADDIW
		case funct3 == 1 && funct7 == 0:
			in.Op, in.Imm = OpSLLIW, int64(in.Rs2)
		case funct3 == 5 && funct7 == 0:
			in.Op, in.Imm = OpSRLIW, int64(in.Rs2)
		case funct3 == 5 && funct7 == 0x20:
			in.Op, in.Imm = OpSRAIW, int64(in.Rs2)
		}
	case 0x33:
		switch funct7 {
		case 0x00:
			in.Op = [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}[funct3]
		case 0x20:
			switch funct3 {
			case 0:
				in.Op = OpSUB
			case 5:
				in.Op = OpSRA
			}
		case 0x01:
			in.Op = [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}[funct3]
		}
	case 0x3b:
		switch funct7 {
		case 0x00:
			switch funct3 {
			case 0:
				in.Op = OpADDW
			case 1:
				in.Op = OpSLLW
			case 5:
				in.Op = OpSRLW
			}
		case 0x20:
			switch funct3 {
			case 0:
				in.Op = OpSUBW
			case 5:
				in.Op = OpSRAW
			}
		case 0x01:
			switch funct3 {
			case 0:
				in.Op = OpMULW
			case 4:
				in.Op = OpDIVW
			case 5:
				in.Op = OpDIVUW
			case 6:
				in.Op = OpREMW
			case 7:
				in.Op = OpREMUW
			}
		}
	case 0x0f:
		switch funct3 {
		case 0:
			in.Op = OpFENCE
		case 1:
			in.Op = OpFENCEI
		}
	case 0x73:
		in.CSR = uint16(raw >> 20)
		switch funct3 {
		case 0:
			switch {
			case raw == 0x00000073:
				in.Op = OpECALL
			case raw == 0x00100073:
				in.Op = OpEBREAK
			case raw == 0x10200073:
				in.Op = OpSRET
			case raw == 0x10500073:
				in.Op = OpWFI
			case funct7 == 0x09 && in.Rd == 0:
				in.Op = OpSFENCEVMA
			}
		case 1:
			in.Op = OpCSRRW
		case 2:
			in.Op = OpCSRRS
		case 3:
			in.Op = OpCSRRC
		case 5:
			in.Op = OpCSRRWI
		case 6:
			in.Op = OpCSRRSI
		case 7:
			in.Op = OpCSRRCI
		}
	}

	return in
}
