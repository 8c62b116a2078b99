// Package asm encodes RV64IM instructions. It is enough to hand-assemble the
// small programs used by tests and by the demo batch.
package asm

import "encoding/binary"

func rType(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func iType(opcode, funct3 uint32, rd, rs1 uint8, imm int32) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func sType(opcode, funct3 uint32, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | (u&0x1f)<<7 | opcode
}

func bType(funct3 uint32, rs1, rs2 uint8, off int32) uint32 {
	u := uint32(off)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | (u>>1&0xf)<<8 | (u>>11&1)<<7 | 0x63
}

func LUI(rd uint8, imm20 int32) uint32 {
	return uint32(imm20&0xfffff)<<12 | uint32(rd)<<7 | 0x37
}

func AUIPC(rd uint8, imm20 int32) uint32 {
	return uint32(imm20&0xfffff)<<12 | uint32(rd)<<7 | 0x17
}

func JAL(rd uint8, off int32) uint32 {
	u := uint32(off)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 | uint32(rd)<<7 | 0x6f
}

func JALR(rd, rs1 uint8, imm int32) uint32 { return iType(0x67, 0, rd, rs1, imm) }

func BEQ(rs1, rs2 uint8, off int32) uint32  { return bType(0, rs1, rs2, off) }
func BNE(rs1, rs2 uint8, off int32) uint32  { return bType(1, rs1, rs2, off) }
func BLT(rs1, rs2 uint8, off int32) uint32  { return bType(4, rs1, rs2, off) }
func BGE(rs1, rs2 uint8, off int32) uint32  { return bType(5, rs1, rs2, off) }
func BLTU(rs1, rs2 uint8, off int32) uint32 { return bType(6, rs1, rs2, off) }
func BGEU(rs1, rs2 uint8, off int32) uint32 { return bType(7, rs1, rs2, off) }

func LB(rd, rs1 uint8, imm int32) uint32  { return iType(0x03, 0, rd, rs1, imm) }
func LH(rd, rs1 uint8, imm int32) uint32  { return iType(0x03, 1, rd, rs1, imm) }
func LW(rd, rs1 uint8, imm int32) uint32  { return iType(0x03, 2, rd, rs1, imm) }
func LD(rd, rs1 uint8, imm int32) uint32  { return iType(0x03, 3, rd, rs1, imm) }
func LBU(rd, rs1 uint8, imm int32) uint32 { return iType(0x03, 4, rd, rs1, imm) }

func SB(rs2, rs1 uint8, imm int32) uint32 { return sType(0x23, 0, rs1, rs2, imm) }
func SW(rs2, rs1 uint8, imm int32) uint32 { return sType(0x23, 2, rs1, rs2, imm) }
func SD(rs2, rs1 uint8, imm int32) uint32 { return sType(0x23, 3, rs1, rs2, imm) }

func ADDI(rd, rs1 uint8, imm int32) uint32  { return iType(0x13, 0, rd, rs1, imm) }
func ANDI(rd, rs1 uint8, imm int32) uint32  { return iType(0x13, 7, rd, rs1, imm) }
func SLLI(rd, rs1 uint8, sh uint32) uint32  { return iType(0x13, 1, rd, rs1, int32(sh&0x3f)) }
func ADDIW(rd, rs1 uint8, imm int32) uint32 { return iType(0x1b, 0, rd, rs1, imm) }

func ADD(rd, rs1, rs2 uint8) uint32 { return rType(0x33, 0, 0, rd, rs1, rs2) }
func SUB(rd, rs1, rs2 uint8) uint32 { return rType(0x33, 0, 0x20, rd, rs1, rs2) }
func MUL(rd, rs1, rs2 uint8) uint32 { return rType(0x33, 0, 0x01, rd, rs1, rs2) }
func DIV(rd, rs1, rs2 uint8) uint32 { return rType(0x33, 4, 0x01, rd, rs1, rs2) }
func REM(rd, rs1, rs2 uint8) uint32 { return rType(0x33, 6, 0x01, rd, rs1, rs2) }

func CSRRW(rd uint8, csr uint16, rs1 uint8) uint32 { return iType(0x73, 1, rd, rs1, int32(csr)) }
func CSRRS(rd uint8, csr uint16, rs1 uint8) uint32 { return iType(0x73, 2, rd, rs1, int32(csr)) }

// CSRR reads a CSR into rd.
func CSRR(rd uint8, csr uint16) uint32 { return CSRRS(rd, csr, 0) }

const (
	ECALL  = 0x00000073
	EBREAK = 0x00100073
	SRET   = 0x10200073
	WFI    = 0x10500073
	FENCEI = 0x0000100f
	NOP    = 0x00000013
)

// Li loads a 32-bit signed constant into rd, using one or two instructions.
func Li(rd uint8, v int32) []uint32 {
	if v >= -2048 && v < 2048 {
		return []uint32{ADDI(rd, 0, v)}
	}

	lo := v << 20 >> 20
	hi := (v - lo) >> 12

	return []uint32{LUI(rd, hi), ADDIW(rd, rd, lo)}
}

// Program accumulates instructions and trailing data.
type Program struct {
	words []uint32
	data  []byte
}

func (p *Program) Emit(insts ...uint32) *Program {
	p.words = append(p.words, insts...)
	return p
}

// Li emits Li(rd, v).
func (p *Program) Li(rd uint8, v int32) *Program {
	return p.Emit(Li(rd, v)...)
}

// Len returns the number of instructions emitted so far.
func (p *Program) Len() int {
	return len(p.words)
}

// Set replaces the instruction at index i, for patching forward references.
func (p *Program) Set(i int, inst uint32) {
	p.words[i] = inst
}

// PC returns the offset of the next instruction.
func (p *Program) PC() int32 {
	return int32(len(p.words) * 4)
}

// Data appends b after the code and returns its offset from the start of
// the program. Offsets are stable as long as no instruction is emitted
// after the data is placed, so callers emit code first.
func (p *Program) Data(b []byte) int32 {
	off := p.PC() + int32(len(p.data))
	p.data = append(p.data, b...)
	return off
}

// Bytes returns the little-endian image.
func (p *Program) Bytes() []byte {
	out := make([]byte, len(p.words)*4, len(p.words)*4+len(p.data))

	for i, w := range p.words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}

	return append(out, p.data...)
}
