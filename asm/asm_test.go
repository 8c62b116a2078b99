package asm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodings(t *testing.T) {
	// Reference encodings from the RISC-V assembler.
	cases := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"addi a0, zero, 1", ADDI(10, 0, 1), 0x00100513},
		{"addi sp, sp, -16", ADDI(2, 2, -16), 0xff010113},
		{"li a7, 64", ADDI(17, 0, 64), 0x04000893},
		{"auipc a1, 0", AUIPC(11, 0), 0x00000597},
		{"lui a0, 0x12345", LUI(10, 0x12345), 0x12345537},
		{"jal ra, 8", JAL(1, 8), 0x008000ef},
		{"jal zero, -4", JAL(0, -4), 0xffdff06f},
		{"beq a0, a1, 8", BEQ(10, 11, 8), 0x00b50463},
		{"bne a0, zero, -8", BNE(10, 0, -8), 0xfe051ce3},
		{"sd ra, 8(sp)", SD(1, 2, 8), 0x00113423},
		{"ld ra, 8(sp)", LD(1, 2, 8), 0x00813083},
		{"add a0, a0, a1", ADD(10, 10, 11), 0x00b50533},
		{"sub a0, a0, a1", SUB(10, 10, 11), 0x40b50533},
		{"mul a0, a0, a1", MUL(10, 10, 11), 0x02b50533},
		{"csrr a0, sstatus", CSRR(10, 0x100), 0x10002573},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.got)
		})
	}
}

func TestLi(t *testing.T) {
	require.Len(t, Li(10, 100), 1)
	require.Equal(t, []uint32{LUI(10, 0x12345), ADDIW(10, 10, 0x678)}, Li(10, 0x12345678))

	// The low part is negative, so the upper part is rounded up.
	require.Equal(t, []uint32{LUI(10, 1), ADDIW(10, 10, -2048)}, Li(10, 0x800))
}

func TestProgramBytes(t *testing.T) {
	var p Program

	p.Emit(NOP, ECALL)
	off := p.Data([]byte("hi"))

	require.Equal(t, int32(8), off)

	b := p.Bytes()
	require.Len(t, b, 10)
	require.Equal(t, uint32(ECALL), binary.LittleEndian.Uint32(b[4:]))
	require.Equal(t, "hi", string(b[8:]))
}
