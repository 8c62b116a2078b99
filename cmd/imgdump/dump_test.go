package main

import (
	"bytes"
	"testing"

	"github.com/evanphx/batchos/arch"
	"github.com/evanphx/batchos/asm"
	"github.com/evanphx/batchos/loader"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	var p asm.Program
	p.Emit(asm.ADDI(arch.A0, 0, 1), asm.ECALL)

	var buf bytes.Buffer

	err := dump(&buf, loader.BuildTable(0x80400000, 0x20000, p.Bytes(), []byte("xy")), 4, false)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "count=2")
	require.Contains(t, out, "<app 0>")
	require.Contains(t, out, "<app 1>")
	require.Contains(t, out, "0x80420000")
	require.Contains(t, out, "ecall")

	require.Error(t, dump(&buf, []byte("short"), 4, false))
}
