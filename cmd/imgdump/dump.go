package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/batchos/exec"
	"github.com/evanphx/batchos/loader"
	"golang.org/x/crypto/blake2b"
)

func dump(w io.Writer, blob []byte, insts int, verbose bool) error {
	tbl, err := loader.Locate(blob)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[table]\n")
	fmt.Fprintf(w, "base=%#x stride=%#x count=%d slot=%#x in-place=%v\n",
		tbl.Base, tbl.Stride, tbl.Count, tbl.SlotSize(), tbl.InPlace())

	fmt.Fprintf(w, "\n[images]\n")

	tr := tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)
	for i := 0; i < tbl.Count; i++ {
		img := tbl.Image(i)
		sum := blake2b.Sum256(img.Bytes)

		fmt.Fprintf(tr, "%d\t%#x\tlen=%d\t%x\n", img.Index, img.LoadAddress, len(img.Bytes), sum[:8])
	}

	tr.Flush()

	for i := 0; i < tbl.Count; i++ {
		img := tbl.Image(i)

		fmt.Fprintf(w, "\n%#x <app %d>:\n", img.LoadAddress, img.Index)

		tr = tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)

		for j := 0; j < insts && j*4+4 <= len(img.Bytes); j++ {
			raw := binary.LittleEndian.Uint32(img.Bytes[j*4:])
			fmt.Fprintf(tr, "  %x\t%08x\t%s\n", img.LoadAddress+uint64(j*4), raw, exec.Disassemble(raw))
		}

		tr.Flush()

		if verbose {
			spew.Fdump(w, img)
		}
	}

	return nil
}
