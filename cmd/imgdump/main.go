package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

var (
	fInsts   = pflag.IntP("insts", "n", 16, "instructions to disassemble per image")
	fVerbose = pflag.BoolP("verbose", "v", false, "dump each image record")
)

func main() {
	pflag.Parse()

	if pflag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: imgdump [flags] table...\n")
		os.Exit(2)
	}

	for _, path := range pflag.Args() {
		blob, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			os.Exit(1)
		}

		if err := dump(os.Stdout, blob, *fInsts, *fVerbose); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %s\n", path, err)
			os.Exit(1)
		}
	}
}
