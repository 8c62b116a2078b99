// Package kernel holds the kernel's process records and the registry of
// capability implementations that answer syscalls.
package kernel

import (
	"io"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
)

// DefaultHeapBase is where brk grows the heap from.
const DefaultHeapBase = 0x4000_0000

type Kernel struct {
	L        hclog.Logger
	Registry *Registry
	HeapBase uint64

	processes *ProcessManager

	stdin          io.Reader
	stdout, stderr io.Writer
}

func NewKernel(l hclog.Logger, reg *Registry) (*Kernel, error) {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	if reg == nil {
		reg = NewRegistry()
	}

	k := &Kernel{
		L:         l,
		Registry:  reg,
		HeapBase:  DefaultHeapBase,
		processes: NewProcessManager(),
		stdin:     strings.NewReader(""),
		stdout:    io.Discard,
		stderr:    io.Discard,
	}

	return k, nil
}

// SetStdio sets the host streams every program's descriptors 0, 1 and 2
// are connected to.
func (k *Kernel) SetStdio(in io.Reader, out, err io.Writer) {
	if in != nil {
		k.stdin = in
	}

	if out != nil {
		k.stdout = out
	}

	if err != nil {
		k.stderr = err
	}
}
