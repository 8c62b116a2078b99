// Package config holds the boot configuration of the batch kernel.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/evanphx/batchos/kernel"
	clog "github.com/evanphx/batchos/log"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/exp/slices"
)

const (
	DefaultBase      = 0x8040_0000
	DefaultStackTop  = 0x7fff_f000
	DefaultStackSize = 64 << 10
)

var (
	ErrNoImages        = errors.New("no image table or app files given")
	ErrBadStack        = errors.New("bad user stack")
	ErrStackOverlap    = errors.New("user stack overlaps the run slots")
	ErrUnknownCategory = errors.New("unknown capability category")
)

type Config struct {
	// Table is a file holding a prebuilt image table. When empty, Apps
	// are packed into a table at Base and Stride.
	Table string
	Apps  []string

	Base   uint64
	Stride uint64

	StackTop  uint64
	StackSize uint64
	HeapBase  uint64

	// TimerQuantum kills a program after this many instructions. 0 disables
	// the timer.
	TimerQuantum uint64

	Disabled []string

	TTY      bool
	LogLevel string

	// Debug raises the log level to at least debug.
	Debug bool
}

func Default() *Config {
	return &Config{
		Base:      DefaultBase,
		StackTop:  DefaultStackTop,
		StackSize: DefaultStackSize,
		HeapBase:  kernel.DefaultHeapBase,
		LogLevel:  "info",
	}
}

// Flags binds the configuration to fs, using the current values as
// defaults.
func (c *Config) Flags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Table, "table", "t", c.Table, "prebuilt image table to run")
	fs.Uint64Var(&c.Base, "base", c.Base, "load address of the first app when packing app files")
	fs.Uint64Var(&c.Stride, "stride", c.Stride, "distance between app load addresses (0 reuses one slot)")
	fs.Uint64Var(&c.StackTop, "stack-top", c.StackTop, "initial user stack pointer")
	fs.Uint64Var(&c.StackSize, "stack-size", c.StackSize, "size of the user stack")
	fs.Uint64Var(&c.HeapBase, "heap-base", c.HeapBase, "address brk grows the heap from")
	fs.Uint64Var(&c.TimerQuantum, "timer", c.TimerQuantum, "kill programs after this many instructions (0 = never)")
	fs.StringSliceVar(&c.Disabled, "disable", c.Disabled, "capability categories to leave unregistered")
	fs.BoolVar(&c.TTY, "tty", c.TTY, "write program output to the controlling terminal")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "log level (trace, debug, info, warn, error)")
	fs.BoolVarP(&c.Debug, "debug", "d", c.Debug, "log at debug level (TRACE=1 for trace)")
}

func envUint(getenv func(string) string, name string, dst *uint64) error {
	str := getenv(name)
	if str == "" {
		return nil
	}

	v, err := strconv.ParseUint(str, 0, 64)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", name)
	}

	*dst = v
	return nil
}

// FromEnv overrides the configuration from BATCHOS_* variables. A nil
// getenv reads the process environment.
func (c *Config) FromEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if str := getenv("BATCHOS_TABLE"); str != "" {
		c.Table = str
	}

	nums := []struct {
		name string
		dst  *uint64
	}{
		{"BATCHOS_BASE", &c.Base},
		{"BATCHOS_STRIDE", &c.Stride},
		{"BATCHOS_STACK_TOP", &c.StackTop},
		{"BATCHOS_STACK_SIZE", &c.StackSize},
		{"BATCHOS_HEAP_BASE", &c.HeapBase},
		{"BATCHOS_TIMER", &c.TimerQuantum},
	}

	for _, n := range nums {
		if err := envUint(getenv, n.name, n.dst); err != nil {
			return err
		}
	}

	if str := getenv("BATCHOS_DISABLE"); str != "" {
		c.Disabled = strings.Split(str, ",")
	}

	if str := getenv("BATCHOS_TTY"); str != "" {
		b, err := strconv.ParseBool(str)
		if err != nil {
			return errors.Wrap(err, "parsing BATCHOS_TTY")
		}

		c.TTY = b
	}

	if str := getenv("BATCHOS_LOG"); str != "" {
		c.LogLevel = str
	}

	return nil
}

// DisabledCategories parses Disabled, dropping duplicates.
func (c *Config) DisabledCategories() ([]kernel.Category, error) {
	var cats []kernel.Category

	for _, name := range c.Disabled {
		if strings.TrimSpace(name) == "" {
			continue
		}

		cat, ok := kernel.ParseCategory(name)
		if !ok {
			return nil, errors.Wrap(ErrUnknownCategory, name)
		}

		cats = append(cats, cat)
	}

	slices.Sort(cats)

	return slices.Compact(cats), nil
}

// ApplyLogLevel sets the level of the kernel logger. TRACE in the
// environment forces trace over whatever LogLevel says.
func (c *Config) ApplyLogLevel(getenv func(string) string) bool {
	ok := clog.Configure(c.LogLevel, getenv)

	if c.Debug && !clog.L.IsDebug() {
		clog.EnableDebug()
	}

	return ok
}

func (c *Config) StackBottom() uint64 {
	return c.StackTop - c.StackSize
}

// Validate reports configuration errors that must stop the kernel before
// any program runs.
func (c *Config) Validate() error {
	if c.Table == "" && len(c.Apps) == 0 {
		return ErrNoImages
	}

	if c.StackSize == 0 || c.StackSize > c.StackTop {
		return errors.Wrapf(ErrBadStack, "size %#x below top %#x", c.StackSize, c.StackTop)
	}

	if c.StackTop%16 != 0 {
		return errors.Wrapf(ErrBadStack, "top %#x is not 16 byte aligned", c.StackTop)
	}

	if _, err := c.DisabledCategories(); err != nil {
		return err
	}

	return nil
}

// CheckLayout verifies the stack stays clear of the run slots, which span
// [start, end).
func (c *Config) CheckLayout(start, end uint64) error {
	if c.StackBottom() < end && start < c.StackTop {
		return errors.Wrapf(ErrStackOverlap, "stack %#x-%#x, slots %#x-%#x", c.StackBottom(), c.StackTop, start, end)
	}

	return nil
}
