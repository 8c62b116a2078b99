package config

import (
	"testing"

	"github.com/evanphx/batchos/kernel"
	clog "github.com/evanphx/batchos/log"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string {
		return vals[k]
	}
}

func TestConfig(t *testing.T) {
	n := neko.Modern(t)

	n.It("has a usable default layout", func(t *testing.T) {
		c := Default()
		c.Table = "apps.bin"

		require.NoError(t, c.Validate())
		require.Equal(t, uint64(DefaultStackTop-DefaultStackSize), c.StackBottom())
		require.Zero(t, c.TimerQuantum)
		require.NoError(t, c.CheckLayout(DefaultBase, DefaultBase+2<<20))
	})

	n.It("needs something to run", func(t *testing.T) {
		require.Equal(t, ErrNoImages, Default().Validate())
	})

	n.It("reads overrides from the environment", func(t *testing.T) {
		c := Default()

		err := c.FromEnv(env(map[string]string{
			"BATCHOS_TABLE":   "t.bin",
			"BATCHOS_BASE":    "0x1000",
			"BATCHOS_STRIDE":  "4096",
			"BATCHOS_TIMER":   "100000",
			"BATCHOS_DISABLE": "signal,thread",
			"BATCHOS_TTY":     "true",
			"BATCHOS_LOG":     "debug",
		}))
		require.NoError(t, err)

		require.Equal(t, "t.bin", c.Table)
		require.Equal(t, uint64(0x1000), c.Base)
		require.Equal(t, uint64(4096), c.Stride)
		require.Equal(t, uint64(100000), c.TimerQuantum)
		require.Equal(t, []string{"signal", "thread"}, c.Disabled)
		require.True(t, c.TTY)
		require.Equal(t, "debug", c.LogLevel)

		err = c.FromEnv(env(map[string]string{"BATCHOS_STACK_TOP": "high"}))
		require.Error(t, err)
	})

	n.It("binds command line flags", func(t *testing.T) {
		c := Default()

		fs := pflag.NewFlagSet("batchos", pflag.ContinueOnError)
		c.Flags(fs)

		err := fs.Parse([]string{"--stride", "0x20000", "--disable", "clock,io", "-t", "x.bin", "--timer=50"})
		require.NoError(t, err)

		require.Equal(t, uint64(0x20000), c.Stride)
		require.Equal(t, "x.bin", c.Table)
		require.Equal(t, uint64(50), c.TimerQuantum)
		require.Equal(t, uint64(DefaultBase), c.Base)
		require.False(t, c.Debug)

		require.NoError(t, fs.Parse([]string{"-d"}))
		require.True(t, c.Debug)
	})

	n.It("keeps trace logging when TRACE is set", func(t *testing.T) {
		defer clog.L.SetLevel(hclog.Info)

		c := Default()
		require.Equal(t, "info", c.LogLevel)

		require.True(t, c.ApplyLogLevel(env(map[string]string{"TRACE": "1"})))
		require.True(t, clog.L.IsTrace())

		require.True(t, c.ApplyLogLevel(env(nil)))
		require.False(t, clog.L.IsDebug())

		c.Debug = true
		require.True(t, c.ApplyLogLevel(env(nil)))
		require.True(t, clog.L.IsDebug())
	})

	n.It("parses disabled categories", func(t *testing.T) {
		c := Default()
		c.Disabled = []string{"sync", "io", " sync", ""}

		cats, err := c.DisabledCategories()
		require.NoError(t, err)
		require.Equal(t, []kernel.Category{kernel.CategoryIO, kernel.CategorySync}, cats)

		c.Disabled = []string{"disk"}
		c.Table = "t"

		require.Equal(t, ErrUnknownCategory, errors.Cause(c.Validate()))
	})

	n.It("refuses a stack that collides with the run slots", func(t *testing.T) {
		c := Default()
		c.Table = "t"

		require.Equal(t, ErrStackOverlap, errors.Cause(c.CheckLayout(DefaultStackTop-0x100, DefaultStackTop+0x100)))

		c.StackSize = 0
		require.Equal(t, ErrBadStack, errors.Cause(c.Validate()))

		c.StackSize = 0x1000
		c.StackTop = 0x7fff_f008
		require.Equal(t, ErrBadStack, errors.Cause(c.Validate()))
	})

	n.Meow()
}
