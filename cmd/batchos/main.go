package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/evanphx/batchos/config"
	"github.com/evanphx/batchos/console"
	"github.com/evanphx/batchos/kernel"
	"github.com/evanphx/batchos/loader"
	clog "github.com/evanphx/batchos/log"
	"github.com/evanphx/batchos/scheduler"
	"github.com/evanphx/batchos/syscalls"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

func readTable(cfg *config.Config) (*loader.Table, error) {
	if cfg.Table != "" {
		blob, err := os.ReadFile(cfg.Table)
		if err != nil {
			return nil, errors.Wrap(err, "reading image table")
		}

		return loader.Locate(blob)
	}

	var images [][]byte

	for _, path := range cfg.Apps {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading app %s", path)
		}

		images = append(images, data)
	}

	return loader.Locate(loader.BuildTable(cfg.Base, cfg.Stride, images...))
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	disabled, err := cfg.DisabledCategories()
	if err != nil {
		return err
	}

	table, err := readTable(cfg)
	if err != nil {
		return err
	}

	reg := kernel.NewRegistry()

	if err := syscalls.RegisterDefaults(reg, clog.L.Named("syscall"), disabled); err != nil {
		return err
	}

	k, err := kernel.NewKernel(clog.L.Named("kernel"), reg)
	if err != nil {
		return err
	}

	out := console.NewWriter(console.NewWriterSink(os.Stdout))

	if cfg.TTY {
		t, err := console.OpenTTY()
		if err != nil {
			return err
		}

		defer t.Close()

		out = console.NewWriter(t)
	}

	k.SetStdio(os.Stdin, out, os.Stderr)

	sched, err := scheduler.New(clog.L, cfg, table, k)
	if err != nil {
		return err
	}

	rep, err := sched.Run(ctx)
	if rep != nil {
		fmt.Fprint(os.Stderr, rep.Summary())
	}

	return err
}

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			clog.L.Error("could not create CPU profile", "error", err)
			os.Exit(1)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			clog.L.Error("could not start CPU profile", "error", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "pprof: profiling started\n")
	}

	cfg := config.Default()

	if err := cfg.FromEnv(nil); err != nil {
		clog.L.Error("bad environment", "error", err)
		os.Exit(1)
	}

	cfg.Flags(pflag.CommandLine)
	pflag.Parse()

	cfg.Apps = pflag.Args()

	if !cfg.ApplyLogLevel(nil) {
		clog.L.Warn("unknown log level", "level", cfg.LogLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := run(ctx, cfg)

	if cpuprofile != "" {
		pprof.StopCPUProfile()
		fmt.Fprintf(os.Stderr, "pprof: profiling finished\n")
	}

	if err != nil {
		clog.L.Error("batch failed", "error", err)
		os.Exit(1)
	}
}
