package syscalls

import (
	"golang.org/x/exp/slices"

	"github.com/evanphx/batchos/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// RegisterDefaults installs the kernel's own capabilities, skipping the
// categories in disabled. Signal, thread and sync have no implementation
// in a batch kernel and stay empty.
func RegisterDefaults(reg *kernel.Registry, l hclog.Logger, disabled []kernel.Category) error {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	type install struct {
		cat kernel.Category
		fn  func() error
	}

	steps := []install{
		{kernel.CategoryIO, func() error { return reg.InitIO(&ConsoleIO{L: l.Named("io")}) }},
		{kernel.CategoryProcess, func() error { return reg.InitProcess(BatchProcess{}) }},
		{kernel.CategoryClock, func() error { return reg.InitClock(NewHostClock()) }},
		{kernel.CategoryMemory, func() error { return reg.InitMemory(&RegionMemory{L: l.Named("memory")}) }},
		{kernel.CategoryScheduling, func() error { return reg.InitScheduling(Uniprocessor{}) }},
	}

	for _, s := range steps {
		if slices.Contains(disabled, s.cat) {
			l.Debug("capability disabled", "category", s.cat)
			continue
		}

		if err := s.fn(); err != nil {
			return err
		}
	}

	return nil
}
