package kernel

import (
	"context"
	"testing"

	"github.com/evanphx/batchos/abi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

type onlyWrite struct {
	UnimplementedIO
	n int
}

func (o *onlyWrite) Write(ctx context.Context, c Caller, fd int, buf, n uint64) int64 {
	o.n++
	return int64(n)
}

func TestRegistry(t *testing.T) {
	n := neko.Modern(t)

	n.It("starts with every category absent", func(t *testing.T) {
		reg := NewRegistry()

		for c := Category(0); c < NumCategories; c++ {
			require.False(t, reg.Has(c), c.String())
		}

		_, ok := reg.IO()
		require.False(t, ok)
		require.Empty(t, reg.Registered())
	})

	n.It("stores an implementation exactly once", func(t *testing.T) {
		reg := NewRegistry()

		first := &onlyWrite{}
		require.NoError(t, reg.InitIO(first))

		err := reg.InitIO(&onlyWrite{})
		require.Equal(t, ErrAlreadyRegistered, errors.Cause(err))

		io, ok := reg.IO()
		require.True(t, ok)
		require.Same(t, first, io)

		require.True(t, reg.Has(CategoryIO))
		require.Equal(t, []Category{CategoryIO}, reg.Registered())
	})

	n.It("refuses registration once sealed", func(t *testing.T) {
		reg := NewRegistry()

		require.NoError(t, reg.InitClock(UnimplementedClock{}))

		reg.Seal()
		require.True(t, reg.Sealed())

		err := reg.InitProcess(UnimplementedProcess{})
		require.Equal(t, ErrSealed, errors.Cause(err))
		require.False(t, reg.Has(CategoryProcess))
		require.True(t, reg.Has(CategoryClock))
	})

	n.It("refuses nil implementations", func(t *testing.T) {
		reg := NewRegistry()

		err := reg.InitSync(nil)
		require.Equal(t, ErrNilCapability, errors.Cause(err))
		require.False(t, reg.Has(CategorySync))

		require.NoError(t, reg.InitSync(UnimplementedSync{}))
	})

	n.It("answers unimplemented operations with ENOSYS", func(t *testing.T) {
		ctx := context.Background()

		w := &onlyWrite{}
		require.Equal(t, int64(5), w.Write(ctx, Caller{}, 1, 0, 5))
		require.Equal(t, int64(-abi.ENOSYS), w.Read(ctx, Caller{}, 0, 0, 5))

		require.Equal(t, int64(-abi.ENOSYS), UnimplementedProcess{}.Fork(ctx, Caller{}))
		require.Equal(t, int64(-abi.ENOSYS), UnimplementedThread{}.Gettid(ctx, Caller{}))
		require.Equal(t, int64(-abi.ENOSYS), UnimplementedSignal{}.Kill(ctx, Caller{}, 0, 9))
		require.Equal(t, int64(-abi.ENOSYS), UnimplementedMemory{}.Brk(ctx, Caller{}, 0))
	})

	n.It("parses category names", func(t *testing.T) {
		c, ok := ParseCategory(" Clock ")
		require.True(t, ok)
		require.Equal(t, CategoryClock, c)

		_, ok = ParseCategory("filesystem")
		require.False(t, ok)
	})

	n.Meow()
}
