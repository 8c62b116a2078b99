package memory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestVirtualMemory(t *testing.T) {
	n := neko.Modern(t)

	n.It("projects into a lazily allocated region", func(t *testing.T) {
		vm := NewVirtualMemory()

		reg, err := vm.NewRegion(0x1000, 2*1024*1024)
		require.NoError(t, err)

		require.Equal(t, 0, reg.Resident())

		b, err := vm.Project(0x1004, 4)
		require.NoError(t, err)

		copy(b, []byte{1, 2, 3, 4})

		out := make([]byte, 4)
		_, err = vm.ReadAt(out, 0x1004)
		require.NoError(t, err)

		require.Equal(t, []byte{1, 2, 3, 4}, out)
		require.Equal(t, PageSize, reg.Resident())
	})

	n.It("rejects accesses outside every region", func(t *testing.T) {
		vm := NewVirtualMemory()

		_, err := vm.NewRegion(0x1000, 0x1000)
		require.NoError(t, err)

		_, err = vm.Project(0x2000, 1)
		require.Equal(t, ErrInvalidMemoryAccess, errors.Cause(err))

		_, err = vm.Project(0x1ffe, 4)
		require.Equal(t, ErrInvalidMemoryAccess, errors.Cause(err))
	})

	n.It("zeroes a region on reset", func(t *testing.T) {
		vm := NewVirtualMemory()

		reg, err := vm.NewRegion(0x1000, 0x1000)
		require.NoError(t, err)

		_, err = vm.WriteAt([]byte{0xff}, 0x1010)
		require.NoError(t, err)

		reg.Reset()

		out := []byte{0xaa}
		_, err = vm.ReadAt(out, 0x1010)
		require.NoError(t, err)

		require.Equal(t, byte(0), out[0])
	})

	n.It("maps caller bytes in place", func(t *testing.T) {
		vm := NewVirtualMemory()

		backing := []byte{9, 8, 7, 6}

		_, err := vm.MapBytes(0, backing)
		require.NoError(t, err)

		_, err = vm.WriteAt([]byte{1}, 2)
		require.NoError(t, err)

		require.Equal(t, byte(1), backing[2])

		_, err = vm.Project(3, 2)
		require.Error(t, err)
	})

	n.It("refuses overlapping regions", func(t *testing.T) {
		vm := NewVirtualMemory()

		_, err := vm.NewRegion(0x1000, 0x2000)
		require.NoError(t, err)

		_, err = vm.NewRegion(0x800, 0x1000)
		require.Equal(t, ErrRegionOverlap, errors.Cause(err))

		_, err = vm.MapBytes(0x2fff, []byte{1})
		require.Equal(t, ErrRegionOverlap, errors.Cause(err))
	})

	n.It("allocates anywhere regions past existing ones", func(t *testing.T) {
		vm := NewVirtualMemory()
		vm.SetMmapBase(0x10000)

		_, err := vm.NewRegion(0x10000, 0x1000)
		require.NoError(t, err)

		reg, err := vm.NewRegion(Anywhere, 0x1800)
		require.NoError(t, err)

		require.True(t, reg.Start >= 0x11000)
		require.Equal(t, uint64(0x1800), reg.Size)

		next, err := vm.NewRegion(Anywhere, 0x10)
		require.NoError(t, err)
		require.True(t, next.Start >= reg.End())
	})

	n.It("resizes and removes regions", func(t *testing.T) {
		vm := NewVirtualMemory()

		reg, err := vm.NewRegion(0x4000, 0x1000)
		require.NoError(t, err)

		_, err = vm.NewRegion(0x6000, 0x1000)
		require.NoError(t, err)

		require.NoError(t, vm.Resize(reg, 0x2000))
		require.Equal(t, 0x3000, vm.Size())

		err = vm.Resize(reg, 0x3000)
		require.Equal(t, ErrRegionOverlap, errors.Cause(err))

		vm.RemoveRegion(reg)

		_, ok := vm.FindRegion(0x4000)
		require.False(t, ok)
		require.Equal(t, 0x1000, vm.Size())
	})

	n.Meow()
}
