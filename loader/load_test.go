package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/evanphx/batchos/memory"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestTable(t *testing.T) {
	n := neko.Modern(t)

	n.It("yields every image in order", func(t *testing.T) {
		images := [][]byte{
			[]byte("first"),
			[]byte("second image"),
			{1},
		}

		tbl, err := Locate(BuildTable(0x80400000, 0x20000, images...))
		require.NoError(t, err)

		require.Equal(t, uint64(0x80400000), tbl.Base)
		require.Equal(t, uint64(0x20000), tbl.Stride)
		require.Equal(t, 3, tbl.Count)

		seq := tbl.Sequence()

		for i, want := range images {
			img, ok := seq.Next()
			require.True(t, ok)

			require.Equal(t, i, img.Index)
			require.Equal(t, want, img.Bytes)
			require.Equal(t, uint64(0x80400000+i*0x20000), img.LoadAddress)
		}

		_, ok := seq.Next()
		require.False(t, ok)
	})

	n.It("loads every image at the base when stride is zero", func(t *testing.T) {
		tbl, err := Locate(BuildTable(0x1000, 0, []byte("a"), []byte("bb")))
		require.NoError(t, err)

		require.Equal(t, uint64(DefaultSlotSize), tbl.SlotSize())
		require.Equal(t, uint64(0x1000), tbl.Image(0).LoadAddress)
		require.Equal(t, uint64(0x1000), tbl.Image(1).LoadAddress)
	})

	n.It("accepts an empty batch", func(t *testing.T) {
		tbl, err := Locate(BuildTable(0x1000, 0))
		require.NoError(t, err)

		_, ok := tbl.Sequence().Next()
		require.False(t, ok)
	})

	n.It("rejects missing and truncated tables", func(t *testing.T) {
		_, err := Locate(nil)
		require.Equal(t, ErrNoTable, err)

		_, err = Locate(make([]byte, 10))
		require.Equal(t, ErrShortTable, errors.Cause(err))

		blob := BuildTable(0x1000, 0, []byte("abc"))

		_, err = Locate(blob[:len(blob)-1])
		require.Equal(t, ErrShortTable, errors.Cause(err))

		var huge bytes.Buffer
		binary.Write(&huge, binary.LittleEndian, [3]uint64{0x1000, 0, 1 << 40})

		_, err = Locate(huge.Bytes())
		require.Equal(t, ErrShortTable, errors.Cause(err))
	})

	n.It("rejects offsets that do not increase", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, [3]uint64{0x1000, 0, 2})
		binary.Write(&buf, binary.LittleEndian, [3]uint64{0, 0, 4})
		buf.WriteString("abcd")

		_, err := Locate(buf.Bytes())
		require.Equal(t, ErrBadOffsets, errors.Cause(err))
	})

	n.Meow()
}

func TestLoader(t *testing.T) {
	n := neko.Modern(t)

	n.It("overwrites the previous program's footprint", func(t *testing.T) {
		long := bytes.Repeat([]byte{0xaa}, 3*memory.PageSize+7)
		short := []byte{1, 2, 3}

		tbl, err := Locate(BuildTable(0x1000, 0, long, short))
		require.NoError(t, err)

		mem := memory.NewVirtualMemory()
		ld := NewLoader(nil, mem, tbl)
		require.NoError(t, ld.Check())

		inv, err := ld.Load(tbl.Image(0))
		require.NoError(t, err)
		require.True(t, inv)
		ld.Flushed()

		got, err := mem.Project(0x1000, uint64(len(long)))
		require.NoError(t, err)
		require.Equal(t, long, got)

		inv, err = ld.Load(tbl.Image(1))
		require.NoError(t, err)
		require.True(t, inv)

		got, err = mem.Project(0x1000, 3)
		require.NoError(t, err)
		require.Equal(t, short, got)

		rest, err := mem.Project(0x1003, DefaultSlotSize-3)
		require.NoError(t, err)
		require.Equal(t, make([]byte, DefaultSlotSize-3), rest)
	})

	n.It("skips invalidation when the slot is unchanged", func(t *testing.T) {
		code := []byte{0x13, 0, 0, 0}

		tbl, err := Locate(BuildTable(0x1000, 0, code, code, []byte{0x73, 0, 0, 0}))
		require.NoError(t, err)

		mem := memory.NewVirtualMemory()
		ld := NewLoader(nil, mem, tbl)

		inv, err := ld.Load(tbl.Image(0))
		require.NoError(t, err)
		require.True(t, inv)
		ld.Flushed()
		ld.Settle(false)

		inv, err = ld.Load(tbl.Image(1))
		require.NoError(t, err)
		require.False(t, inv)
		ld.Settle(false)

		inv, err = ld.Load(tbl.Image(2))
		require.NoError(t, err)
		require.True(t, inv)
	})

	n.It("invalidates after a program rewrote its slot", func(t *testing.T) {
		code := []byte{0x13, 0, 0, 0}

		tbl, err := Locate(BuildTable(0x1000, 0, code, code))
		require.NoError(t, err)

		mem := memory.NewVirtualMemory()
		ld := NewLoader(nil, mem, tbl)

		_, err = ld.Load(tbl.Image(0))
		require.NoError(t, err)
		ld.Flushed()

		_, err = mem.WriteAt([]byte{0x73}, 0x1000)
		require.NoError(t, err)
		ld.Settle(false)

		inv, err := ld.Load(tbl.Image(1))
		require.NoError(t, err)
		require.True(t, inv)
	})

	n.It("invalidates after a program flushed the cache itself", func(t *testing.T) {
		code := []byte{0x13, 0, 0, 0}

		tbl, err := Locate(BuildTable(0x1000, 0, code, code))
		require.NoError(t, err)

		mem := memory.NewVirtualMemory()
		ld := NewLoader(nil, mem, tbl)

		_, err = ld.Load(tbl.Image(0))
		require.NoError(t, err)
		ld.Flushed()

		// rewritten, fenced, then put back as loaded
		_, err = mem.WriteAt([]byte{0x73}, 0x1000)
		require.NoError(t, err)
		_, err = mem.WriteAt([]byte{0x13}, 0x1000)
		require.NoError(t, err)
		ld.Settle(true)

		inv, err := ld.Load(tbl.Image(1))
		require.NoError(t, err)
		require.True(t, inv)
	})

	n.It("moves between slots when the stride is set", func(t *testing.T) {
		tbl, err := Locate(BuildTable(0x10000, 0x10000, []byte("one"), []byte("two")))
		require.NoError(t, err)

		mem := memory.NewVirtualMemory()
		ld := NewLoader(nil, mem, tbl)
		require.Equal(t, uint64(0x10000), ld.SlotSize())

		_, err = ld.Load(tbl.Image(0))
		require.NoError(t, err)
		ld.Flushed()

		inv, err := ld.Load(tbl.Image(1))
		require.NoError(t, err)
		require.True(t, inv)

		_, ok := mem.FindRegion(0x10000)
		require.False(t, ok)

		got, err := mem.Project(0x20000, 3)
		require.NoError(t, err)
		require.Equal(t, []byte("two"), got)
	})

	n.It("maps images in place when the base is zero", func(t *testing.T) {
		blob := BuildTable(0, 0, []byte{1, 2, 3, 4}, []byte{5, 6})

		tbl, err := Locate(blob)
		require.NoError(t, err)
		require.True(t, tbl.InPlace())

		mem := memory.NewVirtualMemory()
		ld := NewLoader(nil, mem, tbl)

		_, err = ld.Load(tbl.Image(0))
		require.NoError(t, err)

		_, err = mem.WriteAt([]byte{9}, 0)
		require.NoError(t, err)
		require.Equal(t, byte(9), tbl.Image(0).Bytes[0])

		_, err = ld.Load(tbl.Image(1))
		require.NoError(t, err)

		reg, ok := mem.FindRegion(0)
		require.True(t, ok)
		require.Equal(t, uint64(2), reg.Size)
	})

	n.It("refuses images larger than their slot", func(t *testing.T) {
		tbl, err := Locate(BuildTable(0x10000, 0x1000, make([]byte, 0x1001)))
		require.NoError(t, err)

		ld := NewLoader(nil, memory.NewVirtualMemory(), tbl)

		require.Equal(t, ErrImageTooLarge, errors.Cause(ld.Check()))

		_, err = ld.Load(tbl.Image(0))
		require.Equal(t, ErrImageTooLarge, errors.Cause(err))
	})

	n.Meow()
}
