// Package loader reads the table of program images and places each image
// in the run slot before it executes.
package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// DefaultSlotSize is the run slot size used when the table's stride is 0.
const DefaultSlotSize = 2 << 20

const headerSize = 24

var (
	ErrNoTable    = errors.New("no image table")
	ErrShortTable = errors.New("image table truncated")
	ErrBadOffsets = errors.New("image table offsets not strictly increasing")
)

type header struct {
	Base   uint64
	Stride uint64
	Count  uint64
}

// Table is the read-only catalog of program images.
type Table struct {
	Base   uint64
	Stride uint64
	Count  int

	offsets []uint64
	data    []byte
}

// AppImage is one program, borrowed from the table's blob.
type AppImage struct {
	Index       int
	Bytes       []byte
	LoadAddress uint64
}

// Locate binds to the table at the start of blob. Any defect in the table
// is an error; the blob is not copied.
func Locate(blob []byte) (*Table, error) {
	if len(blob) == 0 {
		return nil, ErrNoTable
	}

	var hdr header

	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(ErrShortTable, "reading header")
	}

	avail := uint64(len(blob)-headerSize) / 8
	if hdr.Count >= avail {
		return nil, errors.Wrapf(ErrShortTable, "count %d does not fit in %d bytes", hdr.Count, len(blob))
	}

	offsets := make([]uint64, hdr.Count+1)
	rest := blob[headerSize:]

	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(rest[i*8:])
	}

	data := rest[len(offsets)*8:]

	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			return nil, errors.Wrapf(ErrBadOffsets, "offset %d (%d) after %d", i, offsets[i], offsets[i-1])
		}
	}

	if offsets[hdr.Count] != uint64(len(data)) {
		return nil, errors.Wrapf(ErrShortTable, "last offset %d, image data is %d bytes", offsets[hdr.Count], len(data))
	}

	return &Table{
		Base:    hdr.Base,
		Stride:  hdr.Stride,
		Count:   int(hdr.Count),
		offsets: offsets,
		data:    data,
	}, nil
}

// SlotSize is the size of the region each image runs in.
func (t *Table) SlotSize() uint64 {
	if t.Stride > 0 {
		return t.Stride
	}

	return DefaultSlotSize
}

// InPlace reports whether images run from the blob instead of a copy.
func (t *Table) InPlace() bool {
	return t.Base == 0
}

func (t *Table) Image(i int) AppImage {
	return AppImage{
		Index:       i,
		Bytes:       t.data[t.offsets[i]:t.offsets[i+1]],
		LoadAddress: t.Base + uint64(i)*t.Stride,
	}
}

// Sequence is a single forward pass over the table.
type Sequence struct {
	t    *Table
	next int
}

func (t *Table) Sequence() *Sequence {
	return &Sequence{t: t}
}

func (s *Sequence) Next() (AppImage, bool) {
	if s.next >= s.t.Count {
		return AppImage{}, false
	}

	img := s.t.Image(s.next)
	s.next++

	return img, true
}

// BuildTable lays images out in the table format Locate reads.
func BuildTable(base, stride uint64, images ...[]byte) []byte {
	var buf bytes.Buffer

	hdr := header{Base: base, Stride: stride, Count: uint64(len(images))}
	binary.Write(&buf, binary.LittleEndian, hdr)

	var off uint64

	for _, img := range images {
		binary.Write(&buf, binary.LittleEndian, off)
		off += uint64(len(img))
	}

	binary.Write(&buf, binary.LittleEndian, off)

	for _, img := range images {
		buf.Write(img)
	}

	return buf.Bytes()
}
