package loader

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/evanphx/batchos/memory"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var ErrImageTooLarge = errors.New("image larger than its run slot")

type digest [blake2b.Size256]byte

func (d digest) String() string {
	return base64.RawURLEncoding.EncodeToString(d[:8])
}

func digestOf(b []byte) digest {
	return blake2b.Sum256(bytes.TrimRight(b, "\x00"))
}

// slot tracks what the instruction cache may hold for one run slot.
type slot struct {
	addr   uint64
	region *memory.Region

	loaded  digest
	flushed digest
	clean   bool
}

// Loader places images into their run slots. It keeps a digest of each
// slot's contents as of the last instruction cache invalidation, so it
// can tell the caller when the cache has to be purged before a program
// runs.
type Loader struct {
	L hclog.Logger

	mem      *memory.VirtualMemory
	table    *Table
	slotSize uint64

	slots   map[uint64]*slot
	current *slot
}

func NewLoader(l hclog.Logger, mem *memory.VirtualMemory, table *Table) *Loader {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	return &Loader{
		L:        l,
		mem:      mem,
		table:    table,
		slotSize: table.SlotSize(),
		slots:    make(map[uint64]*slot),
	}
}

func (l *Loader) SlotSize() uint64 {
	return l.slotSize
}

// Check verifies every image fits the run slot it will be copied into.
func (l *Loader) Check() error {
	if l.table.InPlace() {
		return nil
	}

	for i := 0; i < l.table.Count; i++ {
		img := l.table.Image(i)

		if uint64(len(img.Bytes)) > l.slotSize {
			return errors.Wrapf(ErrImageTooLarge, "image %d is %d bytes, slot is %d", i, len(img.Bytes), l.slotSize)
		}

		if img.LoadAddress+l.slotSize < img.LoadAddress {
			return errors.Wrapf(memory.ErrBadRegionRequest, "image %d slot at %x wraps", i, img.LoadAddress)
		}
	}

	return nil
}

func (l *Loader) slotFor(addr uint64) *slot {
	s, ok := l.slots[addr]
	if !ok {
		s = &slot{addr: addr}
		l.slots[addr] = s
	}

	return s
}

// Load makes img the resident program. It reports whether the instruction
// cache must be invalidated before the program runs.
func (l *Loader) Load(img AppImage) (bool, error) {
	s := l.slotFor(img.LoadAddress)

	var invalidate bool

	if l.current != nil && l.current != s {
		l.release(l.current)
		invalidate = true
	}

	var d digest

	if l.table.InPlace() {
		if s.region != nil {
			l.mem.RemoveRegion(s.region)
			s.region = nil
		}

		reg, err := l.mem.MapBytes(img.LoadAddress, img.Bytes)
		if err != nil {
			return false, errors.Wrapf(err, "mapping image %d in place", img.Index)
		}

		s.region = reg
		d = digestOf(img.Bytes)
	} else {
		if uint64(len(img.Bytes)) > l.slotSize {
			return false, errors.Wrapf(ErrImageTooLarge, "image %d", img.Index)
		}

		if s.region == nil {
			reg, err := l.mem.NewRegion(img.LoadAddress, l.slotSize)
			if err != nil {
				return false, errors.Wrapf(err, "creating run slot at %x", img.LoadAddress)
			}

			s.region = reg
		}

		s.region.Reset()

		copy(s.region.Project(img.LoadAddress, uint64(len(img.Bytes))), img.Bytes)

		d = digestOf(s.region.Contents())
	}

	l.current = s
	s.loaded = d

	if !s.clean || d != s.flushed {
		invalidate = true
	}

	l.L.Debug("image-loaded",
		"index", img.Index,
		"addr", fmt.Sprintf("%#x", img.LoadAddress),
		"size", len(img.Bytes),
		"digest", d,
		"invalidate", invalidate)

	return invalidate, nil
}

// Flushed records that the instruction cache was invalidated with the
// current program's slot as loaded.
func (l *Loader) Flushed() {
	if s := l.current; s != nil {
		s.flushed = s.loaded
		s.clean = true
	}
}

// Settle is called when the current program ends. fenced reports whether
// the program flushed the instruction cache itself. A program that wrote
// into its own slot, or flushed while the slot held other bytes, may have
// left decoded instructions that no longer match memory, so the slot is
// marked dirty.
func (l *Loader) Settle(fenced bool) {
	s := l.current
	if s == nil || s.region == nil {
		return
	}

	switch {
	case fenced:
		l.L.Trace("slot-fenced", "addr", fmt.Sprintf("%#x", s.addr))
		s.clean = false
	case digestOf(s.region.Contents()) != s.loaded:
		l.L.Trace("slot-modified", "addr", fmt.Sprintf("%#x", s.addr))
		s.clean = false
	}
}

func (l *Loader) release(s *slot) {
	if s.region != nil {
		s.region.Reset()
		l.mem.RemoveRegion(s.region)
		s.region = nil
	}

	s.clean = false
}
