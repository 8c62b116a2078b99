package memory

import (
	"sort"

	"github.com/pkg/errors"
)

const PageSize = 4096

// Anywhere asks NewRegion to choose the start address.
const Anywhere = ^uint64(0)

type Region struct {
	Start, Size uint64

	linear []byte
	fixed  bool
}

func (reg *Region) Contains(x uint64) bool {
	if x < reg.Start {
		return false
	}

	if x-reg.Start >= reg.Size {
		return false
	}

	return true
}

func (reg *Region) End() uint64 {
	return reg.Start + reg.Size
}

func pageRound(sz uint64) uint64 {
	if sz < PageSize {
		return PageSize
	}

	diff := sz % PageSize
	if diff == 0 {
		return sz
	}

	return sz + (PageSize - diff)
}

func (reg *Region) Project(addr, sz uint64) []byte {
	offset := addr - reg.Start

	if reg.fixed {
		return reg.linear[offset : offset+sz]
	}

	need := pageRound(offset + sz)
	if need > reg.Size {
		need = reg.Size
	}

	if uint64(len(reg.linear)) < offset+sz {
		slice := make([]byte, need)
		copy(slice, reg.linear)

		reg.linear = slice
	}

	return reg.linear[offset : offset+sz]
}

// Reset drops the backing storage so every byte of the region reads as zero
// again. Regions that expose caller-owned bytes are left untouched.
func (reg *Region) Reset() {
	if reg.fixed {
		return
	}

	reg.linear = nil
}

// Resident reports how many bytes of the region have backing storage.
func (reg *Region) Resident() int {
	return len(reg.linear)
}

// Contents returns the backed prefix of the region. Bytes past it read as
// zero.
func (reg *Region) Contents() []byte {
	return reg.linear
}

type VirtualMemory struct {
	regions []*Region

	nextMmapStart uint64
	size          uint64
}

func NewVirtualMemory() *VirtualMemory {
	return &VirtualMemory{
		nextMmapStart: 0x1000_0000,
	}
}

// SetMmapBase moves the start of the area NewRegion allocates from when
// asked for Anywhere.
func (vm *VirtualMemory) SetMmapBase(addr uint64) {
	vm.nextMmapStart = pageRound(addr)
}

func (vm *VirtualMemory) Size() int {
	return int(vm.size)
}

func (vm *VirtualMemory) Regions() []*Region {
	return vm.regions
}

func (vm *VirtualMemory) FindRegion(addr uint64) (*Region, bool) {
	for _, reg := range vm.regions {
		if reg.Contains(addr) {
			return reg, true
		}
	}

	return nil, false
}

var ErrInvalidMemoryAccess = errors.New("invalid memory access via projection")

func (vm *VirtualMemory) Project(addr, sz uint64) ([]byte, error) {
	reg, ok := vm.FindRegion(addr)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidMemoryAccess, "error projecting address=%x, size=%x", addr, sz)
	}

	if sz > reg.End()-addr {
		return nil, errors.Wrapf(ErrInvalidMemoryAccess, "projection crosses region end: address=%x, size=%x", addr, sz)
	}

	return reg.Project(addr, sz), nil
}

// ReadAt implements io.ReaderAt over the physical address space.
func (vm *VirtualMemory) ReadAt(p []byte, off int64) (int, error) {
	mem, err := vm.Project(uint64(off), uint64(len(p)))
	if err != nil {
		return 0, err
	}

	copy(p, mem)

	return len(p), nil
}

// WriteAt implements io.WriterAt over the physical address space.
func (vm *VirtualMemory) WriteAt(p []byte, off int64) (int, error) {
	mem, err := vm.Project(uint64(off), uint64(len(p)))
	if err != nil {
		return 0, err
	}

	copy(mem, p)

	return len(p), nil
}

var (
	ErrBadRegionRequest = errors.New("bad region request")
	ErrRegionOverlap    = errors.New("region overlaps an existing region")
)

func (vm *VirtualMemory) overlaps(start, size uint64) bool {
	for _, reg := range vm.regions {
		if start < reg.End() && reg.Start < start+size {
			return true
		}
	}

	return false
}

func (vm *VirtualMemory) insert(reg *Region) {
	vm.regions = append(vm.regions, reg)

	sort.Slice(vm.regions, func(i, j int) bool {
		return vm.regions[i].Start < vm.regions[j].Start
	})

	vm.size += reg.Size
}

func (vm *VirtualMemory) NewRegion(addr, size uint64) (*Region, error) {
	if size == 0 {
		return nil, ErrBadRegionRequest
	}

	if addr == Anywhere {
		addr = vm.nextMmapStart
		for vm.overlaps(addr, size) {
			addr += pageRound(size)
		}

		vm.nextMmapStart = addr + pageRound(size)
	} else {
		if addr+size < addr {
			return nil, ErrBadRegionRequest
		}

		reg, ok := vm.FindRegion(addr)
		if ok {
			if reg.Start != addr || reg.Size < size {
				return nil, ErrBadRegionRequest
			}

			return reg, nil
		}

		if vm.overlaps(addr, size) {
			return nil, errors.Wrapf(ErrRegionOverlap, "address=%x, size=%x", addr, size)
		}
	}

	reg := &Region{
		Start: addr,
		Size:  size,
	}

	vm.insert(reg)

	return reg, nil
}

// MapBytes exposes b at addr without copying it. Writes through the
// projection land in b.
func (vm *VirtualMemory) MapBytes(addr uint64, b []byte) (*Region, error) {
	if len(b) == 0 {
		return nil, ErrBadRegionRequest
	}

	if vm.overlaps(addr, uint64(len(b))) {
		return nil, errors.Wrapf(ErrRegionOverlap, "address=%x, size=%x", addr, len(b))
	}

	reg := &Region{
		Start:  addr,
		Size:   uint64(len(b)),
		linear: b[:len(b):len(b)],
		fixed:  true,
	}

	vm.insert(reg)

	return reg, nil
}

func (vm *VirtualMemory) RemoveRegion(reg *Region) {
	for i, r := range vm.regions {
		if r == reg {
			vm.regions = append(vm.regions[:i], vm.regions[i+1:]...)
			vm.size -= reg.Size
			return
		}
	}
}

// Resize changes the size of reg in place. Growing fails when the new range
// would run into another region.
func (vm *VirtualMemory) Resize(reg *Region, size uint64) error {
	if reg.fixed || size == 0 {
		return ErrBadRegionRequest
	}

	if size > reg.Size {
		for _, r := range vm.regions {
			if r != reg && reg.Start < r.End() && r.Start < reg.Start+size {
				return errors.Wrapf(ErrRegionOverlap, "growing region at %x to %x", reg.Start, size)
			}
		}
	}

	if uint64(len(reg.linear)) > size {
		reg.linear = reg.linear[:size]
	}

	vm.size = vm.size - reg.Size + size
	reg.Size = size

	return nil
}
