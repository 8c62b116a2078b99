package exec

import (
	"encoding/binary"

	"github.com/evanphx/batchos/arch"
)

// Memory is the physical address space the hart executes against.
type Memory interface {
	Project(addr, size uint64) ([]byte, error)
}

var endianess = binary.LittleEndian

func (vm *VM) load(addr, size uint64, signed bool) (uint64, *Trap) {
	mem, err := vm.memory.Project(addr, size)
	if err != nil {
		return 0, &Trap{Cause: arch.LoadAccessFault, Value: addr}
	}

	switch size {
	case 1:
		if signed {
			return uint64(int64(int8(mem[0]))), nil
		}
		return uint64(mem[0]), nil
	case 2:
		v := endianess.Uint16(mem)
		if signed {
			return uint64(int64(int16(v))), nil
		}
		return uint64(v), nil
	case 4:
		v := endianess.Uint32(mem)
		if signed {
			return uint64(int64(int32(v))), nil
		}
		return uint64(v), nil
	default:
		return endianess.Uint64(mem), nil
	}
}

func (vm *VM) store(addr, size, val uint64) *Trap {
	mem, err := vm.memory.Project(addr, size)
	if err != nil {
		return &Trap{Cause: arch.StoreAccessFault, Value: addr}
	}

	switch size {
	case 1:
		mem[0] = byte(val)
	case 2:
		endianess.PutUint16(mem, uint16(val))
	case 4:
		endianess.PutUint32(mem, uint32(val))
	default:
		endianess.PutUint64(mem, val)
	}

	return nil
}

func (vm *VM) fetchWord(pc uint64) (uint32, *Trap) {
	mem, err := vm.memory.Project(pc, arch.InstWidth)
	if err != nil {
		return 0, &Trap{Cause: arch.InstructionAccessFault, Value: pc}
	}

	return endianess.Uint32(mem), nil
}
