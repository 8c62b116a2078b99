package kernel

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/evanphx/batchos/log"
	"github.com/evanphx/batchos/memory"
	"github.com/evanphx/batchos/trap"
	"github.com/pkg/errors"
)

var (
	ErrUnknownFile    = errors.New("unknown file")
	ErrUnknownMapping = errors.New("unknown mapping")
	ErrNoMemory       = errors.New("out of memory")
)

type prockey struct{}

func GetTask(ctx context.Context) (*Task, bool) {
	if v := ctx.Value(prockey{}); v != nil {
		return v.(*Task), true
	}

	return nil, false
}

func SetTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, prockey{}, t)
}

// Task is the view of a Process handed to syscall implementations.
type Task struct {
	*Process
}

func (t *Task) PC() uint64 {
	if t.Context == nil {
		return 0
	}

	return t.Context.PC
}

type ProcessStatus int

const (
	Init    ProcessStatus = 0
	Running ProcessStatus = 1
	Dead    ProcessStatus = 2
)

type ExitStatus struct {
	Code int64
}

// Process is the kernel's record of the program that is resident.
type Process struct {
	Kernel  *Kernel
	Entity  int
	Index   int
	Mem     *memory.VirtualMemory
	Context *trap.Context

	heapBase uint64
	brk      uint64
	heap     *memory.Region
	mappings map[uint64]*memory.Region

	status     ProcessStatus
	exitStatus ExitStatus
	fds        []*File

	mu sync.Mutex
}

func (p *Process) Caller() Caller {
	return Caller{Entity: p.Entity}
}

func (p *Process) Status() ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

func (p *Process) ExitStatus() ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exitStatus
}

func (p *Process) ReadAt(b []byte, off int64) (int, error) {
	return p.Mem.ReadAt(b, off)
}

func (p *Process) WriteAt(b []byte, off int64) (int, error) {
	return p.Mem.WriteAt(b, off)
}

func (p *Process) ReadCString(ptr uint64) ([]byte, error) {
	var buf bytes.Buffer

	var t [1]byte

	off := int64(ptr)

	for {
		_, err := p.ReadAt(t[:], off)
		if err != nil {
			return nil, err
		}

		if t[0] == 0 {
			break
		}

		buf.WriteByte(t[0])
		off += 1
	}

	return buf.Bytes(), nil
}

type writeAdapter struct {
	sub    io.WriterAt
	offset int64
}

func (wa *writeAdapter) Write(b []byte) (int, error) {
	n, err := wa.sub.WriteAt(b, wa.offset)
	wa.offset += int64(n)
	return n, err
}

type readAdapter struct {
	sub    io.ReaderAt
	offset int64
}

func (ra *readAdapter) Read(b []byte) (int, error) {
	n, err := ra.sub.ReadAt(b, ra.offset)
	ra.offset += int64(n)
	return n, err
}

func (p *Process) CopyOut(addr uint64, val interface{}) error {
	return binary.Write(&writeAdapter{sub: p, offset: int64(addr)}, binary.LittleEndian, val)
}

func (p *Process) CopyIn(addr uint64, val interface{}) error {
	return binary.Read(&readAdapter{sub: p, offset: int64(addr)}, binary.LittleEndian, val)
}

func (p *Process) HookupStdio(i io.ReadCloser, o, e io.WriteCloser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fds = append(p.fds,
		NewFile(i, nil),
		NewFile(nil, o),
		NewFile(nil, e),
	)
}

func (p *Process) GetFile(fd int) (*File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fd < 0 || fd >= len(p.fds) {
		return nil, false
	}

	file := p.fds[fd]
	if file == nil {
		return nil, false
	}

	return file, true
}

func (p *Process) CloseFile(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fd < 0 || fd >= len(p.fds) {
		return ErrUnknownFile
	}

	file := p.fds[fd]
	if file == nil {
		return ErrUnknownFile
	}

	p.fds[fd] = nil

	return file.Close()
}

func pageAlign(x uint64) uint64 {
	return (x + memory.PageSize - 1) &^ (memory.PageSize - 1)
}

// Brk moves the program break. Asking for 0, or for an address below the
// heap base, returns the current break unchanged.
func (p *Process) Brk(addr uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if addr == 0 || addr < p.heapBase {
		return p.brk, nil
	}

	if addr == p.heapBase {
		if p.heap != nil {
			p.Mem.RemoveRegion(p.heap)
			p.heap = nil
		}

		p.brk = addr
		return p.brk, nil
	}

	size := pageAlign(addr - p.heapBase)

	if p.heap == nil {
		reg, err := p.Mem.NewRegion(p.heapBase, size)
		if err != nil {
			return p.brk, errors.Wrapf(ErrNoMemory, "growing heap to %x: %s", addr, err)
		}

		p.heap = reg
	} else if size != p.heap.Size {
		err := p.Mem.Resize(p.heap, size)
		if err != nil {
			return p.brk, errors.Wrapf(ErrNoMemory, "resizing heap to %x: %s", addr, err)
		}
	}

	p.brk = addr

	return p.brk, nil
}

// Map creates an anonymous zeroed mapping of at least length bytes.
func (p *Process) Map(length uint64) (uint64, error) {
	if length == 0 {
		return 0, memory.ErrBadRegionRequest
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reg, err := p.Mem.NewRegion(memory.Anywhere, pageAlign(length))
	if err != nil {
		return 0, err
	}

	if p.mappings == nil {
		p.mappings = make(map[uint64]*memory.Region)
	}

	p.mappings[reg.Start] = reg

	return reg.Start, nil
}

// Unmap removes a mapping created by Map. Only whole mappings can be
// removed.
func (p *Process) Unmap(addr, length uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.mappings[addr]
	if !ok || pageAlign(length) != reg.Size {
		return errors.Wrapf(ErrUnknownMapping, "address=%x, length=%x", addr, length)
	}

	delete(p.mappings, addr)
	p.Mem.RemoveRegion(reg)

	return nil
}

// Exit closes every descriptor and gives back the memory the program
// allocated. The run slot and stack belong to the scheduler and stay.
func (p *Process) Exit(code int64) {
	l := log.L
	if p.Kernel != nil {
		l = p.Kernel.L
	}

	l.Trace("process-exit", "entity", p.Entity, "index", p.Index, "code", code)

	p.mu.Lock()

	for i, file := range p.fds {
		if file != nil {
			file.Close()
			p.fds[i] = nil
		}
	}

	if p.heap != nil {
		p.Mem.RemoveRegion(p.heap)
		p.heap = nil
	}

	for addr, reg := range p.mappings {
		p.Mem.RemoveRegion(reg)
		delete(p.mappings, addr)
	}

	p.exitStatus.Code = code
	p.status = Dead

	p.mu.Unlock()

	if p.Kernel != nil {
		p.Kernel.processes.RemoveProc(p)
	}
}

type ProcessManager struct {
	mu        sync.RWMutex
	highWater int
	processes map[int]*Process
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		processes: make(map[int]*Process),
	}
}

// AssignEntity gives proc the lowest free entity id, starting at 0.
func (p *ProcessManager) AssignEntity(proc *Process) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.highWater; i++ {
		if _, ok := p.processes[i]; !ok {
			proc.Entity = i
			p.processes[i] = proc
			return i
		}
	}

	id := p.highWater
	p.highWater++

	p.processes[id] = proc
	proc.Entity = id

	return id
}

func (p *ProcessManager) RemoveProc(proc *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.processes[proc.Entity] == proc {
		delete(p.processes, proc.Entity)
	}
}
