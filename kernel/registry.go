package kernel

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/evanphx/batchos/abi"
	"github.com/pkg/errors"
)

var (
	ErrAlreadyRegistered = errors.New("capability already registered")
	ErrSealed            = errors.New("capability registry is sealed")
	ErrNilCapability     = errors.New("nil capability")
)

// Caller identifies who issued a syscall. Entity owns resources, Flow is
// the thread of control. With one program resident at a time both are 0.
type Caller struct {
	Entity int
	Flow   int
}

type Category int

const (
	CategoryIO Category = iota
	CategoryProcess
	CategoryClock
	CategoryMemory
	CategoryScheduling
	CategorySignal
	CategoryThread
	CategorySync

	NumCategories
)

var categoryNames = [NumCategories]string{
	CategoryIO:         "io",
	CategoryProcess:    "process",
	CategoryClock:      "clock",
	CategoryMemory:     "memory",
	CategoryScheduling: "scheduling",
	CategorySignal:     "signal",
	CategoryThread:     "thread",
	CategorySync:       "sync",
}

func (c Category) String() string {
	if c < 0 || c >= NumCategories {
		return "unknown"
	}

	return categoryNames[c]
}

// ParseCategory maps a category name, as printed by String, back to the
// category.
func ParseCategory(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	for i, n := range categoryNames {
		if n == name {
			return Category(i), true
		}
	}

	return 0, false
}

type IOService interface {
	Read(ctx context.Context, c Caller, fd int, buf, n uint64) int64
	Write(ctx context.Context, c Caller, fd int, buf, n uint64) int64
	Open(ctx context.Context, c Caller, path uint64, flags int) int64
	Close(ctx context.Context, c Caller, fd int) int64
	Ioctl(ctx context.Context, c Caller, fd int, cmd, arg uint64) int64
}

type ProcessService interface {
	Exit(ctx context.Context, c Caller, code int64) int64
	Getpid(ctx context.Context, c Caller) int64
	Fork(ctx context.Context, c Caller) int64
	Exec(ctx context.Context, c Caller, path, argv uint64) int64
	Waitpid(ctx context.Context, c Caller, pid int64, status uint64) int64
}

type ClockService interface {
	// GetTime returns milliseconds since boot.
	GetTime(ctx context.Context, c Caller) int64
	ClockGettime(ctx context.Context, c Caller, clock int, ts uint64) int64
	Nanosleep(ctx context.Context, c Caller, req, rem uint64) int64
}

type MemoryService interface {
	Brk(ctx context.Context, c Caller, addr uint64) int64
	Mmap(ctx context.Context, c Caller, addr, length uint64, prot, flags int) int64
	Munmap(ctx context.Context, c Caller, addr, length uint64) int64
}

type SchedulingService interface {
	Yield(ctx context.Context, c Caller) int64
}

type SignalService interface {
	Kill(ctx context.Context, c Caller, pid int64, sig int) int64
	Sigaction(ctx context.Context, c Caller, sig int, act, old uint64) int64
	Sigprocmask(ctx context.Context, c Caller, how int, set, old uint64) int64
}

type ThreadService interface {
	ThreadCreate(ctx context.Context, c Caller, entry, arg uint64) int64
	Gettid(ctx context.Context, c Caller) int64
	Waittid(ctx context.Context, c Caller, tid int64) int64
}

type SyncService interface {
	MutexCreate(ctx context.Context, c Caller, blocking bool) int64
	MutexLock(ctx context.Context, c Caller, id int64) int64
	MutexUnlock(ctx context.Context, c Caller, id int64) int64
	SemaphoreCreate(ctx context.Context, c Caller, count int64) int64
	SemaphoreUp(ctx context.Context, c Caller, id int64) int64
	SemaphoreDown(ctx context.Context, c Caller, id int64) int64
}

// slot holds one category's implementation. It can be filled once.
type slot[T any] struct {
	once sync.Once
	impl T
	set  bool
}

func (s *slot[T]) get() (T, bool) {
	return s.impl, s.set
}

// Registry is the process-wide table of capability implementations. It is
// filled during startup, sealed when the first program runs and read-only
// afterwards.
type Registry struct {
	sealed atomic.Bool

	io         slot[IOService]
	process    slot[ProcessService]
	clock      slot[ClockService]
	memory     slot[MemoryService]
	scheduling slot[SchedulingService]
	signal     slot[SignalService]
	thread     slot[ThreadService]
	sync       slot[SyncService]
}

func NewRegistry() *Registry {
	return &Registry{}
}

func initSlot[T any](r *Registry, cat Category, s *slot[T], impl T) error {
	if any(impl) == nil {
		return errors.Wrap(ErrNilCapability, cat.String())
	}

	if r.sealed.Load() {
		return errors.Wrap(ErrSealed, cat.String())
	}

	var stored bool

	s.once.Do(func() {
		s.impl = impl
		s.set = true
		stored = true
	})

	if !stored {
		return errors.Wrap(ErrAlreadyRegistered, cat.String())
	}

	return nil
}

func (r *Registry) InitIO(impl IOService) error {
	return initSlot(r, CategoryIO, &r.io, impl)
}

func (r *Registry) InitProcess(impl ProcessService) error {
	return initSlot(r, CategoryProcess, &r.process, impl)
}

func (r *Registry) InitClock(impl ClockService) error {
	return initSlot(r, CategoryClock, &r.clock, impl)
}

func (r *Registry) InitMemory(impl MemoryService) error {
	return initSlot(r, CategoryMemory, &r.memory, impl)
}

func (r *Registry) InitScheduling(impl SchedulingService) error {
	return initSlot(r, CategoryScheduling, &r.scheduling, impl)
}

func (r *Registry) InitSignal(impl SignalService) error {
	return initSlot(r, CategorySignal, &r.signal, impl)
}

func (r *Registry) InitThread(impl ThreadService) error {
	return initSlot(r, CategoryThread, &r.thread, impl)
}

func (r *Registry) InitSync(impl SyncService) error {
	return initSlot(r, CategorySync, &r.sync, impl)
}

func (r *Registry) IO() (IOService, bool) { return r.io.get() }
func (r *Registry) Process() (ProcessService, bool) { return r.process.get() }
func (r *Registry) Clock() (ClockService, bool) { return r.clock.get() }
func (r *Registry) Memory() (MemoryService, bool) { return r.memory.get() }
func (r *Registry) Scheduling() (SchedulingService, bool) { return r.scheduling.get() }
func (r *Registry) Signal() (SignalService, bool) { return r.signal.get() }
func (r *Registry) Thread() (ThreadService, bool) { return r.thread.get() }
func (r *Registry) Sync() (SyncService, bool) { return r.sync.get() }

// Has reports whether cat has an implementation.
func (r *Registry) Has(cat Category) bool {
	switch cat {
	case CategoryIO:
		return r.io.set
	case CategoryProcess:
		return r.process.set
	case CategoryClock:
		return r.clock.set
	case CategoryMemory:
		return r.memory.set
	case CategoryScheduling:
		return r.scheduling.set
	case CategorySignal:
		return r.signal.set
	case CategoryThread:
		return r.thread.set
	case CategorySync:
		return r.sync.set
	default:
		return false
	}
}

// Seal refuses every later registration.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Registered lists the categories that have an implementation.
func (r *Registry) Registered() []Category {
	var out []Category

	for c := Category(0); c < NumCategories; c++ {
		if r.Has(c) {
			out = append(out, c)
		}
	}

	return out
}

const enosys = -abi.ENOSYS

// The Unimplemented types answer every operation with -ENOSYS. Embed one to
// implement only part of a category.

type UnimplementedIO struct{}

func (UnimplementedIO) Read(context.Context, Caller, int, uint64, uint64) int64 { return enosys }
func (UnimplementedIO) Write(context.Context, Caller, int, uint64, uint64) int64 { return enosys }
func (UnimplementedIO) Open(context.Context, Caller, uint64, int) int64 { return enosys }
func (UnimplementedIO) Close(context.Context, Caller, int) int64 { return enosys }
func (UnimplementedIO) Ioctl(context.Context, Caller, int, uint64, uint64) int64 { return enosys }

type UnimplementedProcess struct{}

func (UnimplementedProcess) Exit(context.Context, Caller, int64) int64 { return enosys }
func (UnimplementedProcess) Getpid(context.Context, Caller) int64 { return enosys }
func (UnimplementedProcess) Fork(context.Context, Caller) int64 { return enosys }
func (UnimplementedProcess) Exec(context.Context, Caller, uint64, uint64) int64 { return enosys }
func (UnimplementedProcess) Waitpid(context.Context, Caller, int64, uint64) int64 { return enosys }

type UnimplementedClock struct{}

func (UnimplementedClock) GetTime(context.Context, Caller) int64 { return enosys }
func (UnimplementedClock) ClockGettime(context.Context, Caller, int, uint64) int64 { return enosys }
func (UnimplementedClock) Nanosleep(context.Context, Caller, uint64, uint64) int64 { return enosys }

type UnimplementedMemory struct{}

func (UnimplementedMemory) Brk(context.Context, Caller, uint64) int64 { return enosys }
func (UnimplementedMemory) Mmap(context.Context, Caller, uint64, uint64, int, int) int64 { return enosys }
func (UnimplementedMemory) Munmap(context.Context, Caller, uint64, uint64) int64 { return enosys }

type UnimplementedScheduling struct{}

func (UnimplementedScheduling) Yield(context.Context, Caller) int64 { return enosys }

type UnimplementedSignal struct{}

func (UnimplementedSignal) Kill(context.Context, Caller, int64, int) int64 { return enosys }
func (UnimplementedSignal) Sigaction(context.Context, Caller, int, uint64, uint64) int64 { return enosys }
func (UnimplementedSignal) Sigprocmask(context.Context, Caller, int, uint64, uint64) int64 { return enosys }

type UnimplementedThread struct{}

func (UnimplementedThread) ThreadCreate(context.Context, Caller, uint64, uint64) int64 { return enosys }
func (UnimplementedThread) Gettid(context.Context, Caller) int64 { return enosys }
func (UnimplementedThread) Waittid(context.Context, Caller, int64) int64 { return enosys }

type UnimplementedSync struct{}

func (UnimplementedSync) MutexCreate(context.Context, Caller, bool) int64 { return enosys }
func (UnimplementedSync) MutexLock(context.Context, Caller, int64) int64 { return enosys }
func (UnimplementedSync) MutexUnlock(context.Context, Caller, int64) int64 { return enosys }
func (UnimplementedSync) SemaphoreCreate(context.Context, Caller, int64) int64 { return enosys }
func (UnimplementedSync) SemaphoreUp(context.Context, Caller, int64) int64 { return enosys }
func (UnimplementedSync) SemaphoreDown(context.Context, Caller, int64) int64 { return enosys }
