package abi

// Syscall numbers. The POSIX-shaped calls use the RISC-V Linux numbering,
// the thread and synchronization calls live above 1000.
const (
	SysOpen         = 56
	SysClose        = 57
	SysRead         = 63
	SysWrite        = 64
	SysIoctl        = 29
	SysExit         = 93
	SysNanosleep    = 101
	SysClockGettime = 113
	SysYield        = 124
	SysKill         = 129
	SysSigaction    = 134
	SysSigprocmask  = 135
	SysGetTime      = 169
	SysGetpid       = 172
	SysBrk          = 214
	SysMunmap       = 215
	SysFork         = 220
	SysExec         = 221
	SysMmap         = 222
	SysWaitpid      = 260

	SysThreadCreate    = 1000
	SysGettid          = 1001
	SysWaittid         = 1002
	SysMutexCreate     = 1010
	SysMutexLock       = 1011
	SysMutexUnlock     = 1012
	SysSemaphoreCreate = 1020
	SysSemaphoreUp     = 1021
	SysSemaphoreDown   = 1022
)

// Standard descriptors.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2
)

const TIOCGWINSZ = 0x5413
