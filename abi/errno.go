package abi

// Errno values returned (negated) to user programs.
const (
	EPERM  = 1
	ENOENT = 2
	EINTR  = 4
	EIO    = 5
	EBADF  = 9
	ECHILD = 10
	ENOMEM = 12
	EFAULT = 14
	EINVAL = 22
	ENOTTY = 25
	ENOSYS = 38
)
