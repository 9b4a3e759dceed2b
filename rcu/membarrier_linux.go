//go:build linux && (amd64 || arm64)

package rcu

import (
	"github.com/pingcap/errors"
	"golang.org/x/sys/unix"
)

// Linux membarrier(2) commands, from linux/membarrier.h. Only the
// private-expedited pair is used: it forces a fence in every other
// thread of *this* process, rather than every thread on the system.
const (
	membarrierCmdQuery                    = 0
	membarrierCmdRegisterPrivateExpedited = 1 << 4
	membarrierCmdPrivateExpedited         = 1 << 3
)

type linuxBarrier struct{}

func newBarrierBackend() barrierBackend {
	return linuxBarrier{}
}

func membarrier(cmd, flags int) error {
	_, _, errno := unix.Syscall(unix.SYS_MEMBARRIER, uintptr(cmd), uintptr(flags), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (linuxBarrier) probe() error {
	// A successful query returns a bitmask of supported commands as its
	// ordinary return value, not through errno.
	ret, _, errno := unix.Syscall(unix.SYS_MEMBARRIER, membarrierCmdQuery, 0, 0)
	if errno != 0 {
		return errors.Errorf("membarrier query: %v", errno)
	}
	mask := int(ret)
	if mask&membarrierCmdRegisterPrivateExpedited == 0 {
		return errors.New("membarrier: MEMBARRIER_CMD_REGISTER_PRIVATE_EXPEDITED unsupported")
	}
	if mask&membarrierCmdPrivateExpedited == 0 {
		return errors.New("membarrier: MEMBARRIER_CMD_PRIVATE_EXPEDITED unsupported")
	}
	return nil
}

func (linuxBarrier) registerProcess() error {
	if err := membarrier(membarrierCmdRegisterPrivateExpedited, 0); err != nil {
		return errors.Errorf("membarrier register: %v", err)
	}
	// Per the kernel docs, if MEMBARRIER_CMD_PRIVATE_EXPEDITED is ever
	// going to fail, it fails the first time. Exercise it once here so
	// every later call can be treated as contractually infallible.
	if err := membarrier(membarrierCmdPrivateExpedited, 0); err != nil {
		return errors.Errorf("membarrier initial expedited call: %v", err)
	}
	return nil
}

func (linuxBarrier) membarrierAll() error {
	return membarrier(membarrierCmdPrivateExpedited, 0)
}
