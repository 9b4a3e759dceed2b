package rcu

import (
	"container/list"

	"github.com/ikuehne/rcu-list/options"
)

// Thread is a registration handle returned by Manager.RegisterThread. Go
// has no destructor-bearing thread-local storage to hang a per-thread
// entry off of automatically (see DESIGN.md), so the handle is explicit:
// the caller holds onto it and passes it to ReadLock, ReadUnlock, and
// UnregisterThread. It must not be shared across goroutines: a thread is
// registered at most once at any time, and this handle is that
// registration.
type Thread struct {
	mgr  *Manager
	e    *entry
	elem *list.Element
}

// ReadLock begins (or extends, if already inside one) a read-side critical
// section. It is the reader fast path: no syscalls, no allocation, and
// no memory operations beyond the sync/atomic loads and store below.
// Those are sequentially consistent in Go, not relaxed, and the Go
// compiler does not reorder non-atomic memory accesses across them the
// way a C++ relaxed atomic permits (see DESIGN.md), so no additional
// barrier is emitted here.
func (t *Thread) ReadLock() {
	tmp := t.e.gpn.Load()
	if tmp&options.NestingMask == 0 {
		// Outermost entry: snapshot the grace-period bit and set nesting
		// to 1 in a single store. global_gp's bit 0 is always 1, which is
		// what makes nesting come out to exactly 1 here.
		global := t.mgr.globalGP.Load()
		t.e.gpn.Store(global)
	} else {
		t.e.gpn.Store(tmp + 1)
	}
}

// ReadUnlock ends (or un-nests) a read-side critical section. Calling it
// without a matching ReadLock underflows the nesting count; this is a
// contract violation the implementation does not detect.
func (t *Thread) ReadUnlock() {
	tmp := t.e.gpn.Load()
	t.e.gpn.Store(tmp - 1)
}
