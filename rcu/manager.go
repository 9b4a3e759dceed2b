// Package rcu implements userspace Read-Copy-Update synchronization
// following the memory-barrier-elision scheme of Desnoyers et al. (2011):
// readers execute only a pair of relaxed loads/stores against a per-thread
// counter, and writers force an asymmetric process-wide memory barrier via
// the kernel-assisted expedited private membarrier so that every other
// thread executes a full fence the next time it is scheduled.
package rcu

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"

	"github.com/ikuehne/rcu-list/options"
	"github.com/ikuehne/rcu-list/y"
)

// Manager owns one RCU domain: a thread registry, the global grace-period
// word, and the writer mutex that serializes Synchronize. The global word
// and registry are per-Manager, not process-global; the kernel-assisted
// membarrier they depend on is inherently process-wide, so multiple
// Managers in one process still share that underlying primitive.
type Manager struct {
	opts options.RCUOptions

	// writerMu guards registry mutation, globalGP writes, and serializes
	// Synchronize: at most one Synchronize runs at a time.
	writerMu sync.Mutex
	registry list.List

	_        [options.CacheLineBytes - 8]byte
	globalGP atomic.Uint64

	barrier    barrierBackend
	registered atomic.Bool
}

// NewManager constructs a Manager with the given options. RegisterProcess
// must still be called once before any thread registers.
func NewManager(opts options.RCUOptions) *Manager {
	m := &Manager{
		opts:    opts,
		barrier: newBarrierBackend(),
	}
	// The global word's low bit is always 1, so a reader's single store in
	// ReadLock both snapshots the grace-period bit and sets its own
	// nesting to 1.
	m.globalGP.Store(1)
	return m
}

// RegisterProcess probes the OS for the expedited private membarrier and
// enrolls this process to receive it. It must be called once before any
// other Manager method; it is idempotent after a successful call. Returns
// false if the platform doesn't support the primitive, in which case the
// Manager must not be used further.
func (m *Manager) RegisterProcess() bool {
	if m.registered.Load() {
		return true
	}
	if err := m.barrier.probe(); err != nil {
		log.S().Warnf("rcu: membarrier unsupported: %v", err)
		return false
	}
	if err := m.barrier.registerProcess(); err != nil {
		log.S().Warnf("rcu: membarrier registration failed: %v", err)
		return false
	}
	m.registered.Store(true)
	return true
}

// RegisterThread enrolls the caller as an RCU participant and returns a
// handle to be used for ReadLock, ReadUnlock, and UnregisterThread. See
// Thread's doc comment for why this is an explicit handle rather than
// implicit thread-local state.
func (m *Manager) RegisterThread() *Thread {
	e := &entry{}
	m.writerMu.Lock()
	elem := m.registry.PushBack(e)
	m.writerMu.Unlock()
	y.RegisteredThreads.Inc()
	return &Thread{mgr: m, e: e, elem: elem}
}

// UnregisterThread removes t from the registry. t must be quiescent
// (no outstanding ReadLock) when this is called; calling it from inside a
// read-side critical section is a contract violation and panics.
func (m *Manager) UnregisterThread(t *Thread) {
	if t.e.gpn.Load()&options.NestingMask != 0 {
		panic("rcu: UnregisterThread called while inside a read-side critical section")
	}
	m.writerMu.Lock()
	m.registry.Remove(t.elem)
	m.writerMu.Unlock()
	y.RegisteredThreads.Dec()
}

// RegistrySize reports the number of threads currently registered. It
// takes writerMu, the same as registration itself, so the result is exact
// at the instant it's read but may be stale by the time the caller acts
// on it.
func (m *Manager) RegistrySize() int {
	m.writerMu.Lock()
	defer m.writerMu.Unlock()
	return m.registry.Len()
}

// Synchronize blocks until every thread currently registered has passed
// through a quiescent state (or was unregistered) at least once since this
// call began. After it returns, the caller may safely destroy any object
// it unlinked from shared structures before calling Synchronize.
//
// All calls to Synchronize on a given Manager are totally ordered by
// writerMu; at most one runs at a time.
func (m *Manager) Synchronize() {
	start := time.Now()
	m.writerMu.Lock()
	defer m.writerMu.Unlock()

	// Entry barrier: every reader's most recent ReadLock write (its
	// snapshot of the old grace period) is now globally visible.
	m.mustMembarrierAll()

	m.toggleAndWait()
	// The second flip is load-bearing: after the first, a thread's gpn
	// matching the new bit could mean it entered before this Synchronize
	// began and then re-entered with the (by-then) new bit, rather than
	// having actually observed a fresh grace period. Repeating the flip
	// and wait excludes that ambiguity.
	m.toggleAndWait()

	// Exit barrier: any reads performed inside the readers' now-closed
	// critical sections happen-before whatever the caller does next.
	m.mustMembarrierAll()

	took := time.Since(start)
	y.NumSynchronize.Inc()
	y.SynchronizeDuration.Observe(took.Seconds())
	log.S().Debugf("rcu: synchronize complete, took %v", took)
}

// toggleAndWait must be called with writerMu held. It flips the
// grace-period bit and spins, per registered thread, until that thread is
// either quiescent or has re-entered and observed the new bit.
func (m *Manager) toggleAndWait() {
	old := m.globalGP.Load()
	newGP := old ^ options.GPMask
	m.globalGP.Store(newGP)
	newBit := newGP & options.GPMask

	for e := m.registry.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*entry)
		for {
			g := ent.gpn.Load()
			if g&options.NestingMask == 0 {
				break // quiescent
			}
			if g&options.GPMask == newBit {
				break // has re-entered and observed the new bit
			}
			time.Sleep(m.opts.WriterPollInterval)
		}
	}
}

// mustMembarrierAll invokes the OS barrier. A failure here after a
// successful RegisterProcess should be contractually impossible; if the
// kernel violates that contract, this is a fatal condition.
func (m *Manager) mustMembarrierAll() {
	if err := m.barrier.membarrierAll(); err != nil {
		log.S().Panicf("rcu: membarrier failed after successful registration: %v", errors.Trace(err))
	}
}
