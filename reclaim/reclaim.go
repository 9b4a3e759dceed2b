// Package reclaim implements the asynchronous reclamation collector: a
// background worker that batches objects retired by Discard, waits out a
// grace period on a given rcu.Manager, and then destroys them.
package reclaim

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/ikuehne/rcu-list/options"
	"github.com/ikuehne/rcu-list/rcu"
	"github.com/ikuehne/rcu-list/y"
)

// Link is the intrusive retire-stack pointer a Retirable must embed. An
// interface method stands in for a C++-style template parameter, so no
// extra wrapper-node allocation is needed per retirement.
type Link struct {
	next  unsafe.Pointer // *Link, chains through the retire stack
	owner Retirable
}

// Retirable is any object a Reclaimer can take ownership of. GCLink
// returns a pointer to the object's embedded Link field; the reclaimer
// uses it to chain retired objects without allocating a wrapper node.
type Retirable interface {
	GCLink() *Link
}

// Destroyer destroys a Retirable once it is certain no reader can still
// observe it. Usually this just releases it back to an allocator or lets
// it become garbage; it is a function rather than a method on Retirable
// so one Reclaimer can serve heterogeneous retirement call sites.
type Destroyer func(Retirable)

// Reclaimer runs one background worker that drains a lock-free retire
// stack, calls Synchronize on its rcu.Manager, and destroys everything it
// claimed. Producers (Discard) are wait-free modulo allocator behavior;
// the worker is the only destroyer.
type Reclaimer struct {
	opts    options.ReclaimerOptions
	mgr     *rcu.Manager
	destroy Destroyer

	head unsafe.Pointer // *Link, Treiber-stack head

	shutdown atomic.Bool
	done     chan struct{}
}

// New spawns the reclaimer's worker goroutine bound to mgr. The worker
// registers itself as an RCU participant for the lifetime of the
// Reclaimer.
func New(mgr *rcu.Manager, destroy Destroyer, opts options.ReclaimerOptions) *Reclaimer {
	r := &Reclaimer{
		opts:    opts,
		mgr:     mgr,
		destroy: destroy,
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Discard hands obj to the reclaimer. It is non-blocking: a CAS loop
// wrapped in a read-side critical section pushes obj onto the retire
// stack. The critical section is what makes the CAS safe despite this
// being a classic Treiber stack: no node is destroyed until a full grace
// period after it was unlinked, so a CAS that observes an unchanged head
// pointer has genuinely observed an unchanged node — no ABA.
//
// t must be a handle the caller registered once with the same Manager
// this Reclaimer was built on, and must not be used concurrently from
// more than one goroutine. Callers that discard repeatedly should keep
// their *rcu.Thread around across calls rather than registering anew
// each time: registration takes the Manager's writer mutex, which would
// otherwise make every Discard block behind any in-flight Synchronize.
func (r *Reclaimer) Discard(t *rcu.Thread, obj Retirable) {
	link := obj.GCLink()
	link.owner = obj
	t.ReadLock()
	for {
		old := atomic.LoadPointer(&r.head)
		atomic.StorePointer(&link.next, old)
		if atomic.CompareAndSwapPointer(&r.head, old, unsafe.Pointer(link)) {
			break
		}
	}
	t.ReadUnlock()
}

// Join signals shutdown and waits for the worker to exit. Any objects
// still on the retire stack after Join returns are leaked by design:
// callers must quiesce producers before joining.
func (r *Reclaimer) Join() {
	r.shutdown.Store(true)
	<-r.done
}

func (r *Reclaimer) run() {
	t := r.mgr.RegisterThread()
	defer close(r.done)
	defer r.mgr.UnregisterThread(t)

	for !r.shutdown.Load() {
		claimed := r.drain(t)
		if claimed == nil {
			time.Sleep(r.opts.DrainInterval)
			continue
		}
		r.mgr.Synchronize()
		r.destroyChain(claimed)
	}
}

// drain atomically swaps the retire stack to empty, RCU-protected for the
// same ABA reason as Discard's CAS loop, and returns the claimed chain's
// head link (or nil if the stack was empty).
func (r *Reclaimer) drain(t *rcu.Thread) *Link {
	t.ReadLock()
	defer t.ReadUnlock()
	for {
		old := atomic.LoadPointer(&r.head)
		if old == nil {
			return nil
		}
		if atomic.CompareAndSwapPointer(&r.head, old, nil) {
			return (*Link)(old)
		}
	}
}

func (r *Reclaimer) destroyChain(head *Link) {
	n := 0
	for cur := head; cur != nil; cur = (*Link)(atomic.LoadPointer(&cur.next)) {
		n++
	}
	y.RetireQueueDepth.Set(float64(n))

	for head != nil {
		next := (*Link)(atomic.LoadPointer(&head.next))
		owner := head.owner
		head.next = nil
		head.owner = nil
		r.destroy(owner)
		head = next
	}
	y.NumReclaimed.Add(float64(n))
	y.RetireQueueDepth.Set(0)
	log.Debug("reclaim: batch destroyed", zap.Int("count", n))
}
