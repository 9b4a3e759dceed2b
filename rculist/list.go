// Package rculist implements a lock-free singly-linked LIFO stack: the
// exemplar consumer that exercises the rcu and reclaim packages. It
// demonstrates how readers, writers, and deferred reclamation compose.
package rculist

import (
	"sync/atomic"
	"unsafe"

	"github.com/ikuehne/rcu-list/options"
	"github.com/ikuehne/rcu-list/rcu"
	"github.com/ikuehne/rcu-list/reclaim"
)

// Sentinel is returned by Pop when the list is empty.
const Sentinel uint64 = 0xDEAD

// node is a single stack element. It embeds a reclaim.Link so the
// reclaimer can chain it without a second allocation per retirement.
type node struct {
	next unsafe.Pointer // *node
	data uint64
	link reclaim.Link
}

func (n *node) GCLink() *reclaim.Link { return &n.link }

// List is a singly-linked LIFO stack. push, pop, and remove are
// linearizable with respect to the CAS that commits them; search is not
// linearizable with respect to concurrent mutation but never reads freed
// memory and never produces a torn pointer.
type List struct {
	head unsafe.Pointer // *node
	_    [options.CacheLineBytes - 8]byte

	mgr *rcu.Manager
	gc  *reclaim.Reclaimer
}

// New creates an empty List backed by its own rcu.Manager. RegisterProcess
// is called immediately; callers should check the returned bool the same
// way they would check rcu.Manager.RegisterProcess directly.
func New() (*List, bool) {
	mgr := rcu.NewManager(options.DefaultRCUOptions())
	if !mgr.RegisterProcess() {
		return nil, false
	}
	l := &List{mgr: mgr}
	l.gc = reclaim.New(mgr, destroyNode, options.DefaultReclaimerOptions())
	return l, true
}

// destroyNode has nothing to release explicitly; a retired node becomes
// ordinary garbage once the reclaimer drops its last reference.
func destroyNode(reclaim.Retirable) {}

// Join shuts down the list's background reclaimer. Callers must stop
// calling Push/Pop/Remove before calling Join, or the reclaimer may leak
// objects discarded afterward.
func (l *List) Join() {
	l.gc.Join()
}

// Register enrolls the calling goroutine as a participant in the list's
// RCU domain and returns a handle to pass into Push, Pop, Search, and
// Remove. The handle must not be shared across goroutines; a goroutine
// that calls list operations repeatedly should register once and reuse
// the handle, rather than register anew on every call, since
// registration takes the underlying Manager's writer mutex.
func (l *List) Register() *rcu.Thread {
	return l.mgr.RegisterThread()
}

// Unregister removes t from the list's RCU domain. t must not be inside
// a Push/Pop/Search/Remove call when this is called.
func (l *List) Unregister(t *rcu.Thread) {
	l.mgr.UnregisterThread(t)
}

// Push inserts a new node with the given value at the head of the list.
func (l *List) Push(t *rcu.Thread, data uint64) {
	n := &node{data: data}
	t.ReadLock()
	for {
		old := atomic.LoadPointer(&l.head)
		n.next = old
		if atomic.CompareAndSwapPointer(&l.head, old, unsafe.Pointer(n)) {
			break
		}
	}
	t.ReadUnlock()
}

// Pop removes and returns the value at the head of the list, or Sentinel
// if the list is empty. The unlinked node is handed to the reclaimer
// rather than destroyed inline.
func (l *List) Pop(t *rcu.Thread) uint64 {
	var old *node
	t.ReadLock()
	for {
		oldPtr := atomic.LoadPointer(&l.head)
		old = (*node)(oldPtr)
		if old == nil {
			break
		}
		newHead := atomic.LoadPointer(&old.next)
		if atomic.CompareAndSwapPointer(&l.head, oldPtr, newHead) {
			break
		}
	}
	t.ReadUnlock()

	if old == nil {
		return Sentinel
	}
	result := old.data
	l.gc.Discard(t, old)
	return result
}

// Search reports whether any node currently in the list holds data. It is
// not linearizable with respect to concurrent Push/Pop/Remove calls: it
// may or may not observe a mutation racing it, but it never reads freed
// memory.
func (l *List) Search(t *rcu.Thread, data uint64) bool {
	t.ReadLock()
	defer t.ReadUnlock()

	for cur := (*node)(atomic.LoadPointer(&l.head)); cur != nil; cur = (*node)(atomic.LoadPointer(&cur.next)) {
		if cur.data == data {
			return true
		}
	}
	return false
}

// Remove finds the first node holding data, unlinks it, and hands it to
// the reclaimer, retrying on CAS failure. It reports whether such a node
// was found.
func (l *List) Remove(t *rcu.Thread, data uint64) bool {
	t.ReadLock()
	defer t.ReadUnlock()

	for {
		prevLink := &l.head
		cur := (*node)(atomic.LoadPointer(&l.head))
		found := false
		for cur != nil {
			if cur.data == data {
				found = true
				break
			}
			prevLink = &cur.next
			cur = (*node)(atomic.LoadPointer(&cur.next))
		}
		if !found {
			return false
		}
		next := atomic.LoadPointer(&cur.next)
		if atomic.CompareAndSwapPointer(prevLink, unsafe.Pointer(cur), next) {
			l.gc.Discard(t, cur)
			return true
		}
		// Lost the race (predecessor's next pointer moved); retry the
		// whole scan, since cur's neighbors may no longer be valid
		// removal targets for the same predecessor.
	}
}
