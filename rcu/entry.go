package rcu

import (
	"sync/atomic"

	"github.com/ikuehne/rcu-list/options"
)

// entry is a single registered thread's grace-period-and-nesting counter
// (gpn). Bit options.GPBit mirrors the global grace-period
// bit at the moment the outermost read-side critical section was entered;
// the bits below it hold the nesting depth. N == 0 means quiescent.
//
// N is only ever mutated by the owning goroutine (via its *Thread handle).
// The grace-period bit is only written by the owner, and only at the
// N: 0->1 transition. Writers only read this word; they never write it.
//
// padding keeps this off the same cache line as neighboring entries, since
// every registered thread's entry is written on every ReadLock/ReadUnlock.
type entry struct {
	gpn     atomic.Uint64
	padding [options.CacheLineBytes - 8]byte
}
