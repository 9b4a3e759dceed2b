// Command rcu-harness is a standalone regression harness: it takes no
// flags, and exits 0 on success or non-zero on a failed assertion.
package main

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcap/log"

	"github.com/ikuehne/rcu-list/options"
	"github.com/ikuehne/rcu-list/rcu"
	"github.com/ikuehne/rcu-list/rculist"
)

func require(cond bool, msg string) {
	if !cond {
		log.S().Fatalf("assertion failed: %s", msg)
	}
}

func main() {
	basicListScenario()
	churnUnderReadersScenario()
	concurrentRegistrationScenario()
	log.S().Info("rcu-harness: all scenarios passed")
	os.Exit(0)
}

// basicListScenario exercises single-threaded push/search/pop.
func basicListScenario() {
	l, ok := rculist.New()
	require(ok, "rculist.New: platform does not support expedited membarrier")
	defer l.Join()
	th := l.Register()
	defer l.Unregister(th)

	l.Push(th, 0)
	l.Push(th, 1)
	l.Push(th, 2)
	l.Push(th, 3)

	for v := uint64(0); v < 4; v++ {
		require(l.Search(th, v), "expected value to be present after push")
	}
	for v := uint64(4); v < 8; v++ {
		require(!l.Search(th, v), "expected value to be absent")
	}

	require(l.Pop(th) == 3, "pop order")
	require(l.Pop(th) == 2, "pop order")
	require(l.Pop(th) == 1, "pop order")
	require(l.Pop(th) == 0, "pop order")
	require(l.Pop(th) == rculist.Sentinel, "pop on empty list returns sentinel")
}

// churnUnderReadersScenario runs two mutators that push then pop disjoint
// ranges while eight searchers scan the whole space, and checks that a
// pre-populated high range remains observable throughout.
func churnUnderReadersScenario() {
	const (
		mutatorSplit = 10000
		mutatorUpper = 20000
		preUpper     = 30000
	)

	l, ok := rculist.New()
	require(ok, "rculist.New: platform does not support expedited membarrier")
	defer l.Join()

	setup := l.Register()
	for v := uint64(mutatorUpper); v < preUpper; v++ {
		l.Push(setup, v)
	}

	var wg sync.WaitGroup
	var go_ atomic.Bool

	mutate := func(lower, upper uint64) {
		defer wg.Done()
		th := l.Register()
		defer l.Unregister(th)
		for !go_.Load() {
		}
		for v := lower; v < upper; v++ {
			l.Push(th, v)
		}
		for v := lower; v < upper; v++ {
			l.Pop(th)
		}
	}
	search := func() {
		defer wg.Done()
		th := l.Register()
		defer l.Unregister(th)
		for !go_.Load() {
		}
		for v := uint64(0); v < mutatorUpper; v++ {
			l.Search(th, v)
		}
	}

	wg.Add(2)
	go mutate(0, mutatorSplit)
	go mutate(mutatorSplit, mutatorUpper)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go search()
	}

	go_.Store(true)

	for v := uint64(mutatorUpper); v < preUpper; v++ {
		require(l.Search(setup, v), "pre-populated high range must stay observable during churn")
	}

	wg.Wait()
	l.Unregister(setup)
}

// concurrentRegistrationScenario has eight goroutines each register,
// sleep briefly, and unregister while a background goroutine repeatedly
// calls Synchronize; nothing should crash or hang, and the registry should
// end with just the main goroutine in it.
func concurrentRegistrationScenario() {
	mgr := rcu.NewManager(options.DefaultRCUOptions())
	require(mgr.RegisterProcess(), "mgr.RegisterProcess: platform does not support expedited membarrier")

	self := mgr.RegisterThread()
	defer mgr.UnregisterThread(self)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := mgr.RegisterThread()
			time.Sleep(time.Millisecond)
			mgr.UnregisterThread(t)
		}()
	}

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				mgr.Synchronize()
			}
		}
	}()

	wg.Wait()
	close(stop)

	require(mgr.RegistrySize() == 1, "registry should end with only the main thread registered")
}
