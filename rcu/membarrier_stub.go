//go:build !linux || !(amd64 || arm64)

package rcu

import "github.com/pingcap/errors"

var errUnsupportedPlatform = errors.New("rcu: expedited private membarrier not available on this platform")

type stubBarrier struct{}

func newBarrierBackend() barrierBackend {
	return stubBarrier{}
}

func (stubBarrier) probe() error           { return errUnsupportedPlatform }
func (stubBarrier) registerProcess() error { return errUnsupportedPlatform }
func (stubBarrier) membarrierAll() error   { return errUnsupportedPlatform }
