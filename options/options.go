/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package options holds the tunable constants of the RCU library: the
// grace-period bit encoding, cache-line padding size, and the polling
// intervals writers and the reclaimer use while waiting.
package options

import "time"

// GPBit is the bit position of the grace-period bit within a per-thread
// gpn word and within the global grace-period word. Bits below this
// position hold the nesting count.
const GPBit = 63

// GPMask isolates the grace-period bit.
const GPMask uint64 = 1 << GPBit

// NestingMask isolates the nesting count, i.e. every bit below GPBit.
const NestingMask uint64 = GPMask - 1

// CacheLineBytes is the assumed cache line size used to pad hot shared
// words (the list head, the retire-stack head) so concurrent writers to
// unrelated words don't false-share a line.
const CacheLineBytes = 64

// RCUOptions configures an rcu.Manager.
type RCUOptions struct {
	// WriterPollInterval is how long Synchronize sleeps between checks of
	// a not-yet-quiescent thread's gpn word.
	WriterPollInterval time.Duration
}

// DefaultRCUOptions returns the options the library uses if none are
// supplied.
func DefaultRCUOptions() RCUOptions {
	return RCUOptions{
		WriterPollInterval: time.Millisecond,
	}
}

// ReclaimerOptions configures a reclaim.Reclaimer.
type ReclaimerOptions struct {
	// DrainInterval is how long the worker sleeps when it finds the
	// retire stack empty before checking again.
	DrainInterval time.Duration
}

// DefaultReclaimerOptions returns the options the library uses if none
// are supplied.
func DefaultReclaimerOptions() ReclaimerOptions {
	return ReclaimerOptions{
		DrainInterval: time.Millisecond,
	}
}
