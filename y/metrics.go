/*
 * Copyright (C) 2017 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package y

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rcu"

var (
	// NumSynchronize is the cumulative number of completed Synchronize calls.
	NumSynchronize = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "num_synchronize",
	})
	// SynchronizeDuration is the wall-clock latency of Synchronize calls.
	SynchronizeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "synchronize_duration_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
	// RegisteredThreads is the current size of the thread registry.
	RegisteredThreads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registered_threads",
	})
	// NumReclaimed is the cumulative number of objects destroyed by a
	// reclaimer after a completed grace period.
	NumReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "num_reclaimed",
	})
	// RetireQueueDepth is the number of objects claimed off the retire
	// stack by the drain whose batch is being destroyed; it is reset to 0
	// once that batch has been destroyed.
	RetireQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "retire_queue_depth",
	})
)

func init() {
	prometheus.MustRegister(NumSynchronize)
	prometheus.MustRegister(SynchronizeDuration)
	prometheus.MustRegister(RegisteredThreads)
	prometheus.MustRegister(NumReclaimed)
	prometheus.MustRegister(RetireQueueDepth)
}
