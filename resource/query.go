// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"sync"
	"time"
)

// Query measures the time spent between a begin and an end command.
// Results are written by the backend on the present goroutine and can be
// read from any goroutine.
type Query struct {
	header
	mu       sync.Mutex
	gpu      time.Duration
	cpu      time.Duration
	results  int
	onResult func(*Query)
}

// NewQuery creates a timer query. onResult, if non-nil, is called on the
// present goroutine each time a result is returned.
func NewQuery(label string, onResult func(*Query)) *Query {
	q := &Query{onResult: onResult}
	q.init(label)
	return q
}

// Kind returns KindQuery.
func (q *Query) Kind() Kind { return KindQuery }

// SetResult records a measurement and fires the callback.
func (q *Query) SetResult(gpu, cpu time.Duration) {
	q.mu.Lock()
	q.gpu, q.cpu = gpu, cpu
	q.results++
	q.mu.Unlock()
	if q.onResult != nil {
		q.onResult(q)
	}
}

// Elapsed returns the last GPU measurement.
func (q *Query) Elapsed() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gpu
}

// CPUElapsed returns the last CPU-side measurement.
func (q *Query) CPUElapsed() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cpu
}

// Results returns the number of measurements received.
func (q *Query) Results() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.results
}
