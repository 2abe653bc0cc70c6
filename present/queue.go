// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"context"
	"sync"
	"time"

	"github.com/gogpu/gfx"
)

// FrameQueue is the single-slot handoff between the producer and the
// present loop. Submitting replaces the pending frame, so the consumer
// always gets the newest one and the producer never blocks.
type FrameQueue struct {
	mu      sync.Mutex
	pending *gfx.Frame
	// ready holds one token while a frame is pending.
	ready chan struct{}
}

// NewFrameQueue returns an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{ready: make(chan struct{}, 1)}
}

// Submit makes f the pending frame and returns the frame it replaced, or
// nil. The replaced frame was never taken; the caller must still drain its
// resource updates.
func (q *FrameQueue) Submit(f *gfx.Frame) (dropped *gfx.Frame) {
	if f == nil {
		return nil
	}
	q.mu.Lock()
	dropped, q.pending = q.pending, f
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Take removes and returns the pending frame without blocking. It returns
// nil when no frame is pending.
func (q *FrameQueue) Take() *gfx.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	f := q.pending
	q.pending = nil
	return f
}

// Pending reports whether a frame is waiting.
func (q *FrameQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending != nil
}

// Wait returns the pending frame, blocking until one is submitted, ctx is
// done or timeout elapses. It returns nil in the latter two cases. A
// non-positive timeout makes Wait equivalent to Take.
func (q *FrameQueue) Wait(ctx context.Context, timeout time.Duration) *gfx.Frame {
	if f := q.Take(); f != nil || timeout <= 0 {
		return f
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.ready:
			if f := q.Take(); f != nil {
				return f
			}
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return q.Take()
		}
	}
}
