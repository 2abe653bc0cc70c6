// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/resource"
)

// TransferStats are texture transfer counters.
type TransferStats struct {
	Queued    int
	Completed uint64
	Failed    uint64
	// StagedBytes counts bytes copied into staging over the worker's life.
	StagedBytes uint64
}

type transferJob struct {
	tex    *resource.Texture
	layers [][]byte
	mips   bool
	ready  chan struct{}
}

// TransferWorker stages large texture uploads on its own goroutine.
//
// Each queued texture is copied page by page into staging memory. Every
// page draws from a byte budget that the present loop refills once per
// cycle with Tick, so a burst of large textures spreads over several
// cycles instead of stalling one. When all pages of a texture are staged
// its source data is replaced and, if requested, its mip chain generated.
//
// Until the present loop collects a finished texture with Ready, the
// worker reports it as pending, and replay treats it as unbound. The
// worker never touches the native device: the mirror is created by the
// next sync on the present goroutine.
type TransferWorker struct {
	pageSize int64
	budget   int64
	sem      *semaphore.Weighted
	spent    atomic.Int64

	mu      sync.Mutex
	queue   []*transferJob
	pending map[*resource.Texture]*transferJob
	done    []*resource.Texture
	wake    chan struct{}

	completed atomic.Uint64
	failed    atomic.Uint64
	staged    atomic.Uint64
}

// NewTransferWorker creates a worker from the [transfer] configuration.
func NewTransferWorker(cfg gfx.TransferConfig) (*TransferWorker, error) {
	if cfg.PageSize <= 0 || cfg.BudgetPerTick < cfg.PageSize {
		return nil, fmt.Errorf("present: transfer page size %d and budget %d: need 0 < page <= budget",
			cfg.PageSize, cfg.BudgetPerTick)
	}
	return &TransferWorker{
		pageSize: int64(cfg.PageSize),
		budget:   int64(cfg.BudgetPerTick),
		sem:      semaphore.NewWeighted(int64(cfg.BudgetPerTick)),
		pending:  make(map[*resource.Texture]*transferJob),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Enqueue schedules the level-0 data of each layer of t for upload and
// returns a channel closed once the data is staged. With mips set the
// full mip chain is generated after staging. Enqueuing a texture already
// in transfer returns its existing channel.
func (w *TransferWorker) Enqueue(t *resource.Texture, layers [][]byte, mips bool) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.pending[t]; ok {
		return job.ready
	}
	job := &transferJob{tex: t, layers: layers, mips: mips, ready: make(chan struct{})}
	w.pending[t] = job
	w.queue = append(w.queue, job)
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return job.ready
}

// Pending implements replay.TextureGate.
func (w *TransferWorker) Pending(t *resource.Texture) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[t]
	return ok
}

// Tick refills the byte budget. The present loop calls it once per cycle.
func (w *TransferWorker) Tick() {
	if n := w.spent.Swap(0); n > 0 {
		w.sem.Release(n)
	}
}

// Ready returns the textures finished since the last call and stops
// reporting them as pending. It runs on the present goroutine, so the
// next sync there sees their final data.
func (w *TransferWorker) Ready() []*resource.Texture {
	w.mu.Lock()
	defer w.mu.Unlock()
	done := w.done
	w.done = nil
	for _, t := range done {
		delete(w.pending, t)
	}
	return done
}

// Stats returns a snapshot of the counters.
func (w *TransferWorker) Stats() TransferStats {
	w.mu.Lock()
	queued := len(w.queue)
	w.mu.Unlock()
	return TransferStats{
		Queued:      queued,
		Completed:   w.completed.Load(),
		Failed:      w.failed.Load(),
		StagedBytes: w.staged.Load(),
	}
}

// Run processes queued textures until ctx is done. It returns nil on
// cancellation.
func (w *TransferWorker) Run(ctx context.Context) error {
	for {
		job := w.next()
		if job == nil {
			select {
			case <-w.wake:
				continue
			case <-ctx.Done():
				return nil
			}
		}
		if err := w.transfer(ctx, job); err != nil {
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			w.failed.Add(1)
			gfx.Logger().Warn("present: texture transfer failed", "texture", job.tex.Label(), "err", err)
		}
		w.finish(job)
	}
}

func (w *TransferWorker) next() *transferJob {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return nil
	}
	job := w.queue[0]
	w.queue[0] = nil
	w.queue = w.queue[1:]
	return job
}

// transfer stages all layers of a job page by page.
func (w *TransferWorker) transfer(ctx context.Context, job *transferJob) error {
	staged := make([][]byte, len(job.layers))
	for i, src := range job.layers {
		dst := make([]byte, len(src))
		for off := 0; off < len(src); {
			n := min(int64(len(src)-off), w.pageSize)
			if err := w.sem.Acquire(ctx, n); err != nil {
				return err
			}
			w.spent.Add(n)
			copy(dst[off:], src[off:off+int(n)])
			off += int(n)
			w.staged.Add(uint64(n)) // #nosec G115 -- positive
		}
		staged[i] = dst
	}
	for i, data := range staged {
		if err := job.tex.AssignMip(0, uint32(i), data); err != nil { // #nosec G115 -- layer count fits
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	if job.mips {
		if err := job.tex.GenerateMips(); err != nil {
			return fmt.Errorf("mips: %w", err)
		}
	}
	w.completed.Add(1)
	return nil
}

// finish publishes a job. A failed texture is released too so it does not
// stay hidden forever.
func (w *TransferWorker) finish(job *transferJob) {
	w.mu.Lock()
	w.done = append(w.done, job.tex)
	w.mu.Unlock()
	close(job.ready)
}
