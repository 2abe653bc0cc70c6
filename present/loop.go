// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/replay"
)

// Stats are present loop counters.
type Stats struct {
	Cycles          uint64
	Presented       uint64
	Skipped         uint64 // cycles without a frame
	Dropped         uint64 // frames replaced before they were taken
	SurfaceFailures uint64
	ExecuteErrors   uint64
	CompositeErrors uint64
	CompositePasses uint64
	// Stage is the stage the loop is in.
	Stage Stage
}

// Loop is the present loop. It owns the present goroutine: every backend
// call except Capabilities happens inside Run.
type Loop struct {
	gctx     *gfx.Context
	backend  gfx.Backend
	plugin   DisplayPlugin
	surface  Surface
	queue    *FrameQueue
	transfer *TransferWorker
	hook     func(Stage)

	settings atomic.Pointer[gfx.PresentConfig]
	stage    atomic.Int32
	running  atomic.Bool

	dropMu sync.Mutex
	drops  []*gfx.Frame

	resolvedMu sync.Mutex
	resolved   any
	isResolved bool

	startMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error

	cycles          atomic.Uint64
	presented       atomic.Uint64
	skipped         atomic.Uint64
	dropped         atomic.Uint64
	surfaceFailures atomic.Uint64
	executeErrors   atomic.Uint64
	compositeErrors atomic.Uint64
	passes          atomic.Uint64
}

// NewLoop creates a loop presenting the frames of ctx through plugin. The
// stereo mode of ctx is fixed to the plugin's from here on.
func NewLoop(ctx *gfx.Context, plugin DisplayPlugin, opts ...LoopOption) (*Loop, error) {
	if ctx == nil {
		return nil, gfx.ErrNilBackend
	}
	if plugin == nil {
		return nil, errors.New("present: nil display plugin")
	}
	o := defaultLoopOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.surface == nil {
		o.surface = o.defaultSurface()
	}
	l := &Loop{
		gctx:     ctx,
		backend:  ctx.Backend(),
		plugin:   plugin,
		surface:  o.surface,
		queue:    NewFrameQueue(),
		transfer: o.transfer,
		hook:     o.hook,
	}
	l.SetPresentConfig(o.settings)

	ctx.EnableStereo(plugin.IsStereo())
	if l.transfer != nil {
		if g, ok := l.backend.(interface{ SetTextureGate(replay.TextureGate) }); ok {
			g.SetTextureGate(l.transfer)
		} else {
			gfx.Logger().Warn("present: backend cannot hide textures in transfer",
				"backend", l.backend.Capabilities().Name)
		}
	}
	return l, nil
}

// SetPresentConfig replaces the present settings. It is safe to call while
// the loop runs; the next cycle uses the new values.
func (l *Loop) SetPresentConfig(cfg gfx.PresentConfig) {
	l.settings.Store(&cfg)
}

// PresentConfig returns the present settings in use.
func (l *Loop) PresentConfig() gfx.PresentConfig { return *l.settings.Load() }

// SubmitFrame hands f to the loop without blocking. A frame still pending
// is replaced; it never renders, but its resource updates are applied on
// the next cycle.
func (l *Loop) SubmitFrame(f *gfx.Frame) {
	if dropped := l.queue.Submit(f); dropped != nil {
		l.dropMu.Lock()
		l.drops = append(l.drops, dropped)
		l.dropMu.Unlock()
		l.dropped.Add(1)
	}
}

// Plugin returns the display plugin.
func (l *Loop) Plugin() DisplayPlugin { return l.plugin }

// Surface returns the surface frames are presented to.
func (l *Loop) Surface() Surface { return l.surface }

// ResolvedTexture returns the native handle of the color target of the last
// executed frame, for interop with an external compositor or UI.
func (l *Loop) ResolvedTexture() (any, bool) {
	l.resolvedMu.Lock()
	defer l.resolvedMu.Unlock()
	return l.resolved, l.isResolved
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:          l.cycles.Load(),
		Presented:       l.presented.Load(),
		Skipped:         l.skipped.Load(),
		Dropped:         l.dropped.Load(),
		SurfaceFailures: l.surfaceFailures.Load(),
		ExecuteErrors:   l.executeErrors.Load(),
		CompositeErrors: l.compositeErrors.Load(),
		CompositePasses: l.passes.Load(),
		Stage:           Stage(l.stage.Load()),
	}
}

// Run runs the loop on the calling goroutine until ctx is done. The
// transfer worker, if any, runs alongside and stops with it. Frames still
// pending at shutdown are drained through ConsumeFrameUpdates.
//
// Per-cycle failures are logged and counted, never returned. Run returns
// nil after a cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if l.transfer != nil {
		g.Go(func() error { return l.transfer.Run(gctx) })
	}

	gfx.Logger().Info("present: loop started",
		"plugin", l.plugin.Name(), "backend", l.backend.Capabilities().Name)
	for gctx.Err() == nil {
		l.cycle(gctx)
	}
	l.drain()
	cancel()

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	gfx.Logger().Info("present: loop stopped", "cycles", l.cycles.Load(), "presented", l.presented.Load())
	return err
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start(ctx context.Context) error {
	l.startMu.Lock()
	defer l.startMu.Unlock()
	if l.done != nil {
		return ErrRunning
	}
	ctx, l.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	l.done = done
	go func() {
		defer close(done)
		l.runErr = l.Run(ctx)
	}()
	return nil
}

// Stop stops a loop started with Start and waits for it. It returns the
// error Run returned.
func (l *Loop) Stop() error {
	l.startMu.Lock()
	defer l.startMu.Unlock()
	if l.done == nil {
		return nil
	}
	l.cancel()
	<-l.done
	l.done, l.cancel = nil, nil
	return l.runErr
}

func (l *Loop) enter(s Stage) {
	l.stage.Store(int32(s))
	if l.hook != nil {
		l.hook(s)
	}
}

// cycle runs one present cycle.
func (l *Loop) cycle(ctx context.Context) {
	l.cycles.Add(1)
	settings := l.settings.Load()

	l.enter(StageIdle)
	l.backend.Recycle()
	l.backend.SyncCache()
	l.consumeDropped()
	if l.transfer != nil {
		l.transfer.Tick()
		if ready := l.transfer.Ready(); len(ready) > 0 {
			gfx.Logger().Debug("present: textures ready", "count", len(ready))
		}
	}

	l.enter(StageAcquireSurface)
	target, err := l.surface.Acquire()
	if err != nil {
		l.surfaceFailures.Add(1)
		gfx.Logger().Warn("present: acquire surface", "err", err)
		sleep(ctx, settings.SurfaceRetry.Duration)
		return
	}

	l.enter(StageWaitForFrame)
	f := l.queue.Wait(ctx, settings.IdleSleep.Duration)
	if ctx.Err() != nil {
		if f != nil {
			l.consume(f)
		}
		return
	}
	if f == nil {
		l.skip(target, settings)
		return
	}
	l.execute(target, f)
}

// skip shows the sentinel color while no frame is ready.
func (l *Loop) skip(target Target, settings *gfx.PresentConfig) {
	l.enter(StageSkip)
	l.skipped.Add(1)
	ct := newCompositeTarget(l.backend, target, 0, l.enter)
	if err := clearPass(ct, mgl32.Vec4(settings.SentinelColor)); err != nil {
		gfx.Logger().Warn("present: clear to sentinel", "err", err)
	}
	l.passes.Add(uint64(ct.Passes())) // #nosec G115 -- non-negative
	l.enter(StagePresentSurface)
	if err := l.surface.Present(); err != nil {
		l.surfaceFailures.Add(1)
		gfx.Logger().Warn("present: present surface", "err", err)
	}
}

func (l *Loop) execute(target Target, f *gfx.Frame) {
	l.enter(StageExecute)
	if !l.plugin.BeginFrameRender(f.Index()) {
		gfx.Logger().Debug("present: plugin skipped frame", "frame", f.Index())
		l.consume(f)
		return
	}
	correction, prevView := l.plugin.CameraCorrection()
	l.backend.SetCameraCorrection(correction, prevView, !l.plugin.IsHMD())
	if err := l.gctx.ExecuteFrame(f); err != nil {
		l.executeErrors.Add(1)
		gfx.Logger().Warn("present: execute frame", "frame", f.Index(), "err", err)
		return
	}
	l.resolve(f)

	l.plugin.UpdatePresentPose()
	ct := newCompositeTarget(l.backend, target, f.Index(), l.enter)
	if err := l.plugin.Composite(ct, f); err != nil {
		l.compositeErrors.Add(1)
		gfx.Logger().Warn("present: composite", "frame", f.Index(), "err", err)
	}
	l.passes.Add(uint64(ct.Passes())) // #nosec G115 -- non-negative

	l.enter(StagePresentSurface)
	if err := l.plugin.Present(l.surface); err != nil {
		l.surfaceFailures.Add(1)
		gfx.Logger().Warn("present: present surface", "frame", f.Index(), "err", err)
		return
	}
	l.presented.Add(1)
	f.Presented()
}

func (l *Loop) resolve(f *gfx.Frame) {
	tex := sceneTexture(f.Framebuffer())
	if tex == nil {
		return
	}
	h, ok := l.backend.ResolveTexture(tex)
	l.resolvedMu.Lock()
	l.resolved, l.isResolved = h, ok
	l.resolvedMu.Unlock()
}

// consume applies the resource updates of a frame that will not render.
func (l *Loop) consume(f *gfx.Frame) {
	if err := l.gctx.ConsumeFrameUpdates(f); err != nil {
		gfx.Logger().Warn("present: drain frame", "frame", f.Index(), "err", err)
	}
}

func (l *Loop) consumeDropped() {
	l.dropMu.Lock()
	drops := l.drops
	l.drops = nil
	l.dropMu.Unlock()
	for _, f := range drops {
		l.consume(f)
	}
}

// drain consumes every frame still queued.
func (l *Loop) drain() {
	l.consumeDropped()
	if f := l.queue.Take(); f != nil {
		l.consume(f)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
