package replay

import (
	"errors"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// ErrClosed is returned by Render and SyncFrame after Close.
var ErrClosed = errors.New("replay: engine closed")

// TextureGate hides textures whose data is still being staged. A pending
// texture has no mirror and samples as unbound.
type TextureGate interface {
	Pending(t *resource.Texture) bool
}

// Stats are replay counters. They are updated on the present goroutine.
type Stats struct {
	Frames         uint64
	Batches        uint64
	Commands       uint64
	DrawCalls      uint64 // native draws issued
	SkippedDraws   uint64
	ElidedCalls    uint64
	StateCalls     uint64
	MirrorCreates  uint64
	MirrorRebuilds uint64
	MirrorFailures uint64
	DeviceErrors   uint64
	Destroyed      uint64
	Mirrors        int
	NamedDraws     map[string]uint64
}

// CameraCorrection is the late camera correction installed by
// SetCameraCorrection.
type CameraCorrection struct {
	Correction        mgl32.Mat4
	CorrectionInverse mgl32.Mat4
	PrevView          mgl32.Mat4
	PrevViewInverse   mgl32.Mat4
}

// Engine replays frames against a Device. It implements gfx.Backend.
type Engine struct {
	dev  Device
	caps gfx.Capabilities
	opts engineOptions
	gate TextureGate

	calls   [batch.NumCommands]commandCall
	mirrors mirrorTable
	trash   trashQueue
	state   DeviceState
	res     resolved

	transforms []TransformObject
	drawIndex  int

	correction  CameraCorrection
	stereo      gfx.StereoState
	frameFB     *resource.Framebuffer
	frameRect   batch.Rect
	frameView   mgl32.Mat4
	hasView     bool
	frameProj   mgl32.Mat4
	hasProj     bool
	batchStereo bool
	flags       contextFlags
	fbValid     bool
	named       string
	queries     map[resource.ID]queryTiming
	warnedMono  sync.Once

	stats  Stats
	closed atomic.Bool

	statsMu   sync.Mutex
	published Stats

	// scratch for Recycle
	spareHandles  []trashedHandle
	spareOrphans  []orphanKey
	spareDeferred []func()
}

type queryTiming struct {
	start time.Time
	cpu   time.Duration
}

// contextFlags are toggled by commands and restored after each batch.
type contextFlags struct {
	stereoDisabled    bool
	viewCorrectionOff bool
	savedStereo       bool
	savedViewCorrOff  bool
}

var _ gfx.Backend = (*Engine)(nil)

// NewEngine creates an Engine that replays onto dev.
func NewEngine(dev Device, opts ...EngineOption) *Engine {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	caps := dev.Capabilities()
	if o.stereoSet {
		caps.Stereo = o.stereo
	}
	e := &Engine{
		dev:        dev,
		caps:       caps,
		opts:       o,
		gate:       o.gate,
		mirrors:    newMirrorTable(),
		transforms: make([]TransformObject, 0, transformReserve),
		queries:    make(map[resource.ID]queryTiming),
		stereo:     gfx.MonoStereo(),
		state:      InitialState(),
		fbValid:    true,
	}
	e.stats.NamedDraws = make(map[string]uint64)
	e.publishStats()
	e.bindCommands()
	e.resetCorrection()
	gfx.Logger().Info("replay: engine ready",
		"backend", caps.Name, "stereo", caps.Stereo.String(), "debug", o.debug)
	return e
}

// Device returns the device the engine replays onto.
func (e *Engine) Device() Device { return e.dev }

// SetTextureGate installs g; nil removes it.
func (e *Engine) SetTextureGate(g TextureGate) { e.gate = g }

// Capabilities implements gfx.Backend.
func (e *Engine) Capabilities() gfx.Capabilities { return e.caps }

// Render implements gfx.Backend.
func (e *Engine) Render(f *gfx.Frame) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := f.Consume(); err != nil {
		return err
	}
	e.beginFrame(f)
	for _, b := range f.Batches() {
		e.renderBatch(b)
	}
	e.check(e.dev.Submit(), "Submit", "")
	e.frameFB = nil
	e.stats.Frames++
	e.publishStats()
	return nil
}

// SyncFrame implements gfx.Backend. It creates every mirror the frame
// references without issuing any draw.
func (e *Engine) SyncFrame(f *gfx.Frame) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := f.Consume(); err != nil {
		return err
	}
	e.syncFramebuffer(f.Framebuffer())
	for _, b := range f.Batches() {
		e.res.resolve(e, b)
	}
	e.publishStats()
	return nil
}

// SyncCache implements gfx.Backend.
func (e *Engine) SyncCache() {
	e.state = e.dev.ReadState()
}

// Recycle implements gfx.Backend.
func (e *Engine) Recycle() {
	handles, orphans, deferred := e.trash.take(e.spareHandles, e.spareOrphans, e.spareDeferred)
	for _, k := range orphans {
		if m, ok := e.mirrors[k.kind][k.id]; ok {
			delete(e.mirrors[k.kind], k.id)
			if m.handle != nil {
				handles = append(handles, trashedHandle{kind: k.kind, handle: m.handle})
			}
		}
	}
	for _, h := range handles {
		e.dev.Destroy(h.kind, h.handle)
	}
	for _, fn := range deferred {
		fn()
	}
	e.stats.Destroyed += uint64(len(handles))
	if len(handles) > 0 {
		gfx.Logger().Debug("replay: recycled", "objects", len(handles), "deferred", len(deferred))
	}
	clear(handles)
	clear(deferred)
	e.spareHandles, e.spareOrphans, e.spareDeferred = handles, orphans, deferred
	e.dev.Compact()
	e.publishStats()
}

// Trash queues a native handle for destruction on the next Recycle. It is
// safe to call from any goroutine.
func (e *Engine) Trash(kind resource.Kind, h Handle) { e.trash.push(kind, h) }

// Forget queues the mirror of obj for destruction on the next Recycle. It
// is safe to call from any goroutine, including from a batch lambda: work
// already replayed this frame keeps using the mirror.
func (e *Engine) Forget(obj resource.Object) {
	if obj == nil {
		return
	}
	e.trash.orphan(orphanKey{kind: obj.Kind(), id: obj.ID()})
}

// Defer runs fn on the present goroutine during the next Recycle.
func (e *Engine) Defer(fn func()) {
	if fn != nil {
		e.trash.later(fn)
	}
}

// Pending returns the number of queued trash entries.
func (e *Engine) Pending() int { return e.trash.len() }

// SetCameraCorrection implements gfx.Backend.
func (e *Engine) SetCameraCorrection(correction, prevRenderView mgl32.Mat4, reset bool) {
	e.correction.Correction = correction
	e.correction.CorrectionInverse = correction.Inv()
	if reset {
		e.correction.PrevView = mgl32.Ident4()
		e.correction.PrevViewInverse = mgl32.Ident4()
		return
	}
	e.correction.PrevView = prevRenderView
	e.correction.PrevViewInverse = prevRenderView.Inv()
}

// Correction returns the installed camera correction.
func (e *Engine) Correction() CameraCorrection { return e.correction }

func (e *Engine) resetCorrection() {
	id := mgl32.Ident4()
	e.correction = CameraCorrection{Correction: id, CorrectionInverse: id, PrevView: id, PrevViewInverse: id}
}

// ResolveTexture implements gfx.Backend. It never creates a mirror.
func (e *Engine) ResolveTexture(t *resource.Texture) (any, bool) {
	if t == nil {
		return nil, false
	}
	return e.lookup(t)
}

// Stats returns the replay counters as of the last Render, SyncFrame or
// Recycle. It is safe to call from any goroutine.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	s := e.published
	s.NamedDraws = maps.Clone(s.NamedDraws)
	return s
}

// publishStats copies the live counters, which only the replaying
// goroutine touches, into the snapshot Stats returns.
func (e *Engine) publishStats() {
	s := e.stats
	s.Mirrors = e.mirrors.count()
	s.NamedDraws = maps.Clone(e.stats.NamedDraws)
	e.statsMu.Lock()
	e.published = s
	e.statsMu.Unlock()
}

// Close implements gfx.Backend. It destroys every mirror and closes the
// device.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	for kind, table := range e.mirrors {
		for id, m := range table {
			if m.handle != nil {
				e.trash.push(resource.Kind(kind), m.handle)
			}
			delete(table, id)
		}
	}
	e.Recycle()
	gfx.Logger().Info("replay: engine closed", "backend", e.caps.Name, "frames", e.stats.Frames)
	return e.dev.Close()
}

func (e *Engine) beginFrame(f *gfx.Frame) {
	e.stereo = f.Stereo()
	e.frameFB = f.Framebuffer()
	e.frameView, e.hasView = f.View()
	e.frameProj, e.hasProj = f.Projection()
	w, h := f.Size()
	if e.frameFB != nil {
		w, h = e.frameFB.Width(), e.frameFB.Height()
	}
	e.frameRect = batch.Rect{Width: int32(w), Height: int32(h)} // #nosec G115 -- framebuffer sizes fit
	e.fbValid = true

	var fb Handle
	if e.frameFB != nil {
		if fb = e.syncFramebuffer(e.frameFB); fb == nil {
			e.fbValid = false
			return
		}
	}
	if e.state.Framebuffer != fb && e.check(e.dev.BindFramebuffer(fb), "BindFramebuffer", "") {
		e.state.Framebuffer = fb
	}
	e.frameViewport()
}

// frameViewport makes the whole frame target the native viewport, the
// same viewport the transfer pass starts from. Stereo double draws split
// it when no batch sets one.
func (e *Engine) frameViewport() {
	r, dr := e.frameRect, [2]float32{0, 1}
	if r.Empty() || (e.state.Viewport == r && e.state.DepthRange == dr) {
		return
	}
	if e.check(e.dev.SetViewport(r, dr), "SetViewport", "") {
		e.state.Viewport, e.state.DepthRange = r, dr
	}
}

// check records a device error. It reports whether err was nil.
func (e *Engine) check(err error, call, batchName string) bool {
	if err == nil {
		return true
	}
	e.stats.DeviceErrors++
	if e.opts.debug {
		gfx.Logger().Warn("replay: device call failed", "call", call, "batch", batchName, "err", err)
	}
	return false
}
