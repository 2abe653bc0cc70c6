package gfx

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// Context owns the frame lifecycle for one backend.
//
// Frames are produced on the recording side with BeginFrame, AppendBatch
// and EndFrame, and executed on the present side with ExecuteFrame or
// ConsumeFrameUpdates. The recording methods are safe to call from a
// different goroutine than the executing ones.
type Context struct {
	backend Backend

	mu      sync.Mutex
	current *Frame
	stereo  StereoState
	width   uint32
	height  uint32
	closed  bool

	begun    atomic.Uint64
	produced atomic.Uint64
	executed atomic.Uint64
	drained  atomic.Uint64
}

// Stats are frame lifecycle counters.
type Stats struct {
	Begun    uint64
	Produced uint64
	Executed uint64
	Drained  uint64
}

// NewContext creates a Context driving backend.
func NewContext(backend Backend, opts ...ContextOption) (*Context, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Context{
		backend: backend,
		stereo:  o.stereo,
		width:   o.width,
		height:  o.height,
	}, nil
}

// OpenContext opens the backend selected by cfg and wraps it in a Context.
// It fails fast with ErrBackendNotAvailable when no backend can be opened.
func OpenContext(cfg Config, opts ...ContextOption) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := OpenBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewContext(b, opts...)
}

// Backend returns the backend for call sites that need native interop.
func (c *Context) Backend() Backend { return c.backend }

// BeginFrame opens a new frame. The previous frame must have been ended.
func (c *Context) BeginFrame(index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.current != nil {
		return fmt.Errorf("%w: frame %d", ErrFrameInProgress, c.current.index)
	}
	f := newFrame(index, c.stereo)
	f.width, f.height = c.width, c.height
	c.current = f
	c.begun.Add(1)
	return nil
}

// AppendBatch adds b to the open frame. Batches execute in append order.
func (c *Context) AppendBatch(b *batch.Batch) error {
	return c.withFrame(func(f *Frame) { f.batches = append(f.batches, b) })
}

// SetFrameView overrides the view of the open frame.
func (c *Context) SetFrameView(m mgl32.Mat4) error {
	return c.withFrame(func(f *Frame) { f.view, f.hasView = m, true })
}

// SetFrameProjection overrides the projection of the open frame.
func (c *Context) SetFrameProjection(m mgl32.Mat4) error {
	return c.withFrame(func(f *Frame) { f.projection, f.hasProj = m, true })
}

// SetFramePose records the head pose the open frame is rendered with.
func (c *Context) SetFramePose(pose mgl32.Mat4) error {
	return c.withFrame(func(f *Frame) { f.pose = pose })
}

// SetFrameFramebuffer selects the output framebuffer of the open frame.
func (c *Context) SetFrameFramebuffer(fb *resource.Framebuffer) error {
	return c.withFrame(func(f *Frame) {
		f.framebuffer = fb
		if fb != nil {
			f.width, f.height = fb.Width(), fb.Height()
		}
	})
}

// OnFramePresented registers fn to run after the open frame is presented.
func (c *Context) OnFramePresented(fn func(*Frame)) error {
	return c.withFrame(func(f *Frame) { f.onPresented = append(f.onPresented, fn) })
}

func (c *Context) withFrame(fn func(*Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ErrNoFrameInProgress
	}
	fn(c.current)
	return nil
}

// EndFrame seals the open frame and its batches and hands it to the caller.
func (c *Context) EndFrame() (*Frame, error) {
	c.mu.Lock()
	f := c.current
	c.current = nil
	c.mu.Unlock()
	if f == nil {
		return nil, ErrNoFrameInProgress
	}
	for _, b := range f.batches {
		b.Seal()
	}
	f.sealedAt = time.Now()
	c.produced.Add(1)
	return f, nil
}

// ExecuteFrame replays f on the backend.
func (c *Context) ExecuteFrame(f *Frame) error {
	if err := c.backend.Render(f); err != nil {
		return fmt.Errorf("gfx: execute frame %d: %w", f.index, err)
	}
	c.executed.Add(1)
	return nil
}

// ConsumeFrameUpdates applies the resource updates of f without rendering
// it. Use it to drain frames that will not be presented.
func (c *Context) ConsumeFrameUpdates(f *Frame) error {
	if err := c.backend.SyncFrame(f); err != nil {
		return fmt.Errorf("gfx: consume frame %d: %w", f.index, err)
	}
	c.drained.Add(1)
	return nil
}

// EnableStereo turns stereo on or off for frames begun afterwards.
func (c *Context) EnableStereo(enable bool) {
	c.mu.Lock()
	c.stereo.Enabled = enable
	c.mu.Unlock()
}

// IsStereo reports whether new frames render in stereo.
func (c *Context) IsStereo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stereo.Enabled
}

// SetStereoProjections sets the per-eye projections of new frames.
func (c *Context) SetStereoProjections(p [2]mgl32.Mat4) {
	c.mu.Lock()
	c.stereo.EyeProjections = p
	c.mu.Unlock()
}

// SetStereoViews sets the per-eye eye-to-head offsets of new frames.
func (c *Context) SetStereoViews(v [2]mgl32.Mat4) {
	c.mu.Lock()
	c.stereo.EyeViews = v
	c.mu.Unlock()
}

// Stereo returns the stereo state applied to new frames.
func (c *Context) Stereo() StereoState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stereo
}

// SetFrameSize changes the output size recorded with new frames.
func (c *Context) SetFrameSize(width, height uint32) {
	c.mu.Lock()
	c.width, c.height = max(width, 1), max(height, 1)
	c.mu.Unlock()
}

// Recycle forwards to Backend.Recycle.
func (c *Context) Recycle() { c.backend.Recycle() }

// SyncCache forwards to Backend.SyncCache.
func (c *Context) SyncCache() { c.backend.SyncCache() }

// Stats returns the frame lifecycle counters.
func (c *Context) Stats() Stats {
	return Stats{
		Begun:    c.begun.Load(),
		Produced: c.produced.Load(),
		Executed: c.executed.Load(),
		Drained:  c.drained.Load(),
	}
}

// Close closes the backend. Frames still open are discarded.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.current = nil
	c.mu.Unlock()
	return c.backend.Close()
}
