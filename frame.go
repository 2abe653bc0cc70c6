package gfx

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// Eye selects one side of a stereo pair.
type Eye int

const (
	EyeLeft Eye = iota
	EyeRight
)

// StereoState describes how a frame renders in stereo.
type StereoState struct {
	Enabled bool
	// EyeProjections are the per-eye projection matrices.
	EyeProjections [2]mgl32.Mat4
	// EyeViews are the eye-to-head offsets applied after the frame view.
	EyeViews [2]mgl32.Mat4
}

// MonoStereo returns a disabled stereo state with identity eye matrices.
func MonoStereo() StereoState {
	return StereoState{
		EyeProjections: [2]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()},
		EyeViews:       [2]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()},
	}
}

// Frame is the sealed output of one BeginFrame/EndFrame cycle: an ordered
// list of batches plus frame-global metadata. A Frame is immutable and is
// consumed by exactly one backend call.
type Frame struct {
	index       uint32
	batches     []*batch.Batch
	stereo      StereoState
	view        mgl32.Mat4
	hasView     bool
	projection  mgl32.Mat4
	hasProj     bool
	pose        mgl32.Mat4
	framebuffer *resource.Framebuffer
	width       uint32
	height      uint32
	sealedAt    time.Time

	consumed atomic.Bool

	presentOnce sync.Once
	onPresented []func(*Frame)
}

func newFrame(index uint32, stereo StereoState) *Frame {
	return &Frame{
		index:      index,
		stereo:     stereo,
		view:       mgl32.Ident4(),
		projection: mgl32.Ident4(),
		pose:       mgl32.Ident4(),
	}
}

// Index returns the frame index passed to BeginFrame.
func (f *Frame) Index() uint32 { return f.index }

// Batches returns the batches in submission order. The slice must not be
// modified.
func (f *Frame) Batches() []*batch.Batch { return f.batches }

// Stereo returns the stereo state captured at BeginFrame.
func (f *Frame) Stereo() StereoState { return f.stereo }

// View returns the frame view override, if any.
func (f *Frame) View() (mgl32.Mat4, bool) { return f.view, f.hasView }

// Projection returns the frame projection override, if any.
func (f *Frame) Projection() (mgl32.Mat4, bool) { return f.projection, f.hasProj }

// Pose returns the head pose the frame was rendered with.
func (f *Frame) Pose() mgl32.Mat4 { return f.pose }

// Framebuffer returns the output framebuffer, or nil for the backend's
// default target.
func (f *Frame) Framebuffer() *resource.Framebuffer { return f.framebuffer }

// Size returns the output size recorded with the frame.
func (f *Frame) Size() (width, height uint32) { return f.width, f.height }

// SealedAt returns the time EndFrame sealed the frame.
func (f *Frame) SealedAt() time.Time { return f.sealedAt }

// Consume marks the frame as consumed. It returns ErrFrameConsumed if the
// frame was consumed before. Backends call it before touching the frame.
func (f *Frame) Consume() error {
	if !f.consumed.CompareAndSwap(false, true) {
		return ErrFrameConsumed
	}
	return nil
}

// Consumed reports whether a backend consumed the frame.
func (f *Frame) Consumed() bool { return f.consumed.Load() }

// Presented runs the OnPresented callbacks. It is called once by the
// present loop after the frame reached the surface; later calls do nothing.
func (f *Frame) Presented() {
	f.presentOnce.Do(func() {
		for _, fn := range f.onPresented {
			fn(f)
		}
	})
}

// DrawCallCount returns the number of draw commands over all batches.
func (f *Frame) DrawCallCount() int {
	n := 0
	for _, b := range f.batches {
		n += b.DrawCallCount()
	}
	return n
}

// NewFrame builds a sealed frame outside the BeginFrame/EndFrame cycle.
// Present-side composition uses it for passes that never reach the
// recording side. A nil fb renders to the backend's default target, whose
// size the frame does not know; its batches set their own viewport.
func NewFrame(index uint32, stereo StereoState, fb *resource.Framebuffer, batches ...*batch.Batch) *Frame {
	f := newFrame(index, stereo)
	f.framebuffer = fb
	if fb != nil {
		f.width, f.height = fb.Width(), fb.Height()
	}
	for _, b := range batches {
		b.Seal()
	}
	f.batches = batches
	f.sealedAt = time.Now()
	return f
}
