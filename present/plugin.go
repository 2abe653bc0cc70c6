// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// DisplayPlugin turns executed frames into presented images. All methods
// run on the present goroutine unless noted otherwise.
type DisplayPlugin interface {
	Name() string

	// IsHMD reports whether the plugin drives a head-mounted display.
	IsHMD() bool

	// IsStereo reports whether frames for this plugin should be stereo.
	// It is fixed for the lifetime of the plugin.
	IsStereo() bool

	// BeginFrameRender is called before the frame with the given index is
	// executed. Returning false skips the frame; its updates are drained.
	BeginFrameRender(index uint32) bool

	// CameraCorrection returns the late camera correction for the frame
	// announced by BeginFrameRender and the view it was recorded with.
	CameraCorrection() (correction, prevView mgl32.Mat4)

	// UpdatePresentPose samples the pose the frame is presented with. It
	// runs after the frame executed and before composition.
	UpdatePresentPose()

	// Composite draws the executed frame and the overlay passes into the
	// target.
	Composite(target *CompositeTarget, f *gfx.Frame) error

	// Present hands the composited image to the display.
	Present(s Surface) error
}

// Layer is an extra composition pass drawn after the pointer and lasers.
type Layer interface {
	Composite(t *CompositeTarget, f *gfx.Frame) error
}

// LayerFunc adapts a function to Layer.
type LayerFunc func(t *CompositeTarget, f *gfx.Frame) error

// Composite implements Layer.
func (fn LayerFunc) Composite(t *CompositeTarget, f *gfx.Frame) error { return fn(t, f) }

// CompositeTarget records composition passes into the cycle's drawable and
// replays them through the backend. Each pass is one backend frame.
type CompositeTarget struct {
	Target

	backend gfx.Backend
	index   uint32
	enter   func(Stage)
	passes  *int
}

func newCompositeTarget(backend gfx.Backend, t Target, index uint32, enter func(Stage)) *CompositeTarget {
	return &CompositeTarget{Target: t, backend: backend, index: index, enter: enter, passes: new(int)}
}

// Pass records one composition pass. The batch starts bound to the target
// with a full-target viewport.
func (t *CompositeTarget) Pass(name string, record func(b *batch.Batch)) error {
	b := batch.New(name)
	b.SetFramebuffer(t.Framebuffer)
	b.SetViewportTransform(t.Rect())
	record(b)
	*t.passes++
	return t.backend.Render(gfx.NewFrame(t.index, gfx.MonoStereo(), t.Framebuffer, b))
}

// Enter reports the composition stage the plugin is in.
func (t *CompositeTarget) Enter(s Stage) {
	if t.enter != nil {
		t.enter(s)
	}
}

// Retarget returns a target drawing into fb. Passes recorded through it
// count toward the same cycle.
func (t *CompositeTarget) Retarget(fb *resource.Framebuffer) *CompositeTarget {
	rt := *t
	rt.Framebuffer = fb
	rt.Width, rt.Height = fb.Width(), fb.Height()
	return &rt
}

// Passes returns the number of passes recorded this cycle.
func (t *CompositeTarget) Passes() int { return *t.passes }
