// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// OverlaySource supplies the UI overlay and the pointer. It is read on the
// present goroutine once per cycle.
type OverlaySource interface {
	// OverlayTexture returns the overlay image, or nil when nothing is
	// shown.
	OverlayTexture() *resource.Texture

	// OverlayTransform is the model matrix of the overlay quad. Display2D
	// ignores it; HMD places the quad in world space with it and uses its
	// translation as the center of the laser hit sphere.
	OverlayTransform() mgl32.Mat4

	// Pointer returns the pointer image and its model matrix. ok is false
	// when no pointer is shown.
	Pointer() (tex *resource.Texture, transform mgl32.Mat4, ok bool)

	// Alpha is the opacity of overlay and pointer.
	Alpha() float32
}

const (
	// uniformStride is the binding offset alignment of uniform records.
	uniformStride = 256
	// uniformSize covers three matrices and two vectors.
	uniformSize = 3*64 + 2*16
	// maxRecords bounds the draws of one pass: two eyes times two hands.
	maxRecords = 4
)

// uniforms is one uniform record shared by all composition shaders.
type uniforms struct {
	mats [3]mgl32.Mat4
	vecs [2]mgl32.Vec4
}

func (u *uniforms) encode(dst []byte) {
	off := 0
	for _, m := range u.mats {
		for _, v := range m {
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
			off += 4
		}
	}
	for _, vec := range u.vecs {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
			off += 4
		}
	}
}

// uniformSlab is a uniform buffer holding the records of one pass kind.
type uniformSlab struct {
	buf     *resource.Buffer
	scratch [uniformStride * maxRecords]byte
}

func newUniformSlab(label string) *uniformSlab {
	return &uniformSlab{
		buf: resource.NewBuffer(label, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst,
			make([]byte, uniformStride*maxRecords)),
	}
}

// store writes records and bumps the buffer stamp once.
func (s *uniformSlab) store(records []uniforms) {
	for i := range records {
		records[i].encode(s.scratch[i*uniformStride:])
	}
	s.buf.SetSubData(0, s.scratch[:len(records)*uniformStride])
}

func (s *uniformSlab) bind(b *batch.Batch, record int) {
	b.SetUniformBuffer(0, s.buf, uint64(record*uniformStride), uniformSize) // #nosec G115 -- record < maxRecords
}

// blitDraw copies src texels of a texture into the dst viewport.
type blitDraw struct {
	dst batch.Rect
	src batch.Rect
	// reproject enables the rotation warp.
	reproject  bool
	rotation   mgl32.Mat4
	projection mgl32.Mat4
}

// quadDraw places a textured quad with mvp into a viewport.
type quadDraw struct {
	viewport batch.Rect
	mvp      mgl32.Mat4
}

// laserDraw is one hand laser seen by one eye.
type laserDraw struct {
	viewport batch.Rect
	mvp      mgl32.Mat4
	color    mgl32.Vec4
}

// compositor owns the resources shared by the display plugins. It is used
// on the present goroutine only.
type compositor struct {
	overlay OverlaySource
	layers  []Layer

	empty *resource.Format
	blit  *resource.Pipeline
	quad  *resource.Pipeline
	laser *resource.Pipeline

	sceneU   *uniformSlab
	previewU *uniformSlab
	overlayU *uniformSlab
	pointerU *uniformSlab
	laserU   *uniformSlab
}

func newCompositor(overlay OverlaySource) *compositor {
	opaque := resource.OverlayState()
	opaque.Blend = resource.BlendNone
	lines := resource.OverlayState()
	lines.Blend = resource.BlendAlpha
	return &compositor{
		overlay:  overlay,
		empty:    resource.NewFormat("composite_none"),
		blit:     resource.NewPipeline("composite_blit", resource.NewShader("composite_blit", blitWGSL), opaque),
		quad:     resource.NewPipeline("composite_quad", resource.NewShader("composite_quad", quadWGSL), resource.OverlayState()),
		laser:    resource.NewPipeline("composite_laser", resource.NewShader("composite_laser", laserWGSL), lines),
		sceneU:   newUniformSlab("composite_scene"),
		previewU: newUniformSlab("composite_preview"),
		overlayU: newUniformSlab("composite_overlay"),
		pointerU: newUniformSlab("composite_pointer"),
		laserU:   newUniformSlab("composite_laser"),
	}
}

// AddLayer appends an extra composition pass.
func (c *compositor) AddLayer(l Layer) {
	if l != nil {
		c.layers = append(c.layers, l)
	}
}

func (c *compositor) blitPass(t *CompositeTarget, name string, slab *uniformSlab, tex *resource.Texture, draws []blitDraw) error {
	if tex == nil || len(draws) == 0 {
		return nil
	}
	records := make([]uniforms, len(draws))
	for i, d := range draws {
		r := &records[i]
		r.mats = [3]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4(), mgl32.Ident4()}
		r.vecs[0] = mgl32.Vec4{float32(d.src.X), float32(d.src.Y), float32(d.src.Width), float32(d.src.Height)}
		if d.reproject {
			r.mats = [3]mgl32.Mat4{d.rotation, d.projection.Inv(), d.projection}
			r.vecs[1][0] = 1
		}
	}
	slab.store(records)
	return t.Pass(name, func(b *batch.Batch) {
		b.SetInputFormat(c.empty)
		b.SetPipeline(c.blit)
		b.SetResourceTexture(0, tex)
		for i, d := range draws {
			b.SetViewportTransform(d.dst)
			slab.bind(b, i)
			b.Draw(batch.Triangles, 3, 0)
		}
	})
}

func (c *compositor) quadPass(t *CompositeTarget, name string, slab *uniformSlab, tex *resource.Texture, alpha float32, draws []quadDraw) error {
	if tex == nil || len(draws) == 0 {
		return nil
	}
	records := make([]uniforms, len(draws))
	for i, d := range draws {
		records[i].mats[0] = d.mvp
		records[i].vecs[0] = mgl32.Vec4{float32(tex.Width()), float32(tex.Height())}
		records[i].vecs[1] = mgl32.Vec4{0, alpha}
	}
	slab.store(records)
	return t.Pass(name, func(b *batch.Batch) {
		b.SetInputFormat(c.empty)
		b.SetPipeline(c.quad)
		b.SetResourceTexture(0, tex)
		for i, d := range draws {
			b.SetViewportTransform(d.viewport)
			slab.bind(b, i)
			b.Draw(batch.TriangleStrip, 4, 0)
		}
	})
}

func (c *compositor) laserPass(t *CompositeTarget, draws []laserDraw) error {
	if len(draws) == 0 {
		return nil
	}
	records := make([]uniforms, len(draws))
	for i, d := range draws {
		records[i].mats[0] = d.mvp
		records[i].vecs[0] = d.color
	}
	c.laserU.store(records)
	return t.Pass("composite_lasers", func(b *batch.Batch) {
		b.SetInputFormat(c.empty)
		b.SetPipeline(c.laser)
		for i, d := range draws {
			b.SetViewportTransform(d.viewport)
			c.laserU.bind(b, i)
			b.Draw(batch.Lines, 2, 0)
		}
	})
}

// extraPass runs the registered layers in order.
func (c *compositor) extraPass(t *CompositeTarget, f *gfx.Frame) error {
	var errs []error
	for _, l := range c.layers {
		if err := l.Composite(t, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// clearPass clears the target to color.
func clearPass(t *CompositeTarget, color mgl32.Vec4) error {
	return t.Pass("composite_clear", func(b *batch.Batch) {
		b.ClearFramebuffer(batch.ClearColorAll, color, 1, 0, false)
	})
}

// sceneTexture returns the color texture a frame rendered into, or nil
// when it rendered to the default target.
func sceneTexture(fb *resource.Framebuffer) *resource.Texture {
	if fb == nil {
		return nil
	}
	return fb.RenderBuffer(0)
}

// fullRect is the texel rectangle of a whole texture.
func fullRect(tex *resource.Texture) batch.Rect {
	// #nosec G115 -- texture sizes are far below int32 max
	return batch.Rect{Width: int32(tex.Width()), Height: int32(tex.Height())}
}

// eyeRect returns the left or right half of r.
func eyeRect(r batch.Rect, eye int) batch.Rect {
	half := r.Width / 2
	out := batch.Rect{X: r.X, Y: r.Y, Width: half, Height: r.Height}
	if eye == 1 {
		out.X += half
		out.Width = r.Width - half
	}
	return out
}
