// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halbackend

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/replay"
	"github.com/gogpu/gfx/resource"
)

var (
	errNoPipeline  = errors.New("halbackend: draw without pipeline")
	errNoTransform = errors.New("halbackend: draw references a transform that was not uploaded")
)

// debugGrouper is implemented by encoders that support labeled groups.
type debugGrouper interface {
	PushDebugGroup(label string)
	PopDebugGroup()
}

// frameEncoder is the command encoder of the frame being recorded and its
// open render pass, if any.
type frameEncoder struct {
	enc    hal.CommandEncoder
	pass   hal.RenderPassEncoder
	passFB *halFramebuffer
	groups int
}

func (fe *frameEncoder) discard() {
	if fe.pass != nil {
		fe.pass.End()
	}
	if fe.enc != nil {
		fe.enc.DiscardEncoding()
	}
	*fe = frameEncoder{}
}

func (d *Device) encoder() (hal.CommandEncoder, error) {
	if d.enc.enc != nil {
		return d.enc.enc, nil
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gfx_frame"})
	if err != nil {
		return nil, fmt.Errorf("halbackend: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("gfx_frame"); err != nil {
		return nil, fmt.Errorf("halbackend: begin encoding: %w", err)
	}
	d.enc.enc = enc
	return enc, nil
}

func (d *Device) currentFB() *halFramebuffer {
	if d.fb != nil {
		return d.fb
	}
	return d.target
}

// beginPass opens a render pass on the current framebuffer. Attachments
// selected by clear are cleared, all others are loaded.
func (d *Device) beginPass(clear *replay.ClearOp) (hal.RenderPassEncoder, error) {
	d.endPass()
	enc, err := d.encoder()
	if err != nil {
		return nil, err
	}
	fb := d.currentFB()
	desc := &hal.RenderPassDescriptor{Label: fb.label}
	for i, c := range fb.colors {
		a := hal.RenderPassColorAttachment{
			View:    c.view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if clear != nil && clear.Masks&(batch.ClearColor0<<i) != 0 {
			a.LoadOp = gputypes.LoadOpClear
			a.ClearValue = toColor(clear.Color)
		}
		desc.ColorAttachments = append(desc.ColorAttachments, a)
	}
	if fb.depthTex != nil {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:           fb.depthTex.view,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
		if clear != nil && clear.Masks&batch.ClearDepth != 0 {
			ds.DepthLoadOp = gputypes.LoadOpClear
			assignFloat(&ds.DepthClearValue, clear.Depth)
		}
		if clear != nil && clear.Masks&batch.ClearStencil != 0 {
			ds.StencilLoadOp = gputypes.LoadOpClear
			assignUint(&ds.StencilClearValue, clear.Stencil)
		}
		desc.DepthStencilAttachment = ds
	}
	d.enc.pass = enc.BeginRenderPass(desc)
	d.enc.passFB = fb
	d.applyDynamicState()
	return d.enc.pass, nil
}

func (d *Device) endPass() {
	if d.enc.pass == nil {
		return
	}
	d.enc.pass.End()
	d.enc.pass = nil
	d.enc.passFB = nil
}

// pass returns the open render pass on the current framebuffer.
func (d *Device) pass() (hal.RenderPassEncoder, error) {
	if d.enc.pass != nil && d.enc.passFB == d.currentFB() {
		return d.enc.pass, nil
	}
	return d.beginPass(nil)
}

// applyDynamicState replays the fixed-function state into a new pass.
func (d *Device) applyDynamicState() {
	p := d.enc.pass
	vp := d.state.Viewport
	if vp.Empty() {
		fb := d.currentFB()
		vp = batch.Rect{Width: int32(fb.width), Height: int32(fb.height)} // #nosec G115 -- texture sizes fit
	}
	d.viewport(vp, d.state.DepthRange)
	if !d.state.Scissor.Empty() {
		d.scissor(d.state.Scissor)
	}
	c := toColor(d.state.BlendConstant)
	p.SetBlendConstant(&c)
	p.SetStencilReference(d.state.StencilRef)
}

func (d *Device) viewport(r batch.Rect, depth [2]float32) {
	d.enc.pass.SetViewport(float32(r.X), float32(r.Y), float32(r.Width), float32(r.Height), depth[0], depth[1])
}

func (d *Device) scissor(r batch.Rect) {
	c := d.clampRect(r)
	d.enc.pass.SetScissorRect(uint32(c.X), uint32(c.Y), uint32(c.Width), uint32(c.Height)) // #nosec G115 -- clamped
}

// clampRect limits r to the current framebuffer.
func (d *Device) clampRect(r batch.Rect) batch.Rect {
	fb := d.currentFB()
	w, h := int32(fb.width), int32(fb.height) // #nosec G115 -- texture sizes fit
	x0, y0 := min(max(r.X, 0), w), min(max(r.Y, 0), h)
	x1, y1 := min(max(r.X+r.Width, 0), w), min(max(r.Y+r.Height, 0), h)
	return batch.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// BindFramebuffer implements replay.Device. A nil handle selects the
// default target.
func (d *Device) BindFramebuffer(h replay.Handle) error {
	fb, ok := h.(*halFramebuffer)
	if h != nil && !ok {
		return fmt.Errorf("halbackend: bind framebuffer: foreign handle %T", h)
	}
	if fb != d.fb {
		d.endPass()
	}
	d.fb = fb
	d.state.Framebuffer = h
	return nil
}

// BindPipeline implements replay.Device.
func (d *Device) BindPipeline(h replay.Handle) error {
	if _, ok := h.(*halPipeline); h != nil && !ok {
		return fmt.Errorf("halbackend: bind pipeline: foreign handle %T", h)
	}
	d.state.Pipeline = h
	return nil
}

// BindFormat implements replay.Device.
func (d *Device) BindFormat(f *resource.Format) error {
	d.state.Format = f
	return nil
}

// BindVertexBuffer implements replay.Device.
func (d *Device) BindVertexBuffer(slot uint32, b replay.VertexBinding) error {
	if slot >= replay.MaxInputSlots {
		return fmt.Errorf("halbackend: vertex slot %d: %w", slot, resource.ErrSlotOutOfRange)
	}
	d.state.VertexBuffers[slot] = b
	return nil
}

// BindIndexBuffer implements replay.Device.
func (d *Device) BindIndexBuffer(b replay.IndexBinding) error {
	d.state.IndexBuffer = b
	return nil
}

// BindUniformBuffer implements replay.Device.
func (d *Device) BindUniformBuffer(slot uint32, b replay.BufferBinding) error {
	if slot >= halUniformSlots {
		return fmt.Errorf("halbackend: uniform slot %d: %w", slot, resource.ErrSlotOutOfRange)
	}
	d.state.UniformBuffers[slot] = b
	return nil
}

// BindStorageBuffer implements replay.Device.
func (d *Device) BindStorageBuffer(slot uint32, b replay.Handle) error {
	if slot >= halStorageSlots {
		return fmt.Errorf("halbackend: storage slot %d: %w", slot, resource.ErrSlotOutOfRange)
	}
	d.state.StorageBuffers[slot] = b
	return nil
}

// BindTexture implements replay.Device.
func (d *Device) BindTexture(slot uint32, t replay.Handle) error {
	if slot >= halTextureSlots {
		return fmt.Errorf("halbackend: texture slot %d: %w", slot, resource.ErrSlotOutOfRange)
	}
	d.state.Textures[slot] = t
	return nil
}

// SetViewport implements replay.Device.
func (d *Device) SetViewport(r batch.Rect, depthRange [2]float32) error {
	d.state.Viewport = r
	d.state.DepthRange = depthRange
	if d.enc.pass != nil {
		d.viewport(r, depthRange)
	}
	return nil
}

// SetScissor implements replay.Device.
func (d *Device) SetScissor(r batch.Rect) error {
	d.state.Scissor = r
	if d.enc.pass != nil && !r.Empty() {
		d.scissor(r)
	}
	return nil
}

// SetBlendConstant implements replay.Device.
func (d *Device) SetBlendConstant(c mgl32.Vec4) error {
	d.state.BlendConstant = c
	if d.enc.pass != nil {
		col := toColor(c)
		d.enc.pass.SetBlendConstant(&col)
	}
	return nil
}

// SetStencilReference implements replay.Device.
func (d *Device) SetStencilReference(ref uint32) error {
	d.state.StencilRef = ref
	if d.enc.pass != nil {
		d.enc.pass.SetStencilReference(ref)
	}
	return nil
}

// UploadTransforms implements replay.Device.
func (d *Device) UploadTransforms(objects []replay.TransformObject) error {
	return d.transforms.upload(d, objects)
}

// Draw implements replay.Device.
func (d *Device) Draw(call replay.DrawCall) error {
	p, ok := d.state.Pipeline.(*halPipeline)
	if !ok {
		return errNoPipeline
	}
	if call.Transform < 0 || d.transforms.base+call.Transform >= d.transforms.used {
		return errNoTransform
	}
	pass, err := d.pass()
	if err != nil {
		return err
	}
	rp, err := d.renderPipeline(p, d.enc.passFB, call.Primitive)
	if err != nil {
		return err
	}
	groups := [3]func() (hal.BindGroup, error){
		func() (hal.BindGroup, error) { return d.transformGroup(d.transforms.base + call.Transform) },
		d.resourceGroup,
		d.textureGroup,
	}
	bound := [3]hal.BindGroup{}
	for i, g := range groups {
		if bound[i], err = g(); err != nil {
			return fmt.Errorf("halbackend: draw %q: bind group %d: %w", p.label, i, err)
		}
	}

	pass.SetPipeline(rp)
	for i, bg := range bound {
		pass.SetBindGroup(uint32(i), bg, nil) // #nosec G115 -- three groups
	}
	for slot := range d.state.Format.Slots() {
		vb, ok := d.state.VertexBuffers[slot].Buffer.(*halBuffer)
		if !ok {
			return fmt.Errorf("halbackend: draw %q: vertex slot %d unbound", p.label, slot)
		}
		pass.SetVertexBuffer(uint32(slot), vb.buf, d.state.VertexBuffers[slot].Offset) // #nosec G115 -- slot < MaxInputSlots
	}

	if !call.Indexed {
		pass.Draw(call.Count, call.Instances, call.First, call.FirstInstance)
		return nil
	}
	ib, ok := d.state.IndexBuffer.Buffer.(*halBuffer)
	if !ok {
		return fmt.Errorf("halbackend: indexed draw %q without index buffer", p.label)
	}
	pass.SetIndexBuffer(ib.buf, indexFormat(d.state.IndexBuffer.Type), d.state.IndexBuffer.Offset)
	pass.DrawIndexed(call.Count, call.Instances, call.First, 0, call.FirstInstance)
	return nil
}

// Clear implements replay.Device. Clears start a new render pass with
// clear load operations, so a scissored clear covers the whole target.
func (d *Device) Clear(op replay.ClearOp) error {
	if op.Scissor != nil {
		gfx.Logger().Debug("halbackend: scissored clear covers the full framebuffer")
	}
	_, err := d.beginPass(&op)
	return err
}

// Blit implements replay.Device. Only copies between equally sized
// rectangles of matching formats are supported.
func (d *Device) Blit(src replay.Handle, srcRect batch.Rect, dst replay.Handle, dstRect batch.Rect) error {
	from, ok := src.(*halFramebuffer)
	if !ok || len(from.colors) == 0 {
		return fmt.Errorf("halbackend: blit source is not a color framebuffer")
	}
	to := d.target
	if dst != nil {
		if to, ok = dst.(*halFramebuffer); !ok || len(to.colors) == 0 {
			return fmt.Errorf("halbackend: blit destination is not a color framebuffer")
		}
	}
	s, t := from.colors[0], to.colors[0]
	if srcRect.Width != dstRect.Width || srcRect.Height != dstRect.Height || s.format != t.format || t.tex == nil {
		return fmt.Errorf("blit %q to %q with scaling or conversion: %w", from.label, to.label, errUnsupported)
	}
	if srcRect.Empty() {
		return nil
	}
	d.endPass()
	enc, err := d.encoder()
	if err != nil {
		return err
	}
	enc.CopyTextureToTexture(s.tex, t.tex, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: s.tex, Origin: hal.Origin3D{X: uint32(srcRect.X), Y: uint32(srcRect.Y)}, Aspect: gputypes.TextureAspectAll}, // #nosec G115 -- non-negative
		DstBase: hal.ImageCopyTexture{Texture: t.tex, Origin: hal.Origin3D{X: uint32(dstRect.X), Y: uint32(dstRect.Y)}, Aspect: gputypes.TextureAspectAll}, // #nosec G115 -- non-negative
		Size:    hal.Extent3D{Width: uint32(srcRect.Width), Height: uint32(srcRect.Height), DepthOrArrayLayers: 1},                                         // #nosec G115 -- non-empty
	}})
	return nil
}

// GenerateMips implements replay.Device. Mip chains are built on the CPU
// with resource.Texture.GenerateMips and uploaded with the texture.
func (d *Device) GenerateMips(h replay.Handle) error {
	t, ok := h.(*halTexture)
	if !ok {
		return fmt.Errorf("halbackend: generate mips: foreign handle %T", h)
	}
	if t.levels <= 1 {
		return nil
	}
	return fmt.Errorf("generate mips of %q on the GPU: %w", t.label, errUnsupported)
}

// BeginQuery implements replay.Device.
func (d *Device) BeginQuery(h replay.Handle) error { return nil }

// EndQuery implements replay.Device.
func (d *Device) EndQuery(h replay.Handle) error { return nil }

// QueryResult implements replay.Device. The device has no timer queries.
func (d *Device) QueryResult(h replay.Handle) (int64, bool) { return 0, false }

// PushMarker implements replay.Device.
func (d *Device) PushMarker(name string) {
	enc, err := d.encoder()
	if err != nil {
		return
	}
	if g, ok := enc.(debugGrouper); ok {
		g.PushDebugGroup(name)
		d.enc.groups++
	}
}

// PopMarker implements replay.Device.
func (d *Device) PopMarker() {
	if d.enc.groups == 0 {
		return
	}
	if g, ok := d.enc.enc.(debugGrouper); ok {
		g.PopDebugGroup()
		d.enc.groups--
	}
}

// Submit implements replay.Device. Objects released during the frame are
// destroyed once the GPU reports the submission complete.
func (d *Device) Submit() error {
	defer d.transforms.reset()
	if d.enc.enc == nil {
		d.retire(0, nil)
		return nil
	}
	d.endPass()
	for ; d.enc.groups > 0; d.enc.groups-- {
		d.enc.enc.(debugGrouper).PopDebugGroup()
	}
	enc := d.enc.enc
	d.enc = frameEncoder{}
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("halbackend: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("halbackend: submit: %w", err)
	}
	d.retire(index, cmd)
	if len(d.inflight) > maxFramesInFlight {
		return d.waitIdle()
	}
	return nil
}

func toColor(c mgl32.Vec4) gputypes.Color {
	var out gputypes.Color
	assignFloat(&out.R, c[0])
	assignFloat(&out.G, c[1])
	assignFloat(&out.B, c[2])
	assignFloat(&out.A, c[3])
	return out
}
