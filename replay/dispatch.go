package replay

import (
	"time"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
)

// commandCall handles one recorded command whose params start at off.
type commandCall func(b *batch.Batch, off uint32)

// bindCommands fills the dispatch table. Transform commands have no
// draw-pass handler apart from the viewport; the transfer pass consumes
// them.
func (e *Engine) bindCommands() {
	e.calls = [batch.NumCommands]commandCall{
		batch.CmdDraw:                 e.doDraw,
		batch.CmdDrawIndexed:          e.doDrawIndexed,
		batch.CmdDrawInstanced:        e.doDrawInstanced,
		batch.CmdDrawIndexedInstanced: e.doDrawIndexedInstanced,

		batch.CmdSetInputFormat: e.doSetInputFormat,
		batch.CmdSetInputBuffer: e.doSetInputBuffer,
		batch.CmdSetIndexBuffer: e.doSetIndexBuffer,

		batch.CmdSetViewportTransform:   e.doSetViewportTransform,
		batch.CmdSetDepthRangeTransform: e.doSetDepthRangeTransform,

		batch.CmdSetPipeline:         e.doSetPipeline,
		batch.CmdSetStateBlendFactor: e.doSetStateBlendFactor,
		batch.CmdSetStateScissorRect: e.doSetStateScissorRect,
		batch.CmdSetStencilReference: e.doSetStencilReference,
		batch.CmdSetUniformBuffer:    e.doSetUniformBuffer,
		batch.CmdSetResourceBuffer:   e.doSetResourceBuffer,
		batch.CmdSetResourceTexture:  e.doSetResourceTexture,
		batch.CmdSetFramebuffer:      e.doSetFramebuffer,
		batch.CmdClearFramebuffer:    e.doClearFramebuffer,
		batch.CmdBlit:                e.doBlit,
		batch.CmdGenerateTextureMips: e.doGenerateTextureMips,
		batch.CmdBeginQuery:          e.doBeginQuery,
		batch.CmdEndQuery:            e.doEndQuery,
		batch.CmdGetQuery:            e.doGetQuery,
		batch.CmdResetStages:         e.doResetStages,

		batch.CmdDisableContextViewCorrection: e.doDisableContextViewCorrection,
		batch.CmdRestoreContextViewCorrection: e.doRestoreContextViewCorrection,
		batch.CmdDisableContextStereo:         e.doDisableContextStereo,
		batch.CmdRestoreContextStereo:         e.doRestoreContextStereo,

		batch.CmdRunLambda:        e.doRunLambda,
		batch.CmdStartNamedCall:   e.doStartNamedCall,
		batch.CmdStopNamedCall:    e.doStopNamedCall,
		batch.CmdPushProfileRange: e.doPushProfileRange,
		batch.CmdPopProfileRange:  e.doPopProfileRange,
	}
}

// applied counts a state-changing device call and reports its success.
func (e *Engine) applied(err error, cmd batch.Command, b *batch.Batch) bool {
	e.stats.StateCalls++
	return e.check(err, cmd.String(), b.Name())
}

func (e *Engine) elide() { e.stats.ElidedCalls++ }

// Draws.

func (e *Engine) doDraw(b *batch.Batch, off uint32) {
	p := b.Params(off, 3)
	e.draw(b, DrawCall{Primitive: batch.Primitive(p[0].Uint()), Count: p[1].Uint(), First: p[2].Uint(), Instances: 1})
}

func (e *Engine) doDrawIndexed(b *batch.Batch, off uint32) {
	p := b.Params(off, 3)
	e.draw(b, DrawCall{Indexed: true, Primitive: batch.Primitive(p[0].Uint()), Count: p[1].Uint(), First: p[2].Uint(), Instances: 1})
}

func (e *Engine) doDrawInstanced(b *batch.Batch, off uint32) {
	p := b.Params(off, 5)
	e.draw(b, DrawCall{
		Instances:     p[0].Uint(),
		Primitive:     batch.Primitive(p[1].Uint()),
		Count:         p[2].Uint(),
		First:         p[3].Uint(),
		FirstInstance: p[4].Uint(),
	})
}

func (e *Engine) doDrawIndexedInstanced(b *batch.Batch, off uint32) {
	p := b.Params(off, 5)
	e.draw(b, DrawCall{
		Indexed:       true,
		Instances:     p[0].Uint(),
		Primitive:     batch.Primitive(p[1].Uint()),
		Count:         p[2].Uint(),
		First:         p[3].Uint(),
		FirstInstance: p[4].Uint(),
	})
}

func (e *Engine) draw(b *batch.Batch, call DrawCall) {
	call.Transform = e.drawIndex
	e.drawIndex++
	if e.state.Pipeline == nil || !e.fbValid {
		e.stats.SkippedDraws++
		gfx.Logger().Debug("replay: draw skipped",
			"batch", b.Name(), "draw", call.Transform,
			"pipeline", e.state.Pipeline != nil, "framebuffer", e.fbValid)
		return
	}

	switch e.eyeCount(e.flags) {
	case 2:
		if e.caps.Stereo == gfx.StereoInstanced {
			call.Instances *= 2
			call.FirstInstance *= 2
			call.Eye = EyeBoth
			e.issue(b, call)
			return
		}
		vp, dr := e.state.Viewport, e.state.DepthRange
		for eye := range 2 {
			e.setViewport(b, batch.CmdDraw, eyeViewport(vp, eye), dr)
			call.Eye = eye
			e.issue(b, call)
		}
		e.setViewport(b, batch.CmdDraw, vp, dr)
	case 1:
		e.warnedMono.Do(func() {
			gfx.Logger().Warn("replay: backend has no stereo path, rendering left eye only",
				"backend", e.caps.Name)
		})
		e.issue(b, call)
	default:
		e.issue(b, call)
	}
}

func (e *Engine) issue(b *batch.Batch, call DrawCall) {
	e.check(e.dev.Draw(call), batch.CmdDraw.String(), b.Name())
	e.stats.DrawCalls++
	if e.named != "" {
		e.stats.NamedDraws[e.named]++
	}
}

// eyeViewport returns the left or right half of vp.
func eyeViewport(vp batch.Rect, eye int) batch.Rect {
	half := vp.Width / 2
	r := batch.Rect{X: vp.X, Y: vp.Y, Width: half, Height: vp.Height}
	if eye == 1 {
		r.X += half
		r.Width = vp.Width - half
	}
	return r
}

// Input.

func (e *Engine) doSetInputFormat(b *batch.Batch, off uint32) {
	f := b.Format(b.Param(off).Uint())
	if e.state.Format == f {
		e.elide()
		return
	}
	if e.applied(e.dev.BindFormat(f), batch.CmdSetInputFormat, b) {
		e.state.Format = f
	}
}

func (e *Engine) doSetInputBuffer(b *batch.Batch, off uint32) {
	p := b.Params(off, 4)
	slot := p[0].Uint()
	if slot >= MaxInputSlots {
		e.badSlot(b, batch.CmdSetInputBuffer, slot)
		return
	}
	vb := VertexBinding{Buffer: handleAt(e.res.buffers, p[1].Uint()), Offset: p[2].Size(), Stride: p[3].Uint()}
	if e.state.VertexBuffers[slot] == vb {
		e.elide()
		return
	}
	if e.applied(e.dev.BindVertexBuffer(slot, vb), batch.CmdSetInputBuffer, b) {
		e.state.VertexBuffers[slot] = vb
	}
}

func (e *Engine) doSetIndexBuffer(b *batch.Batch, off uint32) {
	p := b.Params(off, 3)
	ib := IndexBinding{Type: batch.IndexType(p[0].Uint()), Buffer: handleAt(e.res.buffers, p[1].Uint()), Offset: p[2].Size()}
	if e.state.IndexBuffer == ib {
		e.elide()
		return
	}
	if e.applied(e.dev.BindIndexBuffer(ib), batch.CmdSetIndexBuffer, b) {
		e.state.IndexBuffer = ib
	}
}

// Transforms. Only the viewport is native state.

func (e *Engine) doSetViewportTransform(b *batch.Batch, off uint32) {
	e.setViewport(b, batch.CmdSetViewportTransform, b.Rect(b.Param(off).Uint()), e.state.DepthRange)
}

func (e *Engine) doSetDepthRangeTransform(b *batch.Batch, off uint32) {
	p := b.Params(off, 2)
	e.setViewport(b, batch.CmdSetDepthRangeTransform, e.state.Viewport, [2]float32{p[0].Float(), p[1].Float()})
}

func (e *Engine) setViewport(b *batch.Batch, cmd batch.Command, r batch.Rect, dr [2]float32) {
	if e.state.Viewport == r && e.state.DepthRange == dr {
		e.elide()
		return
	}
	if e.applied(e.dev.SetViewport(r, dr), cmd, b) {
		e.state.Viewport, e.state.DepthRange = r, dr
	}
}

// Pipeline and fixed-function state.

func (e *Engine) doSetPipeline(b *batch.Batch, off uint32) {
	i := b.Param(off).Uint()
	h := handleAt(e.res.pipelines, i)
	if h == nil {
		if p := b.Pipeline(i); p != nil {
			gfx.Logger().Debug("replay: pipeline unavailable", "batch", b.Name(), "pipeline", p.Label())
		}
		e.state.Pipeline = nil
		return
	}
	if e.state.Pipeline == h {
		e.elide()
		return
	}
	if e.applied(e.dev.BindPipeline(h), batch.CmdSetPipeline, b) {
		e.state.Pipeline = h
	}
}

func (e *Engine) doSetStateBlendFactor(b *batch.Batch, off uint32) {
	c := b.Vec4(b.Param(off).Uint())
	if e.state.BlendConstant == c {
		e.elide()
		return
	}
	if e.applied(e.dev.SetBlendConstant(c), batch.CmdSetStateBlendFactor, b) {
		e.state.BlendConstant = c
	}
}

func (e *Engine) doSetStateScissorRect(b *batch.Batch, off uint32) {
	r := b.Rect(b.Param(off).Uint())
	if e.state.Scissor == r {
		e.elide()
		return
	}
	if e.applied(e.dev.SetScissor(r), batch.CmdSetStateScissorRect, b) {
		e.state.Scissor = r
	}
}

func (e *Engine) doSetStencilReference(b *batch.Batch, off uint32) {
	ref := b.Param(off).Uint()
	if e.state.StencilRef == ref {
		e.elide()
		return
	}
	if e.applied(e.dev.SetStencilReference(ref), batch.CmdSetStencilReference, b) {
		e.state.StencilRef = ref
	}
}

// Resources.

func (e *Engine) doSetUniformBuffer(b *batch.Batch, off uint32) {
	p := b.Params(off, 4)
	slot := p[0].Uint()
	if slot >= MaxUniformSlots {
		e.badSlot(b, batch.CmdSetUniformBuffer, slot)
		return
	}
	ub := BufferBinding{Buffer: handleAt(e.res.buffers, p[1].Uint()), Offset: p[2].Size(), Size: p[3].Size()}
	if ub.Size == 0 {
		if buf := b.Buffer(p[1].Uint()); buf != nil && uint64(buf.Size()) > ub.Offset {
			ub.Size = uint64(buf.Size()) - ub.Offset
		}
	}
	if e.state.UniformBuffers[slot] == ub {
		e.elide()
		return
	}
	if e.applied(e.dev.BindUniformBuffer(slot, ub), batch.CmdSetUniformBuffer, b) {
		e.state.UniformBuffers[slot] = ub
	}
}

func (e *Engine) doSetResourceBuffer(b *batch.Batch, off uint32) {
	p := b.Params(off, 2)
	slot := p[0].Uint()
	if slot >= MaxStorageSlots {
		e.badSlot(b, batch.CmdSetResourceBuffer, slot)
		return
	}
	h := handleAt(e.res.buffers, p[1].Uint())
	if e.state.StorageBuffers[slot] == h {
		e.elide()
		return
	}
	if e.applied(e.dev.BindStorageBuffer(slot, h), batch.CmdSetResourceBuffer, b) {
		e.state.StorageBuffers[slot] = h
	}
}

func (e *Engine) doSetResourceTexture(b *batch.Batch, off uint32) {
	p := b.Params(off, 2)
	slot := p[0].Uint()
	if slot >= MaxTextureSlots {
		e.badSlot(b, batch.CmdSetResourceTexture, slot)
		return
	}
	h := handleAt(e.res.textures, p[1].Uint())
	if e.state.Textures[slot] == h {
		e.elide()
		return
	}
	if e.applied(e.dev.BindTexture(slot, h), batch.CmdSetResourceTexture, b) {
		e.state.Textures[slot] = h
	}
}

func (e *Engine) badSlot(b *batch.Batch, cmd batch.Command, slot uint32) {
	e.stats.DeviceErrors++
	gfx.Logger().Debug("replay: slot out of range", "command", cmd.String(), "batch", b.Name(), "slot", slot)
}

// Framebuffers.

func (e *Engine) doSetFramebuffer(b *batch.Batch, off uint32) {
	i := b.Param(off).Uint()
	fb := b.Framebuffer(i)
	var h Handle
	if fb == nil {
		fb = e.frameFB
		if fb != nil {
			h, _ = e.lookup(fb)
		}
	} else {
		h = handleAt(e.res.framebuffers, i)
	}
	e.bindFramebuffer(b, fb != nil, h)
}

// bindFramebuffer binds h. When want is set but h is nil the framebuffer
// failed to sync, and draws are skipped until the next valid bind.
func (e *Engine) bindFramebuffer(b *batch.Batch, want bool, h Handle) {
	if want && h == nil {
		e.fbValid = false
		gfx.Logger().Debug("replay: framebuffer unavailable", "batch", b.Name())
		return
	}
	e.fbValid = true
	if e.state.Framebuffer == h {
		e.elide()
		return
	}
	if e.applied(e.dev.BindFramebuffer(h), batch.CmdSetFramebuffer, b) {
		e.state.Framebuffer = h
	}
}

func (e *Engine) doClearFramebuffer(b *batch.Batch, off uint32) {
	if !e.fbValid {
		return
	}
	p := b.Params(off, 5)
	op := ClearOp{
		Masks:   batch.ClearMask(p[0].Uint()),
		Color:   b.Vec4(p[1].Uint()),
		Depth:   p[2].Float(),
		Stencil: p[3].Uint(),
	}
	if p[4].Bool() {
		sc := e.state.Scissor
		op.Scissor = &sc
	}
	e.applied(e.dev.Clear(op), batch.CmdClearFramebuffer, b)
}

func (e *Engine) doBlit(b *batch.Batch, off uint32) {
	p := b.Params(off, 4)
	src := handleAt(e.res.framebuffers, p[0].Uint())
	if src == nil {
		gfx.Logger().Debug("replay: blit source unavailable", "batch", b.Name())
		return
	}
	var dst Handle
	if b.Framebuffer(p[2].Uint()) != nil {
		if dst = handleAt(e.res.framebuffers, p[2].Uint()); dst == nil {
			gfx.Logger().Debug("replay: blit destination unavailable", "batch", b.Name())
			return
		}
	} else if e.frameFB != nil {
		dst, _ = e.lookup(e.frameFB)
	}
	e.applied(e.dev.Blit(src, b.Rect(p[1].Uint()), dst, b.Rect(p[3].Uint())), batch.CmdBlit, b)
}

func (e *Engine) doGenerateTextureMips(b *batch.Batch, off uint32) {
	h := handleAt(e.res.textures, b.Param(off).Uint())
	if h == nil {
		return
	}
	e.applied(e.dev.GenerateMips(h), batch.CmdGenerateTextureMips, b)
}

// Queries.

func (e *Engine) doBeginQuery(b *batch.Batch, off uint32) {
	i := b.Param(off).Uint()
	q, h := b.Query(i), handleAt(e.res.queries, i)
	if h == nil {
		return
	}
	e.queries[q.ID()] = queryTiming{start: time.Now()}
	e.applied(e.dev.BeginQuery(h), batch.CmdBeginQuery, b)
}

func (e *Engine) doEndQuery(b *batch.Batch, off uint32) {
	i := b.Param(off).Uint()
	q, h := b.Query(i), handleAt(e.res.queries, i)
	if h == nil {
		return
	}
	if t, ok := e.queries[q.ID()]; ok {
		t.cpu = time.Since(t.start)
		e.queries[q.ID()] = t
	}
	e.applied(e.dev.EndQuery(h), batch.CmdEndQuery, b)
}

func (e *Engine) doGetQuery(b *batch.Batch, off uint32) {
	i := b.Param(off).Uint()
	q, h := b.Query(i), handleAt(e.res.queries, i)
	if h == nil {
		return
	}
	nanos, ok := e.dev.QueryResult(h)
	if !ok {
		return
	}
	t := e.queries[q.ID()]
	delete(e.queries, q.ID())
	q.SetResult(time.Duration(nanos), t.cpu)
}

// doResetStages unbinds every input and resource slot.
func (e *Engine) doResetStages(b *batch.Batch, _ uint32) {
	if e.state.Format != nil && e.applied(e.dev.BindFormat(nil), batch.CmdResetStages, b) {
		e.state.Format = nil
	}
	for slot, vb := range e.state.VertexBuffers {
		// #nosec G115 -- slot < MaxInputSlots
		if vb != (VertexBinding{}) && e.applied(e.dev.BindVertexBuffer(uint32(slot), VertexBinding{}), batch.CmdResetStages, b) {
			e.state.VertexBuffers[slot] = VertexBinding{}
		}
	}
	if e.state.IndexBuffer != (IndexBinding{}) && e.applied(e.dev.BindIndexBuffer(IndexBinding{}), batch.CmdResetStages, b) {
		e.state.IndexBuffer = IndexBinding{}
	}
	for slot, ub := range e.state.UniformBuffers {
		// #nosec G115 -- slot < MaxUniformSlots
		if ub != (BufferBinding{}) && e.applied(e.dev.BindUniformBuffer(uint32(slot), BufferBinding{}), batch.CmdResetStages, b) {
			e.state.UniformBuffers[slot] = BufferBinding{}
		}
	}
	for slot, h := range e.state.StorageBuffers {
		// #nosec G115 -- slot < MaxStorageSlots
		if h != nil && e.applied(e.dev.BindStorageBuffer(uint32(slot), nil), batch.CmdResetStages, b) {
			e.state.StorageBuffers[slot] = nil
		}
	}
	for slot, h := range e.state.Textures {
		// #nosec G115 -- slot < MaxTextureSlots
		if h != nil && e.applied(e.dev.BindTexture(uint32(slot), nil), batch.CmdResetStages, b) {
			e.state.Textures[slot] = nil
		}
	}
}

// Context toggles. They last until restored or the end of the batch.

func (e *Engine) doDisableContextViewCorrection(*batch.Batch, uint32) {
	e.flags.savedViewCorrOff, e.flags.viewCorrectionOff = e.flags.viewCorrectionOff, true
}

func (e *Engine) doRestoreContextViewCorrection(*batch.Batch, uint32) {
	e.flags.viewCorrectionOff = e.flags.savedViewCorrOff
}

func (e *Engine) doDisableContextStereo(*batch.Batch, uint32) {
	e.flags.savedStereo, e.flags.stereoDisabled = e.flags.stereoDisabled, true
}

func (e *Engine) doRestoreContextStereo(*batch.Batch, uint32) {
	e.flags.stereoDisabled = e.flags.savedStereo
}

// Misc.

func (e *Engine) doRunLambda(b *batch.Batch, off uint32) {
	if fn := b.Lambda(b.Param(off).Uint()); fn != nil {
		fn()
	}
}

func (e *Engine) doStartNamedCall(b *batch.Batch, off uint32) {
	e.named = b.NameAt(b.Param(off).Uint())
}

func (e *Engine) doStopNamedCall(*batch.Batch, uint32) { e.named = "" }

func (e *Engine) doPushProfileRange(b *batch.Batch, off uint32) {
	if e.opts.debug {
		e.dev.PushMarker(b.NameAt(b.Param(off).Uint()))
	}
}

func (e *Engine) doPopProfileRange(*batch.Batch, uint32) {
	if e.opts.debug {
		e.dev.PopMarker()
	}
}
