package replay

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
)

// resolved holds the mirror handles of a batch's resource tables, indexed
// like the tables. The draw pass reads handles only from here, so a mirror
// forgotten mid-batch stays usable until Recycle.
type resolved struct {
	buffers      []Handle
	textures     []Handle
	framebuffers []Handle
	pipelines    []Handle
	queries      []Handle
}

func (r *resolved) resolve(e *Engine, b *batch.Batch) {
	r.buffers = resolveAll(r.buffers, b.Buffers(), e.syncBuffer)
	r.textures = resolveAll(r.textures, b.Textures(), e.syncTexture)
	r.framebuffers = resolveAll(r.framebuffers, b.Framebuffers(), e.syncFramebuffer)
	r.pipelines = resolveAll(r.pipelines, b.Pipelines(), e.syncPipeline)
	r.queries = resolveAll(r.queries, b.Queries(), e.syncQuery)
}

func resolveAll[T any](dst []Handle, src []T, sync func(T) Handle) []Handle {
	clear(dst)
	dst = dst[:0]
	for _, v := range src {
		dst = append(dst, sync(v))
	}
	return dst
}

func handleAt(hs []Handle, i uint32) Handle {
	if int(i) >= len(hs) {
		return nil
	}
	return hs[i]
}

// transformState tracks the transform commands of a batch in the transfer
// pass.
type transformState struct {
	model      mgl32.Mat4
	view       mgl32.Mat4
	camera     mgl32.Mat4 // inverse of view
	projection mgl32.Mat4
	viewport   batch.Rect
	depthRange [2]float32
}

func (e *Engine) initialTransforms() transformState {
	t := transformState{
		model:      mgl32.Ident4(),
		view:       mgl32.Ident4(),
		camera:     mgl32.Ident4(),
		projection: mgl32.Ident4(),
		depthRange: [2]float32{0, 1},
	}
	if e.hasView {
		t.view = e.frameView
		t.camera = e.frameView.Inv()
	}
	if e.hasProj {
		t.projection = e.frameProj
	}
	t.viewport = e.frameRect
	return t
}

// setView applies a view transform command. A camera transform is the
// camera-to-world matrix; the late correction is applied in camera space.
func (t *transformState) setView(m mgl32.Mat4, camera bool, correction *mgl32.Mat4) {
	if !camera {
		t.view = m
		t.camera = m.Inv()
		return
	}
	if correction != nil {
		m = m.Mul4(*correction)
	}
	t.camera = m
	t.view = m.Inv()
}

// object builds the transform object of one draw.
func (t *transformState) object(stereo *gfx.StereoState, eyes int) TransformObject {
	obj := TransformObject{
		Model:      t.model,
		Viewport:   t.viewport,
		DepthRange: t.depthRange,
	}
	if eyes == 0 {
		mono := Camera{View: t.view, Projection: t.projection}
		obj.Eyes = [2]Camera{mono, mono}
		return obj
	}
	for i := range obj.Eyes {
		obj.Eyes[i] = Camera{
			View:       t.camera.Mul4(stereo.EyeViews[i]).Inv(),
			Projection: stereo.EyeProjections[i],
		}
	}
	if eyes == 1 {
		obj.Eyes[1] = obj.Eyes[0]
		return obj
	}
	obj.Stereo = true
	return obj
}

// transfer resolves every resource of b and uploads its transforms.
func (e *Engine) transfer(b *batch.Batch) {
	e.res.resolve(e, b)

	e.transforms = e.transforms[:0]
	if b.DrawCallCount() == 0 {
		return
	}
	t := e.initialTransforms()
	flags := e.flags
	for cmd, off := range b.All() {
		switch cmd {
		case batch.CmdSetModelTransform:
			t.model = b.Mat4(b.Param(off).Uint())
		case batch.CmdSetViewTransform:
			var corr *mgl32.Mat4
			if !flags.viewCorrectionOff {
				corr = &e.correction.Correction
			}
			t.setView(b.Mat4(b.Param(off).Uint()), b.Param(off+1).Bool(), corr)
		case batch.CmdSetProjectionTransform:
			t.projection = b.Mat4(b.Param(off).Uint())
		case batch.CmdSetViewportTransform:
			t.viewport = b.Rect(b.Param(off).Uint())
		case batch.CmdSetDepthRangeTransform:
			t.depthRange = [2]float32{b.Param(off).Float(), b.Param(off + 1).Float()}
		case batch.CmdDisableContextViewCorrection:
			flags.savedViewCorrOff, flags.viewCorrectionOff = flags.viewCorrectionOff, true
		case batch.CmdRestoreContextViewCorrection:
			flags.viewCorrectionOff = flags.savedViewCorrOff
		case batch.CmdDisableContextStereo:
			flags.savedStereo, flags.stereoDisabled = flags.stereoDisabled, true
		case batch.CmdRestoreContextStereo:
			flags.stereoDisabled = flags.savedStereo
		default:
			if cmd.IsDraw() {
				e.transforms = append(e.transforms, t.object(&e.stereo, e.eyeCount(flags)))
			}
		}
	}
	e.check(e.dev.UploadTransforms(e.transforms), "UploadTransforms", b.Name())
}

// eyeCount returns 0 for a mono draw, 1 for a stereo draw degraded to the
// left eye and 2 for a real stereo draw.
func (e *Engine) eyeCount(flags contextFlags) int {
	if !e.stereo.Enabled || !e.batchStereo || flags.stereoDisabled {
		return 0
	}
	if e.caps.Stereo == gfx.StereoNone {
		return 1
	}
	return 2
}

// renderBatch replays one batch: transfer pass, then draw pass.
func (e *Engine) renderBatch(b *batch.Batch) {
	saved := e.flags
	e.batchStereo = b.IsStereoEnabled()
	e.drawIndex = 0
	e.named = ""

	e.transfer(b)

	for cmd, off := range b.All() {
		e.stats.Commands++
		if call := e.calls[cmd]; call != nil {
			call(b, off)
		}
	}

	e.flags = saved
	e.stats.Batches++
}
