package batch

import (
	"iter"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx/resource"
)

// Batch is a recorded, replayable list of GPU commands.
//
// A Batch is built on one goroutine and, once its frame is sealed, read by
// the backend on the present goroutine. Recording into a sealed Batch
// panics. Batch is not safe for concurrent use.
type Batch struct {
	name string

	commands []Command
	offsets  []uint32
	params   []Param
	data     []byte

	buffers      table[*resource.Buffer]
	textures     table[*resource.Texture]
	framebuffers table[*resource.Framebuffer]
	pipelines    table[*resource.Pipeline]
	formats      table[*resource.Format]
	queries      table[*resource.Query]
	names        table[string]
	lambdas      []func()

	drawCalls     int
	stereoEnabled bool
	sealed        bool
}

// New creates an empty batch. Batches render in stereo when their frame
// does, unless [Batch.EnableStereo] turns it off.
func New(name string) *Batch {
	return &Batch{
		name:          name,
		commands:      make([]Command, 0, 64),
		offsets:       make([]uint32, 0, 64),
		params:        make([]Param, 0, 256),
		data:          make([]byte, 0, 1024),
		stereoEnabled: true,
	}
}

// Name returns the batch name used in profiling ranges and logs.
func (b *Batch) Name() string { return b.name }

// Len returns the number of recorded commands.
func (b *Batch) Len() int { return len(b.commands) }

// At returns command i and the offset of its first param.
func (b *Batch) At(i int) (Command, uint32) { return b.commands[i], b.offsets[i] }

// All iterates over commands and their param offsets in recording order.
func (b *Batch) All() iter.Seq2[Command, uint32] {
	return func(yield func(Command, uint32) bool) {
		for i, c := range b.commands {
			if !yield(c, b.offsets[i]) {
				return
			}
		}
	}
}

// Param returns the param at pool index i.
func (b *Batch) Param(i uint32) Param { return b.params[i] }

// Params returns the n params starting at offset.
func (b *Batch) Params(offset uint32, n int) []Param {
	return b.params[offset : int(offset)+n : int(offset)+n]
}

// ReadData returns the data pool from offset to the end.
func (b *Batch) ReadData(offset uint32) []byte { return b.data[offset:] }

// EditData returns the writable data pool from offset to the end. It is
// intended for backends patching blobs during replay.
func (b *Batch) EditData(offset uint32) []byte { return b.data[offset:] }

// Mat4 decodes a matrix stored at offset.
func (b *Batch) Mat4(offset uint32) mgl32.Mat4 { return getMat4(b.data[offset:]) }

// Vec4 decodes a vector stored at offset.
func (b *Batch) Vec4(offset uint32) mgl32.Vec4 { return getVec4(b.data[offset:]) }

// Rect decodes a rectangle stored at offset.
func (b *Batch) Rect(offset uint32) Rect { return getRect(b.data[offset:]) }

// Buffer returns buffer table entry i.
func (b *Batch) Buffer(i uint32) *resource.Buffer { return b.buffers.get(i) }

// Texture returns texture table entry i.
func (b *Batch) Texture(i uint32) *resource.Texture { return b.textures.get(i) }

// Framebuffer returns framebuffer table entry i.
func (b *Batch) Framebuffer(i uint32) *resource.Framebuffer { return b.framebuffers.get(i) }

// Pipeline returns pipeline table entry i.
func (b *Batch) Pipeline(i uint32) *resource.Pipeline { return b.pipelines.get(i) }

// Format returns format table entry i.
func (b *Batch) Format(i uint32) *resource.Format { return b.formats.get(i) }

// Query returns query table entry i.
func (b *Batch) Query(i uint32) *resource.Query { return b.queries.get(i) }

// NameAt returns name table entry i.
func (b *Batch) NameAt(i uint32) string { return b.names.get(i) }

// Lambda returns lambda table entry i, or nil.
func (b *Batch) Lambda(i uint32) func() {
	if int(i) >= len(b.lambdas) {
		return nil
	}
	return b.lambdas[i]
}

// DrawCallCount returns the number of recorded draw commands.
func (b *Batch) DrawCallCount() int { return b.drawCalls }

// Buffers returns every buffer referenced by the batch.
func (b *Batch) Buffers() []*resource.Buffer { return b.buffers.items }

// Textures returns every texture referenced by the batch.
func (b *Batch) Textures() []*resource.Texture { return b.textures.items }

// Framebuffers returns every framebuffer referenced by the batch.
func (b *Batch) Framebuffers() []*resource.Framebuffer { return b.framebuffers.items }

// Pipelines returns every pipeline referenced by the batch.
func (b *Batch) Pipelines() []*resource.Pipeline { return b.pipelines.items }

// Queries returns every query referenced by the batch.
func (b *Batch) Queries() []*resource.Query { return b.queries.items }

// EnableStereo sets whether the batch renders in stereo when its frame does.
func (b *Batch) EnableStereo(enable bool) {
	b.mustBeOpen()
	b.stereoEnabled = enable
}

// IsStereoEnabled reports whether the batch may render in stereo.
func (b *Batch) IsStereoEnabled() bool { return b.stereoEnabled }

// Seal freezes the batch. Sealing is idempotent.
func (b *Batch) Seal() { b.sealed = true }

// Sealed reports whether the batch is frozen.
func (b *Batch) Sealed() bool { return b.sealed }

// Reset empties an unsealed batch for reuse, keeping its capacity.
func (b *Batch) Reset() {
	b.mustBeOpen()
	b.commands = b.commands[:0]
	b.offsets = b.offsets[:0]
	b.params = b.params[:0]
	b.data = b.data[:0]
	b.buffers.reset()
	b.textures.reset()
	b.framebuffers.reset()
	b.pipelines.reset()
	b.formats.reset()
	b.queries.reset()
	b.names.reset()
	clear(b.lambdas)
	b.lambdas = b.lambdas[:0]
	b.drawCalls = 0
	b.stereoEnabled = true
}

func (b *Batch) mustBeOpen() {
	if b.sealed {
		panic("batch: recording into sealed batch " + b.name)
	}
}

func (b *Batch) record(cmd Command, params ...Param) {
	b.mustBeOpen()
	b.commands = append(b.commands, cmd)
	// #nosec G115 -- param pool size is bounded by available memory
	b.offsets = append(b.offsets, uint32(len(b.params)))
	b.params = append(b.params, params...)
}

// alloc reserves n bytes in the data pool and returns their offset.
func (b *Batch) alloc(n int) uint32 {
	// #nosec G115 -- data pool size is bounded by available memory
	off := uint32(len(b.data))
	b.data = append(b.data, make([]byte, n)...)
	return off
}

func (b *Batch) pushMat4(m mgl32.Mat4) Param {
	off := b.alloc(mat4Size)
	putMat4(b.data[off:], m)
	return Uint(off)
}

func (b *Batch) pushVec4(v mgl32.Vec4) Param {
	off := b.alloc(vec4Size)
	putVec4(b.data[off:], v)
	return Uint(off)
}

func (b *Batch) pushRect(r Rect) Param {
	off := b.alloc(rectSize)
	putRect(b.data[off:], r)
	return Uint(off)
}

// Draw records a non-indexed draw.
func (b *Batch) Draw(prim Primitive, vertexCount, startVertex uint32) {
	b.record(CmdDraw, Uint(uint32(prim)), Uint(vertexCount), Uint(startVertex))
	b.drawCalls++
}

// DrawIndexed records an indexed draw.
func (b *Batch) DrawIndexed(prim Primitive, indexCount, startIndex uint32) {
	b.record(CmdDrawIndexed, Uint(uint32(prim)), Uint(indexCount), Uint(startIndex))
	b.drawCalls++
}

// DrawInstanced records an instanced non-indexed draw.
func (b *Batch) DrawInstanced(instances uint32, prim Primitive, vertexCount, startVertex, startInstance uint32) {
	b.record(CmdDrawInstanced, Uint(instances), Uint(uint32(prim)), Uint(vertexCount), Uint(startVertex), Uint(startInstance))
	b.drawCalls++
}

// DrawIndexedInstanced records an instanced indexed draw.
func (b *Batch) DrawIndexedInstanced(instances uint32, prim Primitive, indexCount, startIndex, startInstance uint32) {
	b.record(CmdDrawIndexedInstanced, Uint(instances), Uint(uint32(prim)), Uint(indexCount), Uint(startIndex), Uint(startInstance))
	b.drawCalls++
}

// SetInputFormat selects the vertex format of following draws.
func (b *Batch) SetInputFormat(f *resource.Format) {
	b.record(CmdSetInputFormat, Uint(b.formats.cache(f)))
}

// SetInputBuffer binds a vertex buffer to an input slot.
func (b *Batch) SetInputBuffer(slot uint32, buf *resource.Buffer, offset uint64, stride uint32) {
	b.record(CmdSetInputBuffer, Uint(slot), Uint(b.buffers.cache(buf)), Size(offset), Uint(stride))
}

// SetIndexBuffer binds the index buffer.
func (b *Batch) SetIndexBuffer(typ IndexType, buf *resource.Buffer, offset uint64) {
	b.record(CmdSetIndexBuffer, Uint(uint32(typ)), Uint(b.buffers.cache(buf)), Size(offset))
}

// SetModelTransform sets the model matrix of following draws.
func (b *Batch) SetModelTransform(m mgl32.Mat4) {
	b.record(CmdSetModelTransform, b.pushMat4(m))
}

// SetViewTransform sets the view matrix. When camera is true, m is the
// camera-to-world transform and the backend inverts it.
func (b *Batch) SetViewTransform(m mgl32.Mat4, camera bool) {
	b.record(CmdSetViewTransform, b.pushMat4(m), Bool(camera))
}

// SetProjectionTransform sets the projection matrix.
func (b *Batch) SetProjectionTransform(m mgl32.Mat4) {
	b.record(CmdSetProjectionTransform, b.pushMat4(m))
}

// SetViewportTransform sets the viewport rectangle.
func (b *Batch) SetViewportTransform(r Rect) {
	b.record(CmdSetViewportTransform, b.pushRect(r))
}

// SetDepthRangeTransform sets the depth range.
func (b *Batch) SetDepthRangeTransform(near, far float32) {
	b.record(CmdSetDepthRangeTransform, Float(near), Float(far))
}

// SetPipeline selects the pipeline of following draws.
func (b *Batch) SetPipeline(p *resource.Pipeline) {
	b.record(CmdSetPipeline, Uint(b.pipelines.cache(p)))
}

// SetStateBlendFactor sets the constant blend color.
func (b *Batch) SetStateBlendFactor(c mgl32.Vec4) {
	b.record(CmdSetStateBlendFactor, b.pushVec4(c))
}

// SetStateScissorRect sets the scissor rectangle.
func (b *Batch) SetStateScissorRect(r Rect) {
	b.record(CmdSetStateScissorRect, b.pushRect(r))
}

// SetStencilReference sets the stencil reference value.
func (b *Batch) SetStencilReference(ref uint32) {
	b.record(CmdSetStencilReference, Uint(ref))
}

// SetUniformBuffer binds a range of buf to a uniform slot. A size of 0
// binds the whole buffer from offset.
func (b *Batch) SetUniformBuffer(slot uint32, buf *resource.Buffer, offset, size uint64) {
	b.record(CmdSetUniformBuffer, Uint(slot), Uint(b.buffers.cache(buf)), Size(offset), Size(size))
}

// SetResourceBuffer binds a read-only storage buffer to a resource slot.
func (b *Batch) SetResourceBuffer(slot uint32, buf *resource.Buffer) {
	b.record(CmdSetResourceBuffer, Uint(slot), Uint(b.buffers.cache(buf)))
}

// SetResourceTexture binds a texture to a resource slot.
func (b *Batch) SetResourceTexture(slot uint32, tex *resource.Texture) {
	b.record(CmdSetResourceTexture, Uint(slot), Uint(b.textures.cache(tex)))
}

// SetFramebuffer selects the render destination. nil selects the
// backend's default target.
func (b *Batch) SetFramebuffer(fb *resource.Framebuffer) {
	b.record(CmdSetFramebuffer, Uint(b.framebuffers.cache(fb)))
}

// ClearFramebuffer clears the planes in masks of the current framebuffer.
func (b *Batch) ClearFramebuffer(masks ClearMask, color mgl32.Vec4, depth float32, stencil uint32, useScissor bool) {
	b.record(CmdClearFramebuffer, Uint(uint32(masks)), b.pushVec4(color), Float(depth), Uint(stencil), Bool(useScissor))
}

// Blit copies a rectangle of src color 0 into a rectangle of dst color 0.
// A nil dst is the backend's default target.
func (b *Batch) Blit(src *resource.Framebuffer, srcRect Rect, dst *resource.Framebuffer, dstRect Rect) {
	b.record(CmdBlit, Uint(b.framebuffers.cache(src)), b.pushRect(srcRect), Uint(b.framebuffers.cache(dst)), b.pushRect(dstRect))
}

// GenerateTextureMips regenerates the mip chain of a texture on the GPU.
func (b *Batch) GenerateTextureMips(tex *resource.Texture) {
	b.record(CmdGenerateTextureMips, Uint(b.textures.cache(tex)))
}

// BeginQuery starts a timer query.
func (b *Batch) BeginQuery(q *resource.Query) {
	b.record(CmdBeginQuery, Uint(b.queries.cache(q)))
}

// EndQuery stops a timer query.
func (b *Batch) EndQuery(q *resource.Query) {
	b.record(CmdEndQuery, Uint(b.queries.cache(q)))
}

// GetQuery returns the result of a finished timer query.
func (b *Batch) GetQuery(q *resource.Query) {
	b.record(CmdGetQuery, Uint(b.queries.cache(q)))
}

// ResetStages unbinds every pipeline input and resource.
func (b *Batch) ResetStages() { b.record(CmdResetStages) }

// DisableContextViewCorrection stops applying the late camera correction
// to following view transforms.
func (b *Batch) DisableContextViewCorrection() { b.record(CmdDisableContextViewCorrection) }

// RestoreContextViewCorrection undoes DisableContextViewCorrection.
func (b *Batch) RestoreContextViewCorrection() { b.record(CmdRestoreContextViewCorrection) }

// DisableContextStereo renders following draws in mono.
func (b *Batch) DisableContextStereo() { b.record(CmdDisableContextStereo) }

// RestoreContextStereo undoes DisableContextStereo.
func (b *Batch) RestoreContextStereo() { b.record(CmdRestoreContextStereo) }

// RunLambda records fn to be called on the present goroutine during replay.
// Resources captured by fn follow the same destruction rules as any other.
func (b *Batch) RunLambda(fn func()) {
	b.mustBeOpen()
	// #nosec G115 -- lambda count is bounded by available memory
	i := uint32(len(b.lambdas))
	b.lambdas = append(b.lambdas, fn)
	b.record(CmdRunLambda, Uint(i))
}

// StartNamedCall attributes following draws to name until StopNamedCall.
func (b *Batch) StartNamedCall(name string) {
	b.record(CmdStartNamedCall, Uint(b.names.cache(name)))
}

// StopNamedCall ends the current named call.
func (b *Batch) StopNamedCall() { b.record(CmdStopNamedCall) }

// PushProfileRange opens a named profiling range.
func (b *Batch) PushProfileRange(name string) {
	b.record(CmdPushProfileRange, Uint(b.names.cache(name)))
}

// PopProfileRange closes the innermost profiling range.
func (b *Batch) PopProfileRange() { b.record(CmdPopProfileRange) }
