package replay

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// Handle is a native object created by a Device. Handles must be
// comparable; pointers are the usual choice.
type Handle any

// Binding slot limits shared by every device.
const (
	MaxInputSlots    = 8
	MaxUniformSlots  = 12
	MaxStorageSlots  = 8
	MaxTextureSlots  = 16
	transformReserve = 64
)

// EyeBoth is the DrawCall.Eye value of an instanced stereo draw.
const EyeBoth = -1

// VertexBinding is a bound vertex buffer.
type VertexBinding struct {
	Buffer Handle
	Offset uint64
	Stride uint32
}

// IndexBinding is the bound index buffer.
type IndexBinding struct {
	Buffer Handle
	Type   batch.IndexType
	Offset uint64
}

// BufferBinding is a bound uniform buffer range.
type BufferBinding struct {
	Buffer Handle
	Offset uint64
	Size   uint64
}

// DeviceState is the bound native state. The Engine keeps a shadow copy
// and a Device reports its real state through ReadState.
type DeviceState struct {
	Framebuffer    Handle
	Pipeline       Handle
	Format         *resource.Format
	VertexBuffers  [MaxInputSlots]VertexBinding
	IndexBuffer    IndexBinding
	UniformBuffers [MaxUniformSlots]BufferBinding
	StorageBuffers [MaxStorageSlots]Handle
	Textures       [MaxTextureSlots]Handle
	Viewport       batch.Rect
	DepthRange     [2]float32
	Scissor        batch.Rect
	BlendConstant  mgl32.Vec4
	StencilRef     uint32
}

// InitialState returns the state of a freshly created native context.
func InitialState() DeviceState {
	return DeviceState{DepthRange: [2]float32{0, 1}}
}

// Camera is the view and projection of one eye.
type Camera struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// TransformObject is the per-draw transform state gathered by the transfer
// pass. Eyes[1] equals Eyes[0] for mono draws.
type TransformObject struct {
	Model      mgl32.Mat4
	Eyes       [2]Camera
	Viewport   batch.Rect
	DepthRange [2]float32
	Stereo     bool
}

// DrawCall is one native draw.
type DrawCall struct {
	Indexed       bool
	Primitive     batch.Primitive
	Count         uint32
	First         uint32
	Instances     uint32
	FirstInstance uint32
	// Transform indexes the transform objects of the last upload.
	Transform int
	// Eye is 0 or 1 for a single eye, or EyeBoth for an instanced stereo
	// draw whose shader picks the eye from the instance index.
	Eye int
}

// ClearOp describes a framebuffer clear.
type ClearOp struct {
	Masks   batch.ClearMask
	Color   mgl32.Vec4
	Depth   float32
	Stencil uint32
	// Scissor restricts the clear when non-nil.
	Scissor *batch.Rect
}

// Device is the native graphics API seen by the Engine. Every method is
// called on the goroutine owning the native context.
type Device interface {
	Capabilities() gfx.Capabilities

	CreateBuffer(b *resource.Buffer) (Handle, error)
	CreateTexture(t *resource.Texture) (Handle, error)
	// CreateFramebuffer receives the mirrors of the attachments; colors
	// has resource.MaxColorAttachments entries, nil for empty slots.
	CreateFramebuffer(fb *resource.Framebuffer, colors []Handle, depth Handle) (Handle, error)
	CreateShader(s *resource.Shader) (Handle, error)
	CreatePipeline(p *resource.Pipeline, shader Handle) (Handle, error)
	CreateQuery(q *resource.Query) (Handle, error)
	Destroy(kind resource.Kind, h Handle)

	// ReadState reports the currently bound native state.
	ReadState() DeviceState

	// UploadTransforms replaces the transform objects referenced by
	// DrawCall.Transform.
	UploadTransforms(objects []TransformObject) error

	BindFramebuffer(fb Handle) error
	BindPipeline(p Handle) error
	BindFormat(f *resource.Format) error
	BindVertexBuffer(slot uint32, b VertexBinding) error
	BindIndexBuffer(b IndexBinding) error
	BindUniformBuffer(slot uint32, b BufferBinding) error
	BindStorageBuffer(slot uint32, b Handle) error
	BindTexture(slot uint32, t Handle) error
	SetViewport(r batch.Rect, depthRange [2]float32) error
	SetScissor(r batch.Rect) error
	SetBlendConstant(c mgl32.Vec4) error
	SetStencilReference(ref uint32) error

	Draw(call DrawCall) error
	Clear(op ClearOp) error
	Blit(src Handle, srcRect batch.Rect, dst Handle, dstRect batch.Rect) error
	GenerateMips(t Handle) error

	BeginQuery(q Handle) error
	EndQuery(q Handle) error
	// QueryResult returns the GPU time of a finished query in nanoseconds.
	QueryResult(q Handle) (nanos int64, ok bool)

	PushMarker(name string)
	PopMarker()

	// Submit flushes the work recorded for the current frame.
	Submit() error
	// Compact releases memory held by pooled allocators.
	Compact()
	Close() error
}
