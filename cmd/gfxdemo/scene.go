package main

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

const triangleWGSL = `
struct Transform {
    model: mat4x4<f32>,
    view: array<mat4x4<f32>, 2>,
    proj: array<mat4x4<f32>, 2>,
}

@group(0) @binding(0) var<uniform> xf: Transform;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec3<f32>,
}

@vertex
fn vs_main(@location(0) p: vec3<f32>, @builtin(instance_index) instance: u32) -> VertexOutput {
    let eye = instance % 2u;
    var out: VertexOutput;
    out.position = xf.proj[eye] * xf.view[eye] * xf.model * vec4<f32>(p, 1.0);
    out.color = p * 0.5 + vec3<f32>(0.5);
    return out;
}

@fragment
fn fs_main(v: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(v.color, 1.0);
}
`

// scene is a triangle spinning in front of the camera.
type scene struct {
	fb          *resource.Framebuffer
	pipeline    *resource.Pipeline
	format      *resource.Format
	vertices    *resource.Buffer
	projection  mgl32.Mat4
	defaultView mgl32.Mat4
}

func newScene() *scene {
	const w, h = 1280, 720
	sh := resource.NewShader("triangle", triangleWGSL)
	verts := []float32{
		0, 0.5, 0,
		-0.5, -0.5, 0,
		0.5, -0.5, 0,
	}
	data := make([]byte, len(verts)*4)
	for i, v := range verts {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return &scene{
		fb:       resource.NewColorFramebuffer("scene", gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatDepth24Plus, w, h),
		pipeline: resource.NewPipeline("triangle", sh, resource.DefaultState()),
		format: resource.NewFormat("position", resource.Attribute{
			Format: gputypes.VertexFormatFloat32x3,
		}),
		vertices:    resource.NewBuffer("triangle", gputypes.BufferUsageVertex, data),
		projection:  mgl32.Perspective(mgl32.DegToRad(60), float32(w)/h, 0.1, 100),
		defaultView: mgl32.LookAtV(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
	}
}

// record produces one frame.
func (s *scene) record(ctx *gfx.Context, index uint32, elapsed time.Duration, view mgl32.Mat4) (*gfx.Frame, error) {
	if err := ctx.BeginFrame(index); err != nil {
		return nil, err
	}
	if err := ctx.SetFrameFramebuffer(s.fb); err != nil {
		return nil, err
	}

	b := batch.New("triangle")
	b.SetFramebuffer(s.fb)
	b.SetViewportTransform(batch.Rect{Width: int32(s.fb.Width()), Height: int32(s.fb.Height())}) // #nosec G115 -- fixed size
	b.ClearFramebuffer(batch.ClearAll, mgl32.Vec4{0.1, 0.1, 0.15, 1}, 1, 0, false)
	b.SetPipeline(s.pipeline)
	b.SetInputFormat(s.format)
	b.SetInputBuffer(0, s.vertices, 0, 12)
	b.SetProjectionTransform(s.projection)
	b.SetViewTransform(view, true)
	b.SetModelTransform(mgl32.Translate3D(0, 0, -1).Mul4(mgl32.HomogRotate3DY(float32(elapsed.Seconds()))))
	b.Draw(batch.Triangles, 3, 0)

	if err := ctx.AppendBatch(b); err != nil {
		return nil, err
	}
	return ctx.EndFrame()
}
