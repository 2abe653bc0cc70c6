// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halbackend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/cache"
	"github.com/gogpu/gfx/replay"
	"github.com/gogpu/gfx/resource"
)

var errNoFormat = errors.New("halbackend: draw without vertex format")

// spirvCache holds compiled shaders for the whole process; equal sources
// compile once however many devices or shader objects use them.
var spirvCache = cache.NewSharded[string, []uint32](32, cache.StringHasher)

func compileWGSL(source string) ([]uint32, error) {
	return spirvCache.GetOrTry(source, func() ([]uint32, error) {
		spirvBytes, err := naga.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("compile WGSL: %w", err)
		}
		// SPIR-V is a stream of little-endian 32-bit words.
		words := make([]uint32, len(spirvBytes)/4)
		for i := range words {
			words[i] = uint32(spirvBytes[i*4]) |
				uint32(spirvBytes[i*4+1])<<8 |
				uint32(spirvBytes[i*4+2])<<16 |
				uint32(spirvBytes[i*4+3])<<24
		}
		return words, nil
	})
}

// pipelineKey is everything a native render pipeline is built from besides
// the pipeline object itself.
type pipelineKey struct {
	pipeline  *halPipeline
	format    string
	strides   [replay.MaxInputSlots]uint32
	primitive batch.Primitive
	colors    [resource.MaxColorAttachments]gputypes.TextureFormat
	depth     gputypes.TextureFormat
}

func (d *Device) renderPipeline(p *halPipeline, fb *halFramebuffer, prim batch.Primitive) (hal.RenderPipeline, error) {
	f := d.state.Format
	if f == nil {
		return nil, errNoFormat
	}
	key := pipelineKey{pipeline: p, format: f.Key(), primitive: prim}
	for i := range key.strides {
		key.strides[i] = d.state.VertexBuffers[i].Stride
	}
	key.colors, key.depth = fb.formats()
	return d.pipelines.GetOrTry(key, func() (hal.RenderPipeline, error) {
		rp, err := d.device.CreateRenderPipeline(d.pipelineDescriptor(key, f, len(fb.colors)))
		if err != nil {
			return nil, fmt.Errorf("halbackend: create pipeline %q: %w", p.label, err)
		}
		return rp, nil
	})
}

func (d *Device) pipelineDescriptor(key pipelineKey, f *resource.Format, colorCount int) *hal.RenderPipelineDescriptor {
	p, s := key.pipeline, key.pipeline.state
	desc := &hal.RenderPipelineDescriptor{
		Label:  p.label,
		Layout: d.layouts.pipeline,
		Vertex: hal.VertexState{
			Module:     p.shader.module,
			EntryPoint: p.shader.vertex,
			Buffers:    vertexLayouts(f, key.strides),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology(key.primitive),
			CullMode: cullMode(s.Cull),
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if s.FrontClockwise {
		desc.Primitive.FrontFace = gputypes.FrontFaceCW
	} else {
		desc.Primitive.FrontFace = gputypes.FrontFaceCCW
	}
	if colorCount > 0 {
		targets := make([]gputypes.ColorTargetState, colorCount)
		for i := range targets {
			targets[i] = gputypes.ColorTargetState{
				Format:    key.colors[i],
				Blend:     blendState(s.Blend),
				WriteMask: writeMask(s.ColorWrite),
			}
		}
		desc.Fragment = &hal.FragmentState{
			Module:     p.shader.module,
			EntryPoint: p.shader.fragment,
			Targets:    targets,
		}
	}
	if key.depth != gputypes.TextureFormatUndefined {
		desc.DepthStencil = depthStencil(key.depth, s)
	}
	return desc
}

// vertexLayouts groups the attributes of f by input slot.
func vertexLayouts(f *resource.Format, strides [replay.MaxInputSlots]uint32) []gputypes.VertexBufferLayout {
	layouts := make([]gputypes.VertexBufferLayout, f.Slots())
	for i := range layouts {
		assignUint(&layouts[i].ArrayStride, strides[i])
		layouts[i].StepMode = gputypes.VertexStepModeVertex
	}
	for _, a := range f.Attributes() {
		l := &layouts[a.Slot]
		if a.PerInstance {
			l.StepMode = gputypes.VertexStepModeInstance
		}
		attr := gputypes.VertexAttribute{Format: a.Format, ShaderLocation: a.Location}
		assignUint(&attr.Offset, a.Offset)
		l.Attributes = append(l.Attributes, attr)
	}
	return layouts
}

func depthStencil(format gputypes.TextureFormat, s resource.State) *hal.DepthStencilState {
	ds := &hal.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: s.DepthTest && s.DepthWrite,
		DepthCompare:      gputypes.CompareFunctionAlways,
	}
	if s.DepthTest {
		ds.DepthCompare = compare(s.DepthCompare)
	}
	face := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	if st := s.Stencil; st.Enabled {
		face = hal.StencilFaceState{
			Compare:     compare(st.Compare),
			FailOp:      stencilOp(st.FailOp),
			DepthFailOp: stencilOp(st.DepthFail),
			PassOp:      stencilOp(st.PassOp),
		}
		assignUint(&ds.StencilReadMask, st.ReadMask)
		assignUint(&ds.StencilWriteMask, st.WriteMask)
	}
	ds.StencilFront, ds.StencilBack = face, face
	return ds
}

func topology(p batch.Primitive) gputypes.PrimitiveTopology {
	switch p {
	case batch.Points:
		return gputypes.PrimitiveTopologyPointList
	case batch.Lines:
		return gputypes.PrimitiveTopologyLineList
	case batch.LineStrip:
		return gputypes.PrimitiveTopologyLineStrip
	case batch.TriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

func cullMode(c resource.CullMode) gputypes.CullMode {
	switch c {
	case resource.CullFront:
		return gputypes.CullModeFront
	case resource.CullBack:
		return gputypes.CullModeBack
	default:
		return gputypes.CullModeNone
	}
}

func compare(c resource.Compare) gputypes.CompareFunction {
	switch c {
	case resource.CompareNever:
		return gputypes.CompareFunctionNever
	case resource.CompareLess:
		return gputypes.CompareFunctionLess
	case resource.CompareEqual:
		return gputypes.CompareFunctionEqual
	case resource.CompareLessEqual:
		return gputypes.CompareFunctionLessEqual
	case resource.CompareGreater:
		return gputypes.CompareFunctionGreater
	case resource.CompareNotEqual:
		return gputypes.CompareFunctionNotEqual
	case resource.CompareGreaterEqual:
		return gputypes.CompareFunctionGreaterEqual
	default:
		return gputypes.CompareFunctionAlways
	}
}

func stencilOp(op resource.StencilOp) hal.StencilOperation {
	switch op {
	case resource.StencilZero:
		return hal.StencilOperationZero
	case resource.StencilReplace:
		return hal.StencilOperationReplace
	case resource.StencilIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case resource.StencilDecrementWrap:
		return hal.StencilOperationDecrementWrap
	case resource.StencilInvert:
		return hal.StencilOperationInvert
	default:
		return hal.StencilOperationKeep
	}
}

func blendState(m resource.BlendMode) *gputypes.BlendState {
	var b gputypes.BlendState
	switch m {
	case resource.BlendPremultiplied:
		b = gputypes.BlendStatePremultiplied()
	case resource.BlendAlpha:
		b.Color = gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		}
		b.Alpha = gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		}
	case resource.BlendAdditive:
		add := gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		}
		b.Color, b.Alpha = add, add
	default:
		return nil
	}
	return &b
}

func writeMask(m resource.ColorMask) gputypes.ColorWriteMask {
	switch m {
	case resource.ColorMaskAll:
		return gputypes.ColorWriteMaskAll
	case 0:
		return gputypes.ColorWriteMaskNone
	}
	var w gputypes.ColorWriteMask
	if m&resource.ColorMaskRed != 0 {
		w |= gputypes.ColorWriteMaskRed
	}
	if m&resource.ColorMaskGreen != 0 {
		w |= gputypes.ColorWriteMaskGreen
	}
	if m&resource.ColorMaskBlue != 0 {
		w |= gputypes.ColorWriteMaskBlue
	}
	if m&resource.ColorMaskAlpha != 0 {
		w |= gputypes.ColorWriteMaskAlpha
	}
	return w
}

func indexFormat(t batch.IndexType) gputypes.IndexFormat {
	if t == batch.Uint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}
