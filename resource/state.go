// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

// CullMode selects which faces are discarded.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// Compare is a depth or stencil comparison function.
type Compare uint8

const (
	CompareNever Compare = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// BlendMode is a preset color blend equation.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendPremultiplied
	BlendAdditive
)

// StencilOp is the operation applied to the stencil buffer.
type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrementWrap
	StencilDecrementWrap
	StencilInvert
)

// ColorMask selects the color channels that are written.
type ColorMask uint8

const (
	ColorMaskRed ColorMask = 1 << iota
	ColorMaskGreen
	ColorMaskBlue
	ColorMaskAlpha

	ColorMaskAll = ColorMaskRed | ColorMaskGreen | ColorMaskBlue | ColorMaskAlpha
)

// StencilState is the stencil test configuration.
type StencilState struct {
	Enabled   bool
	Compare   Compare
	FailOp    StencilOp
	DepthFail StencilOp
	PassOp    StencilOp
	ReadMask  uint8
	WriteMask uint8
}

// State is the fixed-function render state of a pipeline. It is a plain
// comparable value.
type State struct {
	Cull            CullMode
	FrontClockwise  bool
	DepthTest       bool
	DepthWrite      bool
	DepthCompare    Compare
	Blend           BlendMode
	ColorWrite      ColorMask
	Stencil         StencilState
	AlphaToCoverage bool
	SampleCount     uint32
}

// DefaultState returns opaque, back-face culled, depth-tested state.
func DefaultState() State {
	return State{
		Cull:         CullBack,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: CompareLessEqual,
		Blend:        BlendNone,
		ColorWrite:   ColorMaskAll,
		Stencil: StencilState{
			Compare:   CompareAlways,
			ReadMask:  0xFF,
			WriteMask: 0xFF,
		},
		SampleCount: 1,
	}
}

// OverlayState returns state for alpha-blended, unculled, depthless passes.
func OverlayState() State {
	s := DefaultState()
	s.Cull = CullNone
	s.DepthTest = false
	s.DepthWrite = false
	s.DepthCompare = CompareAlways
	s.Blend = BlendPremultiplied
	return s
}
