// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

// Pipeline couples a shader with fixed-function state.
//
// A pipeline's mirror depends on its shader: a backend must rebuild it when
// either stamp changed.
type Pipeline struct {
	header
	shader *Shader
	state  State
}

// NewPipeline creates a pipeline.
func NewPipeline(label string, shader *Shader, state State) *Pipeline {
	p := &Pipeline{shader: shader, state: state}
	p.init(label)
	return p
}

// Kind returns KindPipeline.
func (p *Pipeline) Kind() Kind { return KindPipeline }

// Shader returns the shader.
func (p *Pipeline) Shader() *Shader { return p.shader }

// State returns the render state.
func (p *Pipeline) State() State { return p.state }

// SetState replaces the render state.
func (p *Pipeline) SetState(s State) Stamp {
	if s == p.state {
		return p.Stamp()
	}
	p.state = s
	return p.touch()
}
