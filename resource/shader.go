// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

// Default shader entry points.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// Shader is a WGSL module holding a vertex and a fragment entry point.
type Shader struct {
	header
	source        string
	vertexEntry   string
	fragmentEntry string
}

// NewShader creates a shader from WGSL source with the default entry points.
func NewShader(label, wgsl string) *Shader {
	s := &Shader{
		source:        wgsl,
		vertexEntry:   DefaultVertexEntry,
		fragmentEntry: DefaultFragmentEntry,
	}
	s.init(label)
	return s
}

// Kind returns KindShader.
func (s *Shader) Kind() Kind { return KindShader }

// Source returns the WGSL source.
func (s *Shader) Source() string { return s.source }

// VertexEntry returns the vertex entry point name.
func (s *Shader) VertexEntry() string { return s.vertexEntry }

// FragmentEntry returns the fragment entry point name.
func (s *Shader) FragmentEntry() string { return s.fragmentEntry }

// SetSource replaces the WGSL source.
func (s *Shader) SetSource(wgsl string) Stamp {
	s.source = wgsl
	return s.touch()
}

// SetEntryPoints changes the entry point names.
func (s *Shader) SetEntryPoints(vertex, fragment string) Stamp {
	s.vertexEntry, s.fragmentEntry = vertex, fragment
	return s.touch()
}
