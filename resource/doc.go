// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource defines the CPU-side GPU object model: buffers, textures,
// samplers, framebuffers, shaders, pipelines, vertex formats and queries.
//
// A resource never owns native GPU memory. Each carries a process-unique
// [ID] and a [Stamp] revision counter. Backends keep their own mirror of a
// resource keyed by ID and rebuild the mirror whenever the stamp it was
// built from no longer matches:
//
//	buf := resource.NewBuffer("vertices", gputypes.BufferUsageVertex, data)
//	buf.SetSubData(0, patch) // bumps buf.Stamp()
//
// Mutating a resource is not synchronized. A resource referenced by a frame
// that is being replayed must not be mutated until that frame has been
// presented.
package resource
