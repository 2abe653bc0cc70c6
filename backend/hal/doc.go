// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halbackend implements a replay.Device over the gogpu/wgpu hardware
// abstraction layer.
//
// Importing the package registers the "hal" backend with gfx. The
// registered factory opens its own Vulkan device; hosts that already own a
// device (gogpu windows, for example) build the backend with
// [NewFromProvider] instead.
//
// # Shader interface
//
// Shaders are WGSL, compiled to SPIR-V by gogpu/naga and cached per source.
// Every pipeline shares one bind group layout:
//
//	@group(0) @binding(0) var<uniform> xf: Transform;    // per draw
//	@group(1) @binding(0..3) var<uniform> ...;           // uniform slots
//	@group(1) @binding(4..5) var<storage, read> ...;     // storage slots
//	@group(2) @binding(0..3) var t: texture_2d<f32>;     // texture slots
//
// where Transform is
//
//	struct Transform {
//	    model: mat4x4<f32>,
//	    view: array<mat4x4<f32>, 2>,
//	    proj: array<mat4x4<f32>, 2>,
//	}
//
// Instanced stereo draws double the instance count; the shader selects the
// eye as instance_index % 2. Textures are read with textureLoad; the
// device binds no samplers.
//
// # Frames
//
// Render passes are opened lazily at the first draw or clear and closed when
// the framebuffer changes, on blit and on Submit. Objects released during a
// frame are destroyed once the queue reports its submission complete; Submit
// blocks only when more than two frames are in flight.
package halbackend
