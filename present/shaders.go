// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

// Composition shaders. They follow the shared binding layout of the
// backends: uniforms in group 1, textures in group 2. Textures are read
// with textureLoad, so no sampler is bound.

// blitWGSL copies a texel rectangle to the viewport. With params.x set it
// warps the lookup by a rotation: each fragment is turned into an eye-space
// ray, rotated, and projected back into the source image.
const blitWGSL = `
struct Blit {
    rotation: mat4x4<f32>,
    inv_projection: mat4x4<f32>,
    projection: mat4x4<f32>,
    source: vec4<f32>,
    params: vec4<f32>,
}

@group(1) @binding(0) var<uniform> u: Blit;
@group(2) @binding(0) var scene: texture_2d<f32>;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let corner = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    var out: VertexOutput;
    out.position = vec4<f32>(corner * 2.0 - 1.0, 0.0, 1.0);
    out.uv = vec2<f32>(corner.x, 1.0 - corner.y);
    return out;
}

@fragment
fn fs_main(v: VertexOutput) -> @location(0) vec4<f32> {
    var uv = v.uv;
    if (u.params.x > 0.5) {
        let ndc = vec2<f32>(uv.x * 2.0 - 1.0, 1.0 - uv.y * 2.0);
        let eye = u.inv_projection * vec4<f32>(ndc, 1.0, 1.0);
        let ray = (u.rotation * vec4<f32>(normalize(eye.xyz / eye.w), 0.0)).xyz;
        let clip = u.projection * vec4<f32>(ray, 1.0);
        let warped = clip.xy / clip.w;
        uv = vec2<f32>(warped.x * 0.5 + 0.5, 0.5 - warped.y * 0.5);
        if (any(uv < vec2<f32>(0.0)) || any(uv > vec2<f32>(1.0))) {
            return vec4<f32>(0.0, 0.0, 0.0, 1.0);
        }
    }
    let size = max(u.source.zw - vec2<f32>(1.0), vec2<f32>(0.0));
    let texel = vec2<i32>(u.source.xy + uv * size);
    return textureLoad(scene, texel, 0);
}
`

// quadWGSL draws a textured unit quad transformed by mvp with a global
// alpha. It serves the overlay and the pointer.
const quadWGSL = `
struct Quad {
    mvp: mat4x4<f32>,
    unused0: mat4x4<f32>,
    unused1: mat4x4<f32>,
    size: vec4<f32>,
    params: vec4<f32>,
}

@group(1) @binding(0) var<uniform> u: Quad;
@group(2) @binding(0) var image: texture_2d<f32>;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let corner = vec2<f32>(f32(index & 1u), f32(index >> 1u));
    var out: VertexOutput;
    out.position = u.mvp * vec4<f32>(corner * 2.0 - 1.0, 0.0, 1.0);
    out.uv = vec2<f32>(corner.x, 1.0 - corner.y);
    return out;
}

@fragment
fn fs_main(v: VertexOutput) -> @location(0) vec4<f32> {
    let size = max(u.size.xy - vec2<f32>(1.0), vec2<f32>(0.0));
    let texel = textureLoad(image, vec2<i32>(v.uv * size), 0);
    return texel * u.params.y;
}
`

// laserWGSL draws a unit line from the origin along -Z.
const laserWGSL = `
struct Laser {
    mvp: mat4x4<f32>,
    unused0: mat4x4<f32>,
    unused1: mat4x4<f32>,
    color: vec4<f32>,
    params: vec4<f32>,
}

@group(1) @binding(0) var<uniform> u: Laser;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    return u.mvp * vec4<f32>(0.0, 0.0, -f32(index), 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return u.color;
}
`
