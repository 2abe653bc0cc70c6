// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halbackend

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/replay"
)

// Bind groups of the shared layout.
const (
	groupTransform = iota
	groupResources
	groupTextures
)

type bindLayouts struct {
	transform hal.BindGroupLayout
	resources hal.BindGroupLayout
	textures  hal.BindGroupLayout
	pipeline  hal.PipelineLayout
}

func (l *bindLayouts) create(device hal.Device) error {
	var err error
	l.transform, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "gfx_transform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return fmt.Errorf("halbackend: create transform layout: %w", err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, halUniformSlots+halStorageSlots)
	for i := range halUniformSlots {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for i := range halStorageSlots {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(halUniformSlots + i),
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	l.resources, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "gfx_resource_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("halbackend: create resource layout: %w", err)
	}

	entries = make([]gputypes.BindGroupLayoutEntry, 0, halTextureSlots)
	for i := range halTextureSlots {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	l.textures, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "gfx_texture_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("halbackend: create texture layout: %w", err)
	}

	l.pipeline, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gfx_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{l.transform, l.resources, l.textures},
	})
	if err != nil {
		return fmt.Errorf("halbackend: create pipeline layout: %w", err)
	}
	return nil
}

func (l *bindLayouts) destroy(device hal.Device) {
	if l.pipeline != nil {
		device.DestroyPipelineLayout(l.pipeline)
	}
	for _, bgl := range []hal.BindGroupLayout{l.textures, l.resources, l.transform} {
		if bgl != nil {
			device.DestroyBindGroupLayout(bgl)
		}
	}
	*l = bindLayouts{}
}

type bufferRange struct {
	buf    *halBuffer
	offset uint64
	size   uint64
}

// bindKey identifies a cached bind group by everything it references.
type bindKey struct {
	group     uint8
	transform uint64 // ring generation << 32 | record
	buffers   [halUniformSlots + halStorageSlots]bufferRange
	textures  [halTextureSlots]*halTexture
}

func (k bindKey) usesBuffer(b *halBuffer) bool {
	for _, r := range k.buffers {
		if r.buf == b {
			return true
		}
	}
	return false
}

func (k bindKey) usesTexture(t *halTexture) bool {
	for _, tex := range k.textures {
		if tex == t {
			return true
		}
	}
	return false
}

func (d *Device) dropBindGroups(match func(bindKey) bool) {
	d.bindGroups.DeleteFunc(func(k bindKey, _ hal.BindGroup) bool { return match(k) })
}

// transformGroup returns the bind group of one transform record.
func (d *Device) transformGroup(record int) (hal.BindGroup, error) {
	r := &d.transforms
	key := bindKey{group: groupTransform, transform: r.gen<<32 | uint64(record)} // #nosec G115 -- record < capacity
	return d.bindGroups.GetOrTry(key, func() (hal.BindGroup, error) {
		return d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "gfx_transform",
			Layout: d.layouts.transform,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: r.buf.NativeHandle(),
					Offset: uint64(record) * transformStride, // #nosec G115 -- record >= 0
					Size:   transformSize,
				}},
			},
		})
	})
}

func (d *Device) resourceGroup() (hal.BindGroup, error) {
	key := bindKey{group: groupResources}
	for i := range halUniformSlots {
		u := d.state.UniformBuffers[i]
		if b, ok := u.Buffer.(*halBuffer); ok {
			key.buffers[i] = bufferRange{buf: b, offset: u.Offset, size: u.Size}
		}
	}
	for i := range halStorageSlots {
		if b, ok := d.state.StorageBuffers[i].(*halBuffer); ok {
			key.buffers[halUniformSlots+i] = bufferRange{buf: b}
		}
	}
	return d.bindGroups.GetOrTry(key, func() (hal.BindGroup, error) {
		entries := make([]gputypes.BindGroupEntry, len(key.buffers))
		for i, r := range key.buffers {
			binding := gputypes.BufferBinding{Buffer: d.dummyBuf.NativeHandle(), Offset: 0, Size: 256}
			if r.buf != nil {
				size := r.size
				if size == 0 || r.offset+size > r.buf.size {
					size = r.buf.size - min(r.offset, r.buf.size)
				}
				binding = gputypes.BufferBinding{Buffer: r.buf.buf.NativeHandle(), Offset: r.offset, Size: size}
			}
			entries[i] = gputypes.BindGroupEntry{Binding: uint32(i), Resource: binding} // #nosec G115 -- small
		}
		return d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "gfx_resources",
			Layout:  d.layouts.resources,
			Entries: entries,
		})
	})
}

func (d *Device) textureGroup() (hal.BindGroup, error) {
	key := bindKey{group: groupTextures}
	for i := range halTextureSlots {
		if t, ok := d.state.Textures[i].(*halTexture); ok {
			key.textures[i] = t
		}
	}
	return d.bindGroups.GetOrTry(key, func() (hal.BindGroup, error) {
		entries := make([]gputypes.BindGroupEntry, len(key.textures))
		for i, t := range key.textures {
			if t == nil {
				t = d.dummyTex
			}
			entries[i] = gputypes.BindGroupEntry{
				Binding:  uint32(i), // #nosec G115 -- small
				Resource: gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()},
			}
		}
		return d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "gfx_textures",
			Layout:  d.layouts.textures,
			Entries: entries,
		})
	})
}

// transformRing is the uniform buffer holding the transform records of the
// current frame. Uploads append, so batches of one frame never overwrite
// records an earlier batch still draws with.
type transformRing struct {
	buf      hal.Buffer
	capacity int
	used     int
	base     int
	gen      uint64
}

func (r *transformRing) upload(d *Device, objects []replay.TransformObject) error {
	if r.used+len(objects) > r.capacity {
		if err := r.grow(d, r.used+len(objects)); err != nil {
			return err
		}
	}
	data := make([]byte, len(objects)*transformStride)
	for i, o := range objects {
		rec := data[i*transformStride:]
		putMat4(rec[0:], o.Model)
		putMat4(rec[64:], o.Eyes[0].View)
		putMat4(rec[128:], o.Eyes[1].View)
		putMat4(rec[192:], o.Eyes[0].Projection)
		putMat4(rec[256:], o.Eyes[1].Projection)
	}
	if len(data) > 0 {
		if err := d.queue.WriteBuffer(r.buf, uint64(r.used*transformStride), data); err != nil { // #nosec G115 -- non-negative
			return fmt.Errorf("halbackend: upload transforms: %w", err)
		}
	}
	r.base = r.used
	r.used += len(objects)
	return nil
}

// grow replaces the buffer. Records already drawn with stay in the old
// buffer until the frame is submitted.
func (r *transformRing) grow(d *Device, need int) error {
	capacity := max(r.capacity, 64)
	for capacity < need {
		capacity *= 2
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gfx_transforms",
		Size:  uint64(capacity * transformStride), // #nosec G115 -- positive
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("halbackend: grow transform buffer: %w", err)
	}
	r.retire(d)
	r.buf, r.capacity, r.used, r.base = buf, capacity, 0, 0
	return nil
}

func (r *transformRing) retire(d *Device) {
	if r.buf == nil {
		return
	}
	gen := r.gen
	d.dropBindGroups(func(k bindKey) bool {
		return k.group == groupTransform && k.transform>>32 == gen
	})
	old := r.buf
	d.later(func() { d.device.DestroyBuffer(old) })
	r.buf = nil
	r.gen++
}

// reset starts a new frame.
func (r *transformRing) reset() { r.used, r.base = 0, 0 }

// shrink drops an oversized buffer between frames.
func (r *transformRing) shrink(d *Device) {
	if r.used == 0 && r.capacity > 256 {
		r.retire(d)
		r.capacity = 0
	}
}

func (r *transformRing) release(d *Device) {
	if r.buf != nil {
		d.device.DestroyBuffer(r.buf)
		r.buf = nil
	}
}

func putMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// assignFloat and assignUint store a value into a descriptor field
// whatever width the field is declared with.
func assignFloat[F ~float32 | ~float64](dst *F, v float32) { *dst = F(v) }

func assignUint[U ~uint8 | ~uint16 | ~uint32 | ~uint64, V ~uint8 | ~uint16 | ~uint32 | ~uint64](dst *U, v V) {
	*dst = U(v)
}
