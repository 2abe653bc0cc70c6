// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halbackend

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/resource"
)

type halBuffer struct {
	label string
	buf   hal.Buffer
	size  uint64
}

type halTexture struct {
	label  string
	tex    hal.Texture
	view   hal.TextureView
	format gputypes.TextureFormat
	width  uint32
	height uint32
	layers uint32
	levels uint32
	// external views belong to a surface and are never destroyed here.
	external bool
}

func (t *halTexture) depth() bool { return resource.IsDepthFormat(t.format) }

type halFramebuffer struct {
	label    string
	colors   []*halTexture
	depthTex *halTexture
	width    uint32
	height   uint32
}

// formats returns the attachment formats, the part of a framebuffer a
// render pipeline depends on.
func (fb *halFramebuffer) formats() (colors [resource.MaxColorAttachments]gputypes.TextureFormat, depth gputypes.TextureFormat) {
	for i, c := range fb.colors {
		colors[i] = c.format
	}
	if fb.depthTex != nil {
		depth = fb.depthTex.format
	}
	return colors, depth
}

type halShader struct {
	label    string
	module   hal.ShaderModule
	vertex   string
	fragment string
}

type halPipeline struct {
	label  string
	shader *halShader
	state  resource.State
}

type halQuery struct {
	label string
}

type textureSpec struct {
	format        gputypes.TextureFormat
	width, height uint32
	layers        uint32
	levels        uint32
	usage         gputypes.TextureUsage
	volume        bool
}

func (d *Device) newTexture(label string, spec textureSpec) (*halTexture, error) {
	dim := gputypes.TextureDimension2D
	if spec.volume {
		dim = gputypes.TextureDimension3D
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: spec.width, Height: spec.height, DepthOrArrayLayers: max(spec.layers, 1)},
		MipLevelCount: max(spec.levels, 1),
		SampleCount:   1,
		Dimension:     dim,
		Format:        spec.format,
		Usage:         spec.usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halbackend: create texture %q: %w", label, err)
	}
	vd := &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        spec.format,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: max(spec.levels, 1),
	}
	if !spec.volume && spec.layers <= 1 {
		vd.Dimension = gputypes.TextureViewDimension2D
	}
	view, err := d.device.CreateTextureView(tex, vd)
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("halbackend: create view %q: %w", label, err)
	}
	return &halTexture{
		label:  label,
		tex:    tex,
		view:   view,
		format: spec.format,
		width:  spec.width,
		height: spec.height,
		layers: max(spec.layers, 1),
		levels: max(spec.levels, 1),
	}, nil
}

// writeTexture uploads one mip level of one layer. Short data is skipped.
func (d *Device) writeTexture(t *halTexture, level, layer uint32, data []byte) error {
	w, h := max(t.width>>level, 1), max(t.height>>level, 1)
	bpp := uint32(resource.BytesPerPixel(t.format)) // #nosec G115 -- at most 16
	if bpp == 0 || uint64(len(data)) < uint64(w)*uint64(h)*uint64(bpp) {
		return nil
	}
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: level,
			Origin:   hal.Origin3D{Z: layer},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * bpp, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("halbackend: upload texture %q level %d layer %d: %w", t.label, level, layer, err)
	}
	return nil
}

func (d *Device) destroyTexture(t *halTexture) {
	if t.external {
		return
	}
	if t.view != nil {
		d.device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		d.device.DestroyTexture(t.tex)
	}
}
