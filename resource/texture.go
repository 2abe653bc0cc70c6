// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import "github.com/gogpu/gputypes"

// TextureType is the dimensionality of a texture.
type TextureType uint8

const (
	Texture2D TextureType = iota
	Texture3D
	TextureCube
	Texture2DArray
)

// String returns the texture type name.
func (t TextureType) String() string {
	switch t {
	case Texture2D:
		return "2D"
	case Texture3D:
		return "3D"
	case TextureCube:
		return "Cube"
	case Texture2DArray:
		return "2DArray"
	default:
		return "Unknown"
	}
}

// Texture is a CPU-side texture description plus optional per-mip source
// bytes. Render targets carry no source bytes.
type Texture struct {
	header
	typ     TextureType
	width   uint32
	height  uint32
	depth   uint32
	layers  uint32
	levels  uint32
	format  gputypes.TextureFormat
	usage   gputypes.TextureUsage
	sampler Sampler

	// mips[layer][level]
	mips [][][]byte
}

// NewTexture2D creates a sampled 2D texture with a single mip level.
func NewTexture2D(label string, format gputypes.TextureFormat, width, height uint32, sampler Sampler) *Texture {
	return newTexture(label, Texture2D, format, width, height, 1, 1,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst, sampler)
}

// NewTextureCube creates a cube texture with six layers.
func NewTextureCube(label string, format gputypes.TextureFormat, size uint32, sampler Sampler) *Texture {
	return newTexture(label, TextureCube, format, size, size, 1, 6,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst, sampler)
}

// NewRenderTarget creates a 2D texture usable as a framebuffer attachment
// and as a sampled texture.
func NewRenderTarget(label string, format gputypes.TextureFormat, width, height uint32) *Texture {
	return newTexture(label, Texture2D, format, width, height, 1, 1,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopySrc,
		DefaultSampler())
}

func newTexture(label string, typ TextureType, format gputypes.TextureFormat, w, h, d, layers uint32,
	usage gputypes.TextureUsage, sampler Sampler) *Texture {
	t := &Texture{
		typ:     typ,
		width:   max(w, 1),
		height:  max(h, 1),
		depth:   max(d, 1),
		layers:  max(layers, 1),
		levels:  1,
		format:  format,
		usage:   usage,
		sampler: sampler,
	}
	t.init(label)
	t.resetMips()
	return t
}

func (t *Texture) resetMips() {
	t.mips = make([][][]byte, t.layers)
	for i := range t.mips {
		t.mips[i] = make([][]byte, t.levels)
	}
}

// Kind returns KindTexture.
func (t *Texture) Kind() Kind { return KindTexture }

// Type returns the texture dimensionality.
func (t *Texture) Type() TextureType { return t.typ }

// Width returns the width of mip level 0.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the height of mip level 0.
func (t *Texture) Height() uint32 { return t.height }

// Depth returns the depth of a 3D texture, 1 otherwise.
func (t *Texture) Depth() uint32 { return t.depth }

// Layers returns the number of array layers (6 for cube textures).
func (t *Texture) Layers() uint32 { return t.layers }

// MipLevels returns the number of mip levels.
func (t *Texture) MipLevels() uint32 { return t.levels }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Usage returns the usage flags.
func (t *Texture) Usage() gputypes.TextureUsage { return t.usage }

// Sampler returns the sampler state.
func (t *Texture) Sampler() Sampler { return t.sampler }

// IsRenderTarget reports whether the texture can be a framebuffer attachment.
func (t *Texture) IsRenderTarget() bool {
	return t.usage&gputypes.TextureUsageRenderAttachment != 0
}

// IsDepthStencil reports whether the format is a depth or stencil format.
func (t *Texture) IsDepthStencil() bool { return IsDepthFormat(t.format) }

// SetSampler replaces the sampler state.
func (t *Texture) SetSampler(s Sampler) Stamp {
	t.sampler = s
	return t.touch()
}

// Resize changes the texture size and drops all source bytes.
func (t *Texture) Resize(width, height uint32) Stamp {
	if width == t.width && height == t.height {
		return t.Stamp()
	}
	t.width, t.height = max(width, 1), max(height, 1)
	t.levels = 1
	t.resetMips()
	return t.touch()
}

// MipSize returns the size of a mip level.
func (t *Texture) MipSize(level uint32) (w, h uint32) {
	return max(t.width>>level, 1), max(t.height>>level, 1)
}

// MaxMipLevels returns the length of the full mip chain.
func (t *Texture) MaxMipLevels() uint32 {
	n := uint32(1)
	for s := max(t.width, t.height); s > 1; s >>= 1 {
		n++
	}
	return n
}

// AssignMip sets the source bytes of one mip level of one layer.
// Assigning level n grows the mip chain to n+1 levels.
func (t *Texture) AssignMip(level, layer uint32, data []byte) error {
	if layer >= t.layers || level >= t.MaxMipLevels() {
		return ErrSlotOutOfRange
	}
	if level >= t.levels {
		t.levels = level + 1
		for i := range t.mips {
			grown := make([][]byte, t.levels)
			copy(grown, t.mips[i])
			t.mips[i] = grown
		}
	}
	t.mips[layer][level] = append([]byte(nil), data...)
	t.touch()
	return nil
}

// Mip returns the source bytes of a mip level, or nil.
func (t *Texture) Mip(level, layer uint32) []byte {
	if layer >= t.layers || level >= t.levels {
		return nil
	}
	return t.mips[layer][level]
}

// HasSource reports whether level 0 of every layer has source bytes.
func (t *Texture) HasSource() bool {
	for i := range t.mips {
		if t.mips[i][0] == nil {
			return false
		}
	}
	return true
}

// ByteSize returns the total size in bytes of all assigned source bytes.
func (t *Texture) ByteSize() int {
	n := 0
	for i := range t.mips {
		for _, m := range t.mips[i] {
			n += len(m)
		}
	}
	return n
}

// BytesPerPixel returns the texel size of a format, or 0 if the format is
// compressed or unknown.
func BytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatDepth32Float:
		return 4
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// IsDepthFormat reports whether f is a depth or depth-stencil format.
func IsDepthFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth24Plus, gputypes.TextureFormatDepth16Unorm:
		return true
	default:
		return false
	}
}
