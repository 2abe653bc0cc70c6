// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// TextureFromImage creates an RGBA8 texture whose level 0 holds the pixels
// of img. Any image.Image is accepted; non-RGBA images are converted.
func TextureFromImage(label string, img image.Image, sampler Sampler) *Texture {
	b := img.Bounds()
	// #nosec G115 -- image bounds are non-negative
	t := NewTexture2D(label, gputypes.TextureFormatRGBA8Unorm, uint32(b.Dx()), uint32(b.Dy()), sampler)
	t.mips[0][0] = toRGBA(img).Pix
	return t
}

// toRGBA returns a tightly packed copy of img with its origin at (0, 0).
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Image returns level 0 of a layer as an image, for readback and tests.
func (t *Texture) Image(layer uint32) (*image.RGBA, error) {
	if !isColor32(t.format) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, t.format)
	}
	src := t.Mip(0, layer)
	if src == nil {
		return nil, ErrNoSource
	}
	w, h := int(t.width), int(t.height)
	return &image.RGBA{Pix: src, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}, nil
}

// GenerateMips builds the full mip chain of every layer from level 0 with
// bilinear downsampling. Only 32-bit color formats are supported; channel
// order does not matter to the filter.
func (t *Texture) GenerateMips() error {
	if !isColor32(t.format) {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, t.format)
	}
	levels := t.MaxMipLevels()
	mips := make([][][]byte, t.layers)
	for layer := range t.layers {
		prev, err := t.Image(layer)
		if err != nil {
			return err
		}
		chain := make([][]byte, levels)
		chain[0] = prev.Pix
		for level := uint32(1); level < levels; level++ {
			w, h := t.MipSize(level)
			dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
			draw.BiLinear.Scale(dst, dst.Bounds(), prev, prev.Bounds(), draw.Src, nil)
			chain[level] = dst.Pix
			prev = dst
		}
		mips[layer] = chain
	}
	t.mips = mips
	t.levels = levels
	t.touch()
	return nil
}

func isColor32(f gputypes.TextureFormat) bool {
	return BytesPerPixel(f) == 4 && !IsDepthFormat(f)
}
