// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// MaxColorAttachments is the number of color slots of a framebuffer.
const MaxColorAttachments = 4

// Framebuffer groups render-target textures into one render destination.
//
// A framebuffer's mirror depends on its attachments as well as on itself:
// a backend must rebuild it when [Framebuffer.Stamp] or any value of
// [Framebuffer.AttachmentStamps] changed.
type Framebuffer struct {
	header
	width  uint32
	height uint32
	colors [MaxColorAttachments]*Texture
	depth  *Texture
}

// NewFramebuffer creates an empty framebuffer of the given size.
func NewFramebuffer(label string, width, height uint32) *Framebuffer {
	fb := &Framebuffer{width: max(width, 1), height: max(height, 1)}
	fb.init(label)
	return fb
}

// NewColorFramebuffer creates a framebuffer with one color render target
// and, if depthFormat is not undefined, a depth-stencil target.
func NewColorFramebuffer(label string, colorFormat, depthFormat gputypes.TextureFormat, width, height uint32) *Framebuffer {
	fb := NewFramebuffer(label, width, height)
	fb.colors[0] = NewRenderTarget(label+".color0", colorFormat, fb.width, fb.height)
	if depthFormat != gputypes.TextureFormatUndefined {
		fb.depth = NewRenderTarget(label+".depth", depthFormat, fb.width, fb.height)
	}
	return fb
}

// Kind returns KindFramebuffer.
func (fb *Framebuffer) Kind() Kind { return KindFramebuffer }

// Width returns the framebuffer width.
func (fb *Framebuffer) Width() uint32 { return fb.width }

// Height returns the framebuffer height.
func (fb *Framebuffer) Height() uint32 { return fb.height }

// SetRenderBuffer attaches tex to a color slot. A nil tex clears the slot.
func (fb *Framebuffer) SetRenderBuffer(slot int, tex *Texture) error {
	if slot < 0 || slot >= MaxColorAttachments {
		return fmt.Errorf("%w: color slot %d", ErrSlotOutOfRange, slot)
	}
	if tex != nil && (tex.Width() != fb.width || tex.Height() != fb.height) {
		return fmt.Errorf("%w: %dx%d into %dx%d", ErrSizeMismatch, tex.Width(), tex.Height(), fb.width, fb.height)
	}
	fb.colors[slot] = tex
	fb.touch()
	return nil
}

// RenderBuffer returns the texture of a color slot, or nil.
func (fb *Framebuffer) RenderBuffer(slot int) *Texture {
	if slot < 0 || slot >= MaxColorAttachments {
		return nil
	}
	return fb.colors[slot]
}

// SetDepthStencil attaches a depth-stencil texture. A nil tex detaches it.
func (fb *Framebuffer) SetDepthStencil(tex *Texture) error {
	if tex != nil && (tex.Width() != fb.width || tex.Height() != fb.height) {
		return fmt.Errorf("%w: depth %dx%d into %dx%d", ErrSizeMismatch, tex.Width(), tex.Height(), fb.width, fb.height)
	}
	fb.depth = tex
	fb.touch()
	return nil
}

// DepthStencil returns the depth-stencil attachment, or nil.
func (fb *Framebuffer) DepthStencil() *Texture { return fb.depth }

// ColorCount returns the number of attached color slots.
func (fb *Framebuffer) ColorCount() int {
	n := 0
	for _, c := range fb.colors {
		if c != nil {
			n++
		}
	}
	return n
}

// Resize resizes the framebuffer and every attachment.
func (fb *Framebuffer) Resize(width, height uint32) Stamp {
	width, height = max(width, 1), max(height, 1)
	if width == fb.width && height == fb.height {
		return fb.Stamp()
	}
	fb.width, fb.height = width, height
	for _, c := range fb.colors {
		if c != nil {
			c.Resize(width, height)
		}
	}
	if fb.depth != nil {
		fb.depth.Resize(width, height)
	}
	return fb.touch()
}

// AttachmentStamps returns the stamps of the color slots followed by the
// depth slot. Empty slots read 0.
func (fb *Framebuffer) AttachmentStamps() [MaxColorAttachments + 1]Stamp {
	var s [MaxColorAttachments + 1]Stamp
	for i, c := range fb.colors {
		if c != nil {
			s[i] = c.Stamp()
		}
	}
	if fb.depth != nil {
		s[MaxColorAttachments] = fb.depth.Stamp()
	}
	return s
}
