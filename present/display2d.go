// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
)

// Display2D presents frames to a flat window. The present pose is the
// render pose, so no correction is ever applied. Stereo frames are shown
// side by side.
type Display2D struct {
	*compositor
	stereo bool
}

// Display2DOption configures a Display2D.
type Display2DOption func(*Display2D)

// WithSideBySide makes the plugin request stereo frames.
func WithSideBySide(enabled bool) Display2DOption {
	return func(d *Display2D) { d.stereo = enabled }
}

// NewDisplay2D creates a 2D plugin. overlay may be nil.
func NewDisplay2D(overlay OverlaySource, opts ...Display2DOption) *Display2D {
	d := &Display2D{compositor: newCompositor(overlay)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements DisplayPlugin.
func (d *Display2D) Name() string { return "2d" }

// IsHMD implements DisplayPlugin.
func (d *Display2D) IsHMD() bool { return false }

// IsStereo implements DisplayPlugin.
func (d *Display2D) IsStereo() bool { return d.stereo }

// BeginFrameRender implements DisplayPlugin.
func (d *Display2D) BeginFrameRender(uint32) bool { return true }

// CameraCorrection implements DisplayPlugin. It is always identity.
func (d *Display2D) CameraCorrection() (correction, prevView mgl32.Mat4) {
	return mgl32.Ident4(), mgl32.Ident4()
}

// UpdatePresentPose implements DisplayPlugin.
func (d *Display2D) UpdatePresentPose() {}

// Composite implements DisplayPlugin.
func (d *Display2D) Composite(t *CompositeTarget, f *gfx.Frame) error {
	var errs []error
	if tex := sceneTexture(f.Framebuffer()); tex != nil && f.Framebuffer() != t.Framebuffer {
		draw := blitDraw{dst: t.Rect(), src: fullRect(tex)}
		if err := d.blitPass(t, "composite_scene", d.sceneU, tex, []blitDraw{draw}); err != nil {
			errs = append(errs, fmt.Errorf("scene: %w", err))
		}
	}

	t.Enter(StageCompositeOverlay)
	if d.overlay != nil {
		full := []quadDraw{{viewport: t.Rect(), mvp: mgl32.Ident4()}}
		if err := d.quadPass(t, "composite_overlay", d.overlayU, d.overlay.OverlayTexture(), d.overlay.Alpha(), full); err != nil {
			errs = append(errs, fmt.Errorf("overlay: %w", err))
		}
	}

	t.Enter(StageCompositePointer)
	if d.overlay != nil {
		if tex, m, ok := d.overlay.Pointer(); ok {
			draws := []quadDraw{{viewport: t.Rect(), mvp: m}}
			if err := d.quadPass(t, "composite_pointer", d.pointerU, tex, d.overlay.Alpha(), draws); err != nil {
				errs = append(errs, fmt.Errorf("pointer: %w", err))
			}
		}
	}

	t.Enter(StageCompositeExtra)
	if err := d.extraPass(t, f); err != nil {
		errs = append(errs, fmt.Errorf("extra: %w", err))
	}
	return errors.Join(errs...)
}

// Present implements DisplayPlugin.
func (d *Display2D) Present(s Surface) error { return s.Present() }
