// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// Target is the drawable of one present cycle.
type Target struct {
	// Framebuffer receives the composited image. Nil selects the backend's
	// default target, which the host binds to the window.
	Framebuffer *resource.Framebuffer
	Width       uint32
	Height      uint32
}

// Rect returns the full target area.
func (t Target) Rect() batch.Rect {
	// #nosec G115 -- surface sizes are far below int32 max
	return batch.Rect{Width: int32(t.Width), Height: int32(t.Height)}
}

// Surface is the windowing side of the present loop. Acquire is the only
// call the loop blocks on besides the frame handoff.
//
// Surfaces are used from the present goroutine, except Resize, which the
// window system may call from anywhere.
type Surface interface {
	// Acquire returns the drawable for this cycle. It returns
	// ErrSurfaceLost while the surface cannot be drawn to.
	Acquire() (Target, error)

	// Present shows the drawable acquired last.
	Present() error

	// Resize notifies the surface of a new window size.
	Resize(width, height uint32)

	// Size returns the current size in pixels.
	Size() (width, height uint32)
}

// OffscreenSurface is a Surface without a window. It renders into the
// backend's default target, or into an owned framebuffer when created with
// a color format. It serves headless runs and tests.
type OffscreenSurface struct {
	mu     sync.Mutex
	width  uint32
	height uint32
	fb     *resource.Framebuffer
	lost   bool

	acquired  atomic.Uint64
	presented atomic.Uint64
}

// NewOffscreenSurface creates a surface of the given size. With
// gputypes.TextureFormatUndefined it draws to the backend default target.
func NewOffscreenSurface(width, height uint32, format gputypes.TextureFormat) *OffscreenSurface {
	s := &OffscreenSurface{width: max(width, 1), height: max(height, 1)}
	if format != gputypes.TextureFormatUndefined {
		s.fb = resource.NewColorFramebuffer("offscreen_surface", format, gputypes.TextureFormatUndefined, s.width, s.height)
	}
	return s
}

// Acquire implements Surface.
func (s *OffscreenSurface) Acquire() (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost {
		return Target{}, ErrSurfaceLost
	}
	if s.fb != nil {
		// Applied here so the framebuffer only changes on the present
		// goroutine.
		s.fb.Resize(s.width, s.height)
	}
	s.acquired.Add(1)
	return Target{Framebuffer: s.fb, Width: s.width, Height: s.height}, nil
}

// Present implements Surface.
func (s *OffscreenSurface) Present() error {
	s.presented.Add(1)
	return nil
}

// Resize implements Surface. It also recovers a lost surface.
func (s *OffscreenSurface) Resize(width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = max(width, 1), max(height, 1)
	s.lost = false
}

// Size implements Surface.
func (s *OffscreenSurface) Size() (width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Lose makes Acquire fail with ErrSurfaceLost until the next Resize.
func (s *OffscreenSurface) Lose() {
	s.mu.Lock()
	s.lost = true
	s.mu.Unlock()
}

// Framebuffer returns the owned framebuffer, or nil.
func (s *OffscreenSurface) Framebuffer() *resource.Framebuffer { return s.fb }

// Presented returns how many times Present was called.
func (s *OffscreenSurface) Presented() uint64 { return s.presented.Load() }

// Acquired returns how many times Acquire succeeded.
func (s *OffscreenSurface) Acquired() uint64 { return s.acquired.Load() }
