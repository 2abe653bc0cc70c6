// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package present runs the present side of the GPU layer: a loop on one
// dedicated goroutine that takes the newest frame from a single-slot queue,
// replays it through the backend and composites the result to a surface.
//
// # Cycle
//
// Every cycle walks the same stages:
//
//	Idle → AcquireSurface → WaitForFrame → (Skip | Execute)
//	     → CompositeOverlay → CompositePointer → CompositeExtra
//	     → PresentSurface → Idle
//
// Frames are handed over with last-write-wins semantics. A frame replaced
// before the loop took it never renders, but its resource updates are still
// applied through gfx.Context.ConsumeFrameUpdates.
//
// # Display plugins
//
// A DisplayPlugin decides how an executed frame reaches the screen.
// Display2D blits the frame to a window. HMD pairs each frame with the head
// pose it was rendered for, resamples the pose at present time and warps
// the image by the rotation between the two (asynchronous reprojection)
// before the overlay, pointer and hand lasers are drawn on top.
//
// Composition is recorded as ordinary batches and replayed through the same
// backend, so plugins never touch a native API.
//
// # Texture transfer
//
// TransferWorker stages large texture uploads on its own goroutine within a
// per-cycle byte budget. Textures in transfer stay hidden from replay until
// the loop picks them up as ready.
package present
