// Package gfx is a deferred GPU command layer for VR and desktop renderers.
//
// # Overview
//
// Render code records work into batches (package batch) that reference
// backend-independent resources (package resource). A Context groups the
// batches of one frame:
//
//	ctx, err := gfx.OpenContext(cfg)
//	if err != nil {
//	    log.Fatal(err) // ErrBackendNotAvailable is fatal
//	}
//	ctx.BeginFrame(index)
//	ctx.AppendBatch(b)
//	frame, err := ctx.EndFrame()
//
// Sealed frames are handed to the present loop (package present), which
// owns the native device. It replays the newest frame through the Backend,
// composites overlays and presents. Frames that lose the race to a newer
// one are never rendered, but their resource updates are still applied
// with ConsumeFrameUpdates.
//
// # Backends
//
// Backends register themselves by name, database/sql style:
//
//	import (
//	    _ "github.com/gogpu/gfx/backend/hal"   // native GPU through gogpu/wgpu
//	    _ "github.com/gogpu/gfx/backend/trace" // headless call recorder
//	)
//
// Both are built on the replay engine (package replay), which mirrors
// resources lazily, caches native state and defers destruction to the
// present goroutine.
//
// # Stereo
//
// With stereo enabled every recorded draw reaches both eyes. The backend
// picks the technique (instanced or double-draw) from its capabilities;
// backends without a stereo path render the left eye only.
//
// # Logging
//
// gfx is silent by default. SetLogger installs a log/slog logger for this
// package and every sub-package.
package gfx
