// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import "errors"

var (
	// ErrSurfaceLost is returned by Surface.Acquire when the native surface
	// is gone, for example after the window was minimized or destroyed.
	// The loop skips cycles until the surface is resized.
	ErrSurfaceLost = errors.New("present: surface lost")

	// ErrNoPoseSource is returned by NewHMD without a pose source.
	ErrNoPoseSource = errors.New("present: no pose source")

	// ErrRunning is returned by Run and Start when the loop already runs.
	ErrRunning = errors.New("present: loop already running")
)
