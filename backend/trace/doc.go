// Package trace provides a replay.Device that records every call instead
// of talking to a GPU.
//
// The trace backend runs headless, which makes it the backend of tests and
// of tools that inspect what a frame would do. Importing the package
// registers it under [gfx.BackendTrace]:
//
//	import _ "github.com/gogpu/gfx/backend/trace"
//
// Handles are *[Object] values numbered in creation order, so two replays
// of the same frames produce identical call logs.
package trace
