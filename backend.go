package gfx

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx/resource"
)

// StereoMode is how a backend renders one recorded draw to both eyes.
type StereoMode uint8

const (
	// StereoNone means the backend has no stereo path. Stereo frames are
	// rendered mono from the left eye.
	StereoNone StereoMode = iota
	// StereoInstanced issues one draw with twice the instances; the shader
	// selects the eye from the instance index.
	StereoInstanced
	// StereoDoubleDraw issues the draw twice with per-eye viewports.
	StereoDoubleDraw
)

// String returns the mode name as used in configuration files.
func (m StereoMode) String() string {
	switch m {
	case StereoNone:
		return "none"
	case StereoInstanced:
		return "instanced"
	case StereoDoubleDraw:
		return "double-draw"
	default:
		return "unknown"
	}
}

// Capabilities are read once when a backend is activated and never change.
type Capabilities struct {
	// Name is the registry name of the backend.
	Name string
	// Stereo is the stereo technique of the backend.
	Stereo StereoMode
	// MaxTextureSize is the largest supported texture dimension.
	MaxTextureSize uint32
	// TimerQueries reports whether GPU timer queries return real values.
	TimerQueries bool
}

// Backend translates frames into calls against one native graphics API and
// owns every native mirror of resources it has seen.
//
// All methods except Capabilities must be called from the goroutine that
// owns the native context (the present goroutine).
type Backend interface {
	// Render syncs every resource the frame references and replays its
	// batches in order.
	Render(f *Frame) error

	// SyncFrame performs only the resource-sync half of Render. It is used
	// to drain a frame that will not be presented.
	SyncFrame(f *Frame) error

	// SyncCache re-reads the true native state into the backend state cache.
	SyncCache()

	// Recycle destroys everything queued for deferred destruction.
	Recycle()

	// SetCameraCorrection installs a late correction applied to every
	// camera view of following renders. prevRenderView is the view the
	// frame was recorded with. reset discards prior corrections.
	SetCameraCorrection(correction, prevRenderView mgl32.Mat4, reset bool)

	// Capabilities returns the fixed capabilities of the backend.
	Capabilities() Capabilities

	// ResolveTexture returns the native handle of a texture's mirror for
	// interop with an external compositor.
	ResolveTexture(t *resource.Texture) (any, bool)

	// Close releases the backend and all of its mirrors.
	Close() error
}
