package gfx

import "errors"

var (
	// ErrBackendNotAvailable is returned when the requested backend is not
	// registered or cannot be opened on this machine.
	ErrBackendNotAvailable = errors.New("gfx: backend not available")

	// ErrNilBackend is returned when a Context is built without a backend.
	ErrNilBackend = errors.New("gfx: nil backend")

	// ErrFrameInProgress is returned by BeginFrame when the previous frame
	// was not ended.
	ErrFrameInProgress = errors.New("gfx: frame already in progress")

	// ErrNoFrameInProgress is returned when a frame operation is called
	// outside BeginFrame/EndFrame.
	ErrNoFrameInProgress = errors.New("gfx: no frame in progress")

	// ErrFrameConsumed is returned when a frame is handed to a backend a
	// second time.
	ErrFrameConsumed = errors.New("gfx: frame already consumed")

	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("gfx: context closed")
)
