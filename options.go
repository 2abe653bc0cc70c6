package gfx

// ContextOption configures a Context during creation.
//
// Example:
//
//	ctx, err := gfx.NewContext(backend, gfx.WithStereo(true), gfx.WithFrameSize(2016, 1120))
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	stereo StereoState
	width  uint32
	height uint32
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		stereo: MonoStereo(),
		width:  1,
		height: 1,
	}
}

// WithStereo enables or disables stereo for every frame begun afterwards.
func WithStereo(enabled bool) ContextOption {
	return func(o *contextOptions) {
		o.stereo.Enabled = enabled
	}
}

// WithStereoState sets the full initial stereo state, including per-eye
// projections and eye offsets.
func WithStereoState(s StereoState) ContextOption {
	return func(o *contextOptions) {
		o.stereo = s
	}
}

// WithFrameSize sets the output size recorded with each frame.
func WithFrameSize(width, height uint32) ContextOption {
	return func(o *contextOptions) {
		o.width, o.height = max(width, 1), max(height, 1)
	}
}
