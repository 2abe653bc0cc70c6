package replay

import "github.com/gogpu/gfx"

type engineOptions struct {
	debug     bool
	stereo    gfx.StereoMode
	stereoSet bool
	gate      TextureGate
}

func defaultEngineOptions() engineOptions {
	return engineOptions{}
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

// WithDebug turns on device error logging and profile markers.
func WithDebug(debug bool) EngineOption {
	return func(o *engineOptions) { o.debug = debug }
}

// WithStereoMode overrides the stereo technique reported by the device.
func WithStereoMode(m gfx.StereoMode) EngineOption {
	return func(o *engineOptions) {
		o.stereo = m
		o.stereoSet = true
	}
}

// WithTextureGate installs a gate that hides textures still in transfer.
func WithTextureGate(g TextureGate) EngineOption {
	return func(o *engineOptions) { o.gate = g }
}

// ConfigOptions translates the engine-relevant parts of cfg.
func ConfigOptions(cfg gfx.Config) []EngineOption {
	opts := []EngineOption{WithDebug(cfg.Debug)}
	if m, ok := cfg.Stereo.Override(); ok {
		opts = append(opts, WithStereoMode(m))
	}
	return opts
}
