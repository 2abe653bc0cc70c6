package gfx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration read from TOML strings such as "2ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the activation-time configuration of the GPU layer. It is read
// once from a TOML file:
//
//	backend = "hal"
//	debug = false
//
//	[stereo]
//	mode = "auto"
//
//	[present]
//	idle_sleep = "2ms"
//	sentinel_color = [1.0, 0.0, 1.0, 1.0]
//
//	[hmd]
//	async_reprojection = true
//
//	[transfer]
//	enabled = true
//	page_size = 65536
//	budget_per_tick = 4194304
type Config struct {
	// Backend is the registry name of the backend, or "auto".
	Backend string `toml:"backend"`
	// Debug enables profiling ranges and per-call device error logging.
	Debug bool `toml:"debug"`

	Stereo   StereoConfig   `toml:"stereo"`
	Present  PresentConfig  `toml:"present"`
	HMD      HMDConfig      `toml:"hmd"`
	Transfer TransferConfig `toml:"transfer"`
}

// StereoConfig overrides the backend stereo technique.
type StereoConfig struct {
	// Mode is "auto", "instanced", "double-draw" or "none".
	Mode string `toml:"mode"`
}

// Override returns the forced stereo mode, or false for "auto".
func (c StereoConfig) Override() (StereoMode, bool) {
	switch c.Mode {
	case "instanced":
		return StereoInstanced, true
	case "double-draw":
		return StereoDoubleDraw, true
	case "none":
		return StereoNone, true
	default:
		return StereoNone, false
	}
}

// PresentConfig configures the present loop.
type PresentConfig struct {
	// IdleSleep is how long the loop sleeps when no frame is ready.
	IdleSleep Duration `toml:"idle_sleep"`
	// SentinelColor is the clear color used when no frame is ready.
	SentinelColor [4]float32 `toml:"sentinel_color"`
	// SurfaceRetry is the delay before retrying a failed surface acquire.
	SurfaceRetry Duration `toml:"surface_retry"`
}

// HMDConfig configures head-mounted display composition.
type HMDConfig struct {
	AsyncReprojection bool `toml:"async_reprojection"`
	// MonoPreview mirrors the left eye to the desktop surface.
	MonoPreview bool `toml:"mono_preview"`
	// PoseHistory is how many frame poses are kept for late lookups.
	PoseHistory int `toml:"pose_history"`
}

// TransferConfig configures the background texture-transfer worker.
type TransferConfig struct {
	Enabled bool `toml:"enabled"`
	// PageSize is the size of one upload step in bytes.
	PageSize int `toml:"page_size"`
	// BudgetPerTick caps the bytes staged per present cycle.
	BudgetPerTick int `toml:"budget_per_tick"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Backend: BackendAuto,
		Stereo:  StereoConfig{Mode: "auto"},
		Present: PresentConfig{
			IdleSleep:     Duration{2 * time.Millisecond},
			SentinelColor: [4]float32{1, 0, 1, 1},
			SurfaceRetry:  Duration{10 * time.Millisecond},
		},
		HMD: HMDConfig{
			AsyncReprojection: true,
			PoseHistory:       8,
		},
		Transfer: TransferConfig{
			Enabled:       true,
			PageSize:      64 << 10,
			BudgetPerTick: 4 << 20,
		},
	}
}

// ParseConfig decodes TOML data over DefaultConfig. Unknown keys are
// logged and ignored.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("gfx: parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		Logger().Warn("gfx: unknown config key", "key", key.String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("gfx: read config: %w", err)
	}
	return ParseConfig(data)
}

// WriteConfig writes cfg as TOML to path.
func WriteConfig(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("gfx: encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("gfx: write config: %w", err)
	}
	return nil
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.Stereo.Mode {
	case "", "auto", "instanced", "double-draw", "none":
	default:
		errs = append(errs, fmt.Errorf("stereo.mode %q is not one of auto, instanced, double-draw, none", c.Stereo.Mode))
	}
	if c.Present.IdleSleep.Duration < 0 {
		errs = append(errs, errors.New("present.idle_sleep must not be negative"))
	}
	if c.HMD.PoseHistory < 1 {
		errs = append(errs, errors.New("hmd.pose_history must be at least 1"))
	}
	if c.Transfer.Enabled {
		if c.Transfer.PageSize <= 0 {
			errs = append(errs, errors.New("transfer.page_size must be positive"))
		}
		if c.Transfer.BudgetPerTick < c.Transfer.PageSize {
			errs = append(errs, errors.New("transfer.budget_per_tick must be at least one page"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("gfx: invalid config: %w", err)
	}
	return nil
}
