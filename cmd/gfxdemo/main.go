// Command gfxdemo drives the gfx frame pipeline headlessly.
//
// It records a spinning triangle on a producer goroutine, presents it
// through the present loop and, with the trace backend, writes the native
// call log:
//
//	gfxdemo -frames 90 -hmd -calls calls.txt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/gfx"
	_ "github.com/gogpu/gfx/backend/hal"
	"github.com/gogpu/gfx/backend/trace"
	"github.com/gogpu/gfx/present"
	"github.com/gogpu/gfx/replay"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file; [present] is hot-reloaded")
		backend    = flag.String("backend", gfx.BackendTrace, "backend name, or auto")
		frames     = flag.Int("frames", 120, "frames to produce")
		rate       = flag.Int("rate", 90, "producer frame rate in Hz")
		hmd        = flag.Bool("hmd", false, "composite for a simulated headset")
		callsPath  = flag.String("calls", "", "write the trace call log to this file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg := gfx.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = gfx.LoadConfig(*configPath); err != nil {
			log.Fatalf("gfxdemo: %v", err)
		}
	}
	cfg.Backend = *backend

	level := slog.LevelInfo
	if *verbose || cfg.Debug {
		level = slog.LevelDebug
	}
	gfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg, options{
		configPath: *configPath,
		frames:     *frames,
		interval:   time.Second / time.Duration(max(*rate, 1)),
		hmd:        *hmd,
		callsPath:  *callsPath,
	}); err != nil {
		log.Fatalf("gfxdemo: %v", err)
	}
}

type options struct {
	configPath string
	frames     int
	interval   time.Duration
	hmd        bool
	callsPath  string
}

func run(cfg gfx.Config, o options) error {
	ctx, dev, err := openContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()

	overlay := newOverlay(256, 128)
	var (
		plugin  present.DisplayPlugin
		headset *present.HMD
	)
	if o.hmd {
		if headset, err = present.NewHMD(newHeadSim(o.interval), overlay, present.HMDConfigOptions(cfg.HMD)...); err != nil {
			return err
		}
		plugin = headset
	} else {
		plugin = present.NewDisplay2D(overlay)
	}

	loopOpts := []present.LoopOption{present.WithPresentConfig(cfg.Present)}
	if cfg.Transfer.Enabled {
		worker, err := present.NewTransferWorker(cfg.Transfer)
		if err != nil {
			return err
		}
		worker.Enqueue(overlay.tex, [][]byte{overlay.pixels()}, true)
		loopOpts = append(loopOpts, present.WithTransferWorker(worker))
	} else if err := overlay.tex.AssignMip(0, 0, overlay.pixels()); err != nil {
		return err
	}
	loop, err := present.NewLoop(ctx, plugin, loopOpts...)
	if err != nil {
		return err
	}

	if o.configPath != "" {
		w, err := present.WatchConfig(o.configPath, loop.SetPresentConfig)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := loop.Start(sigCtx); err != nil {
		return err
	}

	s := newScene()
	start := time.Now()
	produced := produce(sigCtx, o, func(index uint32) error {
		view := s.defaultView
		if headset != nil {
			// Record with the predicted pose so the loop can warp to the
			// pose at present time.
			view = headset.RecordRenderPose(index).Mat4().Inv()
		}
		f, err := s.record(ctx, index, time.Since(start), view)
		if err != nil {
			return err
		}
		loop.SubmitFrame(f)
		return nil
	})
	// Let the loop pick up the last frame.
	time.Sleep(4 * o.interval)

	if err := loop.Stop(); err != nil {
		return err
	}
	report(ctx, loop, produced)
	if o.callsPath != "" {
		return writeCalls(dev, o.callsPath)
	}
	return nil
}

// openContext opens the configured backend. The trace backend is built
// here so its call log stays reachable.
func openContext(cfg gfx.Config) (*gfx.Context, *trace.Device, error) {
	if cfg.Backend != gfx.BackendTrace {
		ctx, err := gfx.OpenContext(cfg)
		return ctx, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	dev := trace.New()
	ctx, err := gfx.NewContext(replay.NewEngine(dev, replay.ConfigOptions(cfg)...))
	return ctx, dev, err
}

// produce calls record at the producer rate until all frames are made or
// ctx is done. It returns the number of frames recorded.
func produce(ctx context.Context, o options, record func(index uint32) error) int {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for i := range o.frames {
		if err := record(uint32(i)); err != nil { // #nosec G115 -- frame counts are small
			gfx.Logger().Error("gfxdemo: record frame", "frame", i, "err", err)
			return i
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return i + 1
		}
	}
	return o.frames
}

func report(ctx *gfx.Context, loop *present.Loop, produced int) {
	ls, cs := loop.Stats(), ctx.Stats()
	gfx.Logger().Info("gfxdemo: done",
		"produced", produced,
		"executed", cs.Executed,
		"drained", cs.Drained,
		"presented", ls.Presented,
		"dropped", ls.Dropped,
		"skipped", ls.Skipped,
		"composite_passes", ls.CompositePasses)
	if e, ok := ctx.Backend().(*replay.Engine); ok {
		rs := e.Stats()
		gfx.Logger().Info("gfxdemo: replay",
			"draws", rs.DrawCalls, "elided", rs.ElidedCalls, "mirrors", rs.Mirrors)
	}
}

func writeCalls(dev *trace.Device, path string) error {
	if dev == nil {
		return errors.New("-calls needs the trace backend")
	}
	f, err := os.Create(path) // #nosec G304 -- path comes from the command line
	if err != nil {
		return err
	}
	n, err := dev.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write call log: %w", err)
	}
	gfx.Logger().Info("gfxdemo: call log written", "path", path, "bytes", n)
	return nil
}
