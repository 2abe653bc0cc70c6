// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx"
)

// LoopOption configures a Loop during creation.
//
// Example:
//
//	loop, err := present.NewLoop(ctx, present.NewDisplay2D(nil),
//	    present.WithSurface(surface),
//	    present.WithPresentConfig(cfg.Present))
type LoopOption func(*loopOptions)

type loopOptions struct {
	surface  Surface
	settings gfx.PresentConfig
	transfer *TransferWorker
	hook     func(Stage)
}

func defaultLoopOptions() loopOptions {
	return loopOptions{settings: gfx.DefaultConfig().Present}
}

// WithSurface sets the surface frames are presented to. Without it the
// loop draws into a 1280x720 offscreen surface on the backend default
// target.
func WithSurface(s Surface) LoopOption {
	return func(o *loopOptions) { o.surface = s }
}

// WithPresentConfig sets the initial present settings. They can be
// replaced while running with Loop.SetPresentConfig.
func WithPresentConfig(cfg gfx.PresentConfig) LoopOption {
	return func(o *loopOptions) { o.settings = cfg }
}

// WithTransferWorker runs w alongside the loop and hides its pending
// textures from replay.
func WithTransferWorker(w *TransferWorker) LoopOption {
	return func(o *loopOptions) { o.transfer = w }
}

// WithStageHook calls fn on every stage change. fn runs on the present
// goroutine and must not block.
func WithStageHook(fn func(Stage)) LoopOption {
	return func(o *loopOptions) { o.hook = fn }
}

func (o *loopOptions) defaultSurface() Surface {
	return NewOffscreenSurface(1280, 720, gputypes.TextureFormatUndefined)
}
