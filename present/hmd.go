// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

// overlayRadius is the radius of the sphere lasers are clipped against.
const overlayRadius = 1.0

// FrameInfo is the pose state of one frame index.
type FrameInfo struct {
	// RenderPose is the head pose the frame was rendered for.
	RenderPose Pose
	// PresentPose is the head pose sampled at present time.
	PresentPose Pose
	// Reprojection is the warp applied at composition.
	Reprojection mgl32.Mat4
}

// HMD composites frames for a head-mounted display.
//
// Poses are paired with frames through a table keyed by frame index. The
// table is guarded by one mutex: RecordRenderPose writes it from the
// producer, BeginFrameRender and UpdatePresentPose read and write it on
// the present goroutine. Entries more than the pose history behind the
// presented index are erased.
type HMD struct {
	*compositor
	source    PoseSource
	submitter FrameSubmitter

	reprojection bool
	monoPreview  bool
	history      uint32
	eyeFB        *resource.Framebuffer

	mu         sync.Mutex
	frameInfos map[uint32]FrameInfo

	// Present goroutine only.
	current  uint32
	info     FrameInfo
	noScene  sync.Once
	lastSize [2]uint32
}

// HMDOption configures an HMD.
type HMDOption func(*HMD)

// WithReprojection enables asynchronous reprojection.
func WithReprojection(enabled bool) HMDOption {
	return func(h *HMD) { h.reprojection = enabled }
}

// WithMonoPreview mirrors only the left eye to the desktop surface.
func WithMonoPreview(enabled bool) HMDOption {
	return func(h *HMD) { h.monoPreview = enabled }
}

// WithPoseHistory sets how many frame indices behind the presented one
// keep their pose entry.
func WithPoseHistory(n int) HMDOption {
	return func(h *HMD) { h.history = uint32(max(n, 1)) } // #nosec G115 -- positive
}

// WithRenderSize sets the size of the side-by-side eye image.
func WithRenderSize(width, height uint32) HMDOption {
	return func(h *HMD) { h.eyeFB.Resize(width, height) }
}

// HMDConfigOptions translates the [hmd] section of a configuration.
func HMDConfigOptions(cfg gfx.HMDConfig) []HMDOption {
	return []HMDOption{
		WithReprojection(cfg.AsyncReprojection),
		WithMonoPreview(cfg.MonoPreview),
		WithPoseHistory(cfg.PoseHistory),
	}
}

// NewHMD creates an HMD plugin reading poses from source. overlay may be
// nil. If source implements FrameSubmitter the eye image is submitted to
// it on Present.
func NewHMD(source PoseSource, overlay OverlaySource, opts ...HMDOption) (*HMD, error) {
	if source == nil {
		return nil, ErrNoPoseSource
	}
	h := &HMD{
		compositor:   newCompositor(overlay),
		source:       source,
		reprojection: true,
		history:      8,
		eyeFB: resource.NewColorFramebuffer("hmd_eyes",
			gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatUndefined, 2160, 1200),
		frameInfos: make(map[uint32]FrameInfo),
		info:       FrameInfo{RenderPose: IdentityPose(), PresentPose: IdentityPose(), Reprojection: mgl32.Ident4()},
	}
	h.submitter, _ = source.(FrameSubmitter)
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Name implements DisplayPlugin.
func (h *HMD) Name() string { return "hmd" }

// IsHMD implements DisplayPlugin.
func (h *HMD) IsHMD() bool { return true }

// IsStereo implements DisplayPlugin.
func (h *HMD) IsStereo() bool { return true }

// EyeFramebuffer returns the side-by-side eye image composited each cycle.
func (h *HMD) EyeFramebuffer() *resource.Framebuffer { return h.eyeFB }

// RecordRenderPose samples the predicted pose for a frame index and stores
// it as the render pose. Producers call it before recording the frame and
// build their camera from the result. It is safe for concurrent use.
func (h *HMD) RecordRenderPose(index uint32) Pose {
	pose := h.source.PredictedPose(index)
	h.mu.Lock()
	h.frameInfos[index] = FrameInfo{RenderPose: pose, PresentPose: pose, Reprojection: mgl32.Ident4()}
	h.mu.Unlock()
	return pose
}

// FrameInfo returns the pose entry of a frame index.
func (h *HMD) FrameInfo(index uint32) (FrameInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.frameInfos[index]
	return info, ok
}

// BeginFrameRender implements DisplayPlugin. A frame without a recorded
// render pose gets the current prediction.
func (h *HMD) BeginFrameRender(index uint32) bool {
	h.mu.Lock()
	info, ok := h.frameInfos[index]
	if !ok {
		pose := h.source.PredictedPose(index)
		info = FrameInfo{RenderPose: pose, PresentPose: pose, Reprojection: mgl32.Ident4()}
		h.frameInfos[index] = info
	}
	h.pruneLocked(index)
	h.mu.Unlock()

	h.current, h.info = index, info
	return true
}

// pruneLocked erases entries older than the history window. Indices ahead
// of the presented one belong to frames still being recorded.
func (h *HMD) pruneLocked(index uint32) {
	for k := range h.frameInfos {
		// #nosec G115 -- wrap-around distance between frame indices
		if age := int32(index - k); age > int32(h.history) {
			delete(h.frameInfos, k)
		}
	}
}

// CameraCorrection implements DisplayPlugin. The pose is predicted again
// just before execution and the difference to the render pose is returned
// as a camera-space correction; the frame then counts as rendered with the
// new pose.
func (h *HMD) CameraCorrection() (correction, prevView mgl32.Mat4) {
	latest := h.source.PredictedPose(h.current)
	prev := h.info.RenderPose
	if latest == prev {
		return mgl32.Ident4(), prev.Mat4()
	}
	h.info.RenderPose = latest
	h.store()
	return prev.Mat4().Inv().Mul4(latest.Mat4()), prev.Mat4()
}

// UpdatePresentPose implements DisplayPlugin.
func (h *HMD) UpdatePresentPose() {
	h.info.PresentPose = h.source.CurrentPose()
	h.info.Reprojection = mgl32.Ident4()
	if h.reprojection {
		h.info.Reprojection = Reprojection(h.info.RenderPose, h.info.PresentPose)
	}
	h.store()
}

func (h *HMD) store() {
	h.mu.Lock()
	h.frameInfos[h.current] = h.info
	h.mu.Unlock()
}

// Composite implements DisplayPlugin. The eye image is composited first,
// then mirrored to the surface target as a preview.
func (h *HMD) Composite(t *CompositeTarget, f *gfx.Frame) error {
	info, stereo := h.info, f.Stereo()
	eyes := t.Retarget(h.eyeFB)
	full := eyes.Rect()
	var errs []error

	if tex := sceneTexture(f.Framebuffer()); tex == nil {
		h.noScene.Do(func() {
			gfx.Logger().Warn("present: hmd frame has no color framebuffer, scene not composited",
				"frame", f.Index())
		})
	} else {
		reproject := info.Reprojection != mgl32.Ident4()
		draws := make([]blitDraw, 2)
		for eye := range draws {
			src := fullRect(tex)
			if stereo.Enabled {
				src = eyeRect(src, eye)
			}
			draws[eye] = blitDraw{
				dst:        eyeRect(full, eye),
				src:        src,
				reproject:  reproject,
				rotation:   info.Reprojection,
				projection: stereo.EyeProjections[eye],
			}
		}
		if err := h.blitPass(eyes, "composite_scene", h.sceneU, tex, draws); err != nil {
			errs = append(errs, fmt.Errorf("scene: %w", err))
		}
	}

	var views [2]mgl32.Mat4
	for eye := range views {
		views[eye] = stereo.EyeProjections[eye].Mul4(info.PresentPose.Mat4().Mul4(stereo.EyeViews[eye]).Inv())
	}
	perEye := func(model mgl32.Mat4) []quadDraw {
		return []quadDraw{
			{viewport: eyeRect(full, 0), mvp: views[0].Mul4(model)},
			{viewport: eyeRect(full, 1), mvp: views[1].Mul4(model)},
		}
	}

	eyes.Enter(StageCompositeOverlay)
	if h.overlay != nil {
		if tex := h.overlay.OverlayTexture(); tex != nil {
			draws := perEye(h.overlay.OverlayTransform())
			if err := h.quadPass(eyes, "composite_overlay", h.overlayU, tex, h.overlay.Alpha(), draws); err != nil {
				errs = append(errs, fmt.Errorf("overlay: %w", err))
			}
		}
	}

	eyes.Enter(StageCompositePointer)
	if h.overlay != nil {
		if tex, m, ok := h.overlay.Pointer(); ok {
			if err := h.quadPass(eyes, "composite_pointer", h.pointerU, tex, h.overlay.Alpha(), perEye(m)); err != nil {
				errs = append(errs, fmt.Errorf("pointer: %w", err))
			}
		}
	}

	eyes.Enter(StageCompositeExtra)
	if err := h.laserPass(eyes, h.laserDraws(views, full)); err != nil {
		errs = append(errs, fmt.Errorf("lasers: %w", err))
	}
	if err := h.extraPass(eyes, f); err != nil {
		errs = append(errs, fmt.Errorf("extra: %w", err))
	}

	if err := h.previewPass(t); err != nil {
		errs = append(errs, fmt.Errorf("preview: %w", err))
	}
	return errors.Join(errs...)
}

// laserDraws returns one draw per eye and valid hand whose ray hits the
// overlay sphere.
func (h *HMD) laserDraws(views [2]mgl32.Mat4, full batch.Rect) []laserDraw {
	lasers := h.source.HandLasers()
	if !lasers[HandLeft].Valid && !lasers[HandRight].Valid {
		return nil
	}
	var center mgl32.Vec3
	if h.overlay != nil {
		center = h.overlay.OverlayTransform().Col(3).Vec3()
	}
	var draws []laserDraw
	for _, l := range lasers {
		if !l.Valid {
			continue
		}
		model, ok := laserModel(l, center, overlayRadius)
		if !ok {
			continue
		}
		for eye, view := range views {
			draws = append(draws, laserDraw{viewport: eyeRect(full, eye), mvp: view.Mul4(model), color: l.Color})
		}
	}
	return draws
}

// previewPass mirrors the eye image to the surface, letterboxed.
func (h *HMD) previewPass(t *CompositeTarget) error {
	if t.Framebuffer == h.eyeFB {
		return nil
	}
	src := fullRect(h.eyeFB.RenderBuffer(0))
	if h.monoPreview {
		src = eyeRect(src, 0)
	}
	if size := [2]uint32{t.Width, t.Height}; size != h.lastSize {
		// A resized window keeps stale pixels outside the letterbox.
		h.lastSize = size
		if err := clearPass(t, mgl32.Vec4{0, 0, 0, 1}); err != nil {
			return err
		}
	}
	draw := blitDraw{dst: fitRect(src, t.Rect()), src: src}
	return h.blitPass(t, "composite_preview", h.previewU, h.eyeFB.RenderBuffer(0), []blitDraw{draw})
}

// fitRect returns the largest rectangle with the aspect of src centered
// in dst.
func fitRect(src, dst batch.Rect) batch.Rect {
	if src.Empty() || dst.Empty() {
		return dst
	}
	out := dst
	// Compare src.W/src.H against dst.W/dst.H without division.
	if int64(src.Width)*int64(dst.Height) > int64(dst.Width)*int64(src.Height) {
		out.Height = int32(int64(dst.Width) * int64(src.Height) / int64(src.Width)) // #nosec G115 -- at most dst.Height
		out.Y += (dst.Height - out.Height) / 2
	} else {
		out.Width = int32(int64(dst.Height) * int64(src.Width) / int64(src.Height)) // #nosec G115 -- at most dst.Width
		out.X += (dst.Width - out.Width) / 2
	}
	return out
}

// Present implements DisplayPlugin. The eye image goes to the runtime
// first, then the preview surface is shown.
func (h *HMD) Present(s Surface) error {
	var errs []error
	if h.submitter != nil {
		if err := h.submitter.SubmitFrame(h.eyeFB.RenderBuffer(0), h.info.RenderPose); err != nil {
			errs = append(errs, fmt.Errorf("submit: %w", err))
		}
	}
	if err := s.Present(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
