package present

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
)

func newHMD(t *testing.T, source PoseSource, overlay OverlaySource, opts ...HMDOption) *HMD {
	t.Helper()
	h, err := NewHMD(source, overlay, opts...)
	if err != nil {
		t.Fatalf("NewHMD: %v", err)
	}
	return h
}

func TestNewHMDRequiresPoseSource(t *testing.T) {
	if _, err := NewHMD(nil, nil); !errors.Is(err, ErrNoPoseSource) {
		t.Fatalf("NewHMD(nil) error = %v, want ErrNoPoseSource", err)
	}
}

func TestReprojection(t *testing.T) {
	t.Run("equal poses are exact identity", func(t *testing.T) {
		for _, deg := range []float32{0, 10, -73.5} {
			if got := Reprojection(yaw(deg), yaw(deg)); got != mgl32.Ident4() {
				t.Errorf("Reprojection(yaw %v, yaw %v) = %v, want identity", deg, deg, got)
			}
		}
	})

	t.Run("translation is ignored", func(t *testing.T) {
		render := yaw(20)
		present := render
		present.Position = mgl32.Vec3{1, 2, 3}
		if got := Reprojection(render, present); got != mgl32.Ident4() {
			t.Errorf("Reprojection with translation only = %v, want identity", got)
		}
	})

	t.Run("pure rotation", func(t *testing.T) {
		got := Reprojection(IdentityPose(), yaw(10))
		want := mgl32.HomogRotate3DY(mgl32.DegToRad(-10))
		if !nearMat4(got, want, 1e-5) {
			t.Errorf("Reprojection(identity, yaw 10) = %v, want %v", got, want)
		}
	})
}

func TestPoseMat4RoundTrip(t *testing.T) {
	p := yaw(30)
	p.Position = mgl32.Vec3{1, 2, 3}
	back := PoseFromMat4(p.Mat4())
	if !nearMat4(back.Mat4(), p.Mat4(), 1e-5) {
		t.Errorf("PoseFromMat4(Mat4()) = %+v, want %+v", back, p)
	}
	if (Pose{}).Mat4() != mgl32.Ident4() {
		t.Error("zero pose is not the identity transform")
	}
}

func TestHMDPoseTable(t *testing.T) {
	src := newPoses()
	h := newHMD(t, src, nil, WithPoseHistory(2))

	for i := uint32(1); i <= 5; i++ {
		h.RecordRenderPose(i)
	}
	h.RecordRenderPose(7)
	h.BeginFrameRender(5)

	for _, tt := range []struct {
		index uint32
		kept  bool
	}{
		{1, false},
		{2, false},
		{3, true},
		{4, true},
		{5, true},
		{7, true},
	} {
		if _, ok := h.FrameInfo(tt.index); ok != tt.kept {
			t.Errorf("FrameInfo(%d) present = %v, want %v", tt.index, ok, tt.kept)
		}
	}
}

func TestHMDPoseTableWraps(t *testing.T) {
	h := newHMD(t, newPoses(), nil, WithPoseHistory(2))
	h.RecordRenderPose(0xFFFFFFFE)
	h.RecordRenderPose(0xFFFFFFFF)
	h.BeginFrameRender(1)

	if _, ok := h.FrameInfo(0xFFFFFFFE); ok {
		t.Error("entry three frames behind across the wrap was kept")
	}
	if _, ok := h.FrameInfo(0xFFFFFFFF); !ok {
		t.Error("entry two frames behind across the wrap was pruned")
	}
}

func TestHMDBeginFrameRenderSamplesMissingPose(t *testing.T) {
	src := newPoses()
	src.predicted = yaw(15)
	h := newHMD(t, src, nil)

	if !h.BeginFrameRender(9) {
		t.Fatal("BeginFrameRender skipped the frame")
	}
	info, ok := h.FrameInfo(9)
	if !ok || info.RenderPose != yaw(15) {
		t.Fatalf("FrameInfo(9) = %+v, %v; want the predicted pose", info, ok)
	}
}

func TestHMDCameraCorrection(t *testing.T) {
	src := newPoses()
	h := newHMD(t, src, nil)
	h.RecordRenderPose(1)
	h.BeginFrameRender(1)

	corr, prev := h.CameraCorrection()
	if corr != mgl32.Ident4() || prev != mgl32.Ident4() {
		t.Fatalf("unchanged prediction: correction %v, prev %v; want identity", corr, prev)
	}

	src.set(func(p *poses) { p.predicted = yaw(5) })
	corr, prev = h.CameraCorrection()
	if prev != mgl32.Ident4() {
		t.Errorf("prev view = %v, want the recorded identity pose", prev)
	}
	if !nearMat4(corr, yaw(5).Mat4(), 1e-5) {
		t.Errorf("correction = %v, want the 5 degree yaw", corr)
	}
	if info, _ := h.FrameInfo(1); info.RenderPose != yaw(5) {
		t.Errorf("render pose = %+v, want the re-predicted pose", info.RenderPose)
	}
}

func TestHMDUpdatePresentPose(t *testing.T) {
	tests := []struct {
		name         string
		reprojection bool
	}{
		{"reprojection on", true},
		{"reprojection off", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newPoses()
			src.current = yaw(10)
			h := newHMD(t, src, nil, WithReprojection(tt.reprojection))
			h.RecordRenderPose(1)
			h.BeginFrameRender(1)
			h.UpdatePresentPose()

			info, ok := h.FrameInfo(1)
			if !ok {
				t.Fatal("frame 1 has no pose entry")
			}
			if info.PresentPose != yaw(10) {
				t.Errorf("present pose = %+v, want the current pose", info.PresentPose)
			}
			if identity := info.Reprojection == mgl32.Ident4(); identity == tt.reprojection {
				t.Errorf("reprojection identity = %v with reprojection %v", identity, tt.reprojection)
			}
		})
	}
}

func TestIntersectRaySphere(t *testing.T) {
	tests := []struct {
		name     string
		origin   mgl32.Vec3
		dir      mgl32.Vec3
		wantDist float32
		wantHit  bool
	}{
		{"outside", mgl32.Vec3{0, 0, 3}, mgl32.Vec3{0, 0, -1}, 2, true},
		{"inside", mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, 1, true},
		{"miss", mgl32.Vec3{5, 0, 3}, mgl32.Vec3{0, 0, -1}, 0, false},
		{"behind", mgl32.Vec3{0, 0, 3}, mgl32.Vec3{0, 0, 1}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, hit := intersectRaySphere(tt.origin, tt.dir, mgl32.Vec3{}, 1)
			if hit != tt.wantHit || math32.Abs(dist-tt.wantDist) > 1e-5 {
				t.Errorf("intersectRaySphere() = %v, %v; want %v, %v", dist, hit, tt.wantDist, tt.wantHit)
			}
		})
	}
}

func TestLaserModel(t *testing.T) {
	tests := []struct {
		name  string
		laser Laser
		want  mgl32.Vec3 // where the ray tip lands
	}{
		{
			name:  "default direction",
			laser: Laser{Valid: true, Hand: Pose{Position: mgl32.Vec3{0, 0, 3}}},
			want:  mgl32.Vec3{0, 0, 1},
		},
		{
			name:  "sideways",
			laser: Laser{Valid: true, Hand: Pose{Position: mgl32.Vec3{-3, 0, 0}}, Direction: mgl32.Vec3{1, 0, 0}},
			want:  mgl32.Vec3{-1, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, ok := laserModel(tt.laser, mgl32.Vec3{}, 1)
			if !ok {
				t.Fatal("laser missed the sphere")
			}
			tip := model.Mul4x1(mgl32.Vec4{0, 0, -1, 1}).Vec3()
			if !nearVec3(tip, tt.want, 1e-4) {
				t.Errorf("laser tip = %v, want %v", tip, tt.want)
			}
		})
	}

	miss := Laser{Valid: true, Hand: Pose{Position: mgl32.Vec3{0, 0, 3}}, Direction: mgl32.Vec3{0, 0, 1}}
	if _, ok := laserModel(miss, mgl32.Vec3{}, 1); ok {
		t.Error("laser pointing away hit the sphere")
	}
}

func TestHMDLaserDraws(t *testing.T) {
	src := newPoses()
	ui := &overlay{tex: uiTexture("ui"), transform: mgl32.Translate3D(0, 0, -2)}
	h := newHMD(t, src, ui)
	views := [2]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()}
	full := batch.Rect{Width: 200, Height: 100}

	if draws := h.laserDraws(views, full); draws != nil {
		t.Fatalf("no valid lasers produced %d draws", len(draws))
	}

	src.set(func(p *poses) {
		p.lasers[HandLeft] = Laser{Valid: true, Hand: IdentityPose(), Color: mgl32.Vec4{1, 0, 0, 1}}
		p.lasers[HandRight] = Laser{Valid: true, Hand: IdentityPose(), Direction: mgl32.Vec3{0, 0, 1}}
	})
	draws := h.laserDraws(views, full)
	if len(draws) != 2 {
		t.Fatalf("laser draws = %d, want one per eye for the hand that hits", len(draws))
	}
	if draws[0].viewport != eyeRect(full, 0) || draws[1].viewport != eyeRect(full, 1) {
		t.Errorf("viewports = %v, %v; want the eye halves", draws[0].viewport, draws[1].viewport)
	}
	if draws[0].color != (mgl32.Vec4{1, 0, 0, 1}) {
		t.Errorf("color = %v, want the left hand color", draws[0].color)
	}
}

func TestFitRect(t *testing.T) {
	square := batch.Rect{Width: 100, Height: 100}
	tests := []struct {
		name string
		src  batch.Rect
		dst  batch.Rect
		want batch.Rect
	}{
		{"wide source", batch.Rect{Width: 200, Height: 100}, square, batch.Rect{Y: 25, Width: 100, Height: 50}},
		{"tall source", batch.Rect{Width: 100, Height: 200}, square, batch.Rect{X: 25, Width: 50, Height: 100}},
		{"same aspect", batch.Rect{Width: 10, Height: 10}, square, square},
		{"empty source", batch.Rect{}, square, square},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fitRect(tt.src, tt.dst); got != tt.want {
				t.Errorf("fitRect(%v, %v) = %v, want %v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}

func TestHMDCompositeThroughLoop(t *testing.T) {
	r := newRig(t)
	src := newPoses()
	src.current = yaw(3)
	h := newHMD(t, src, nil, WithRenderSize(400, 200))
	l, s := newLoop(t, r, h)
	if !r.ctx.IsStereo() {
		t.Fatal("HMD loop did not enable stereo")
	}

	var presented bool
	l.SubmitFrame(r.frame(t, 1, colorFramebuffer("scene"), func(*gfx.Frame) { presented = true }))
	l.cycle(background)

	if !presented {
		t.Fatalf("frame not presented, stats %+v", l.Stats())
	}
	// Two eye blits, the first-cycle preview clear and the preview blit.
	if st := l.Stats(); st.CompositePasses != 3 || st.CompositeErrors != 0 {
		t.Errorf("stats = %+v, want 3 composite passes", st)
	}
	if n := r.engine.Stats().DrawCalls; n != 3 {
		t.Errorf("DrawCalls = %d, want 2 eye blits and 1 preview blit", n)
	}
	if src.submitted != 1 || s.Presented() != 1 {
		t.Errorf("submitted %d, surface presented %d; want 1 each", src.submitted, s.Presented())
	}
	info, ok := h.FrameInfo(1)
	if !ok || info.Reprojection == mgl32.Ident4() {
		t.Errorf("FrameInfo(1) = %+v, %v; want a reprojection warp", info, ok)
	}
	if w := h.EyeFramebuffer().Width(); w != 400 {
		t.Errorf("eye framebuffer width = %d, want 400", w)
	}
}
