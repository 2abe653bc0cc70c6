package present

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/backend/trace"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/replay"
	"github.com/gogpu/gfx/resource"
)

// rig is a context over the trace backend.
type rig struct {
	ctx    *gfx.Context
	engine *replay.Engine
	dev    *trace.Device
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dev := trace.New()
	e := replay.NewEngine(dev)
	ctx, err := gfx.NewContext(e, gfx.WithFrameSize(640, 480))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return &rig{ctx: ctx, engine: e, dev: dev}
}

// frame records a frame that clears fb (nil for the default target).
func (r *rig) frame(t *testing.T, index uint32, fb *resource.Framebuffer, onPresented ...func(*gfx.Frame)) *gfx.Frame {
	t.Helper()
	if err := r.ctx.BeginFrame(index); err != nil {
		t.Fatalf("BeginFrame(%d): %v", index, err)
	}
	for _, fn := range onPresented {
		if err := r.ctx.OnFramePresented(fn); err != nil {
			t.Fatalf("OnFramePresented: %v", err)
		}
	}
	if fb != nil {
		if err := r.ctx.SetFrameFramebuffer(fb); err != nil {
			t.Fatalf("SetFrameFramebuffer: %v", err)
		}
	}
	b := batch.New("scene")
	b.SetFramebuffer(fb)
	b.ClearFramebuffer(batch.ClearAll, mgl32.Vec4{0, 0, 0, 1}, 1, 0, false)
	if err := r.ctx.AppendBatch(b); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	f, err := r.ctx.EndFrame()
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	return f
}

func newLoop(t *testing.T, r *rig, plugin DisplayPlugin, opts ...LoopOption) (*Loop, *OffscreenSurface) {
	t.Helper()
	s := NewOffscreenSurface(320, 240, gputypes.TextureFormatRGBA8Unorm)
	settings := gfx.DefaultConfig().Present
	settings.IdleSleep = gfx.Duration{Duration: time.Millisecond}
	settings.SurfaceRetry = gfx.Duration{Duration: time.Millisecond}
	opts = append([]LoopOption{WithSurface(s), WithPresentConfig(settings)}, opts...)
	l, err := NewLoop(r.ctx, plugin, opts...)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return l, s
}

func colorFramebuffer(label string) *resource.Framebuffer {
	return resource.NewColorFramebuffer(label, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatDepth24Plus, 640, 480)
}

// overlay is a fixed OverlaySource.
type overlay struct {
	tex       *resource.Texture
	transform mgl32.Mat4
	pointer   *resource.Texture
}

func (o *overlay) OverlayTexture() *resource.Texture { return o.tex }
func (o *overlay) OverlayTransform() mgl32.Mat4      { return o.transform }
func (o *overlay) Alpha() float32                    { return 1 }

func (o *overlay) Pointer() (*resource.Texture, mgl32.Mat4, bool) {
	return o.pointer, mgl32.Ident4(), o.pointer != nil
}

func uiTexture(label string) *resource.Texture {
	tex := resource.NewTexture2D(label, gputypes.TextureFormatRGBA8Unorm, 4, 4, resource.DefaultSampler())
	_ = tex.AssignMip(0, 0, make([]byte, 4*4*4))
	return tex
}

// poses is a scriptable PoseSource and FrameSubmitter.
type poses struct {
	mu        sync.Mutex
	predicted Pose
	current   Pose
	lasers    [2]Laser
	submitted int
}

func newPoses() *poses {
	return &poses{predicted: IdentityPose(), current: IdentityPose()}
}

func (p *poses) PredictedPose(uint32) Pose {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.predicted
}

func (p *poses) CurrentPose() Pose {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *poses) HandLasers() [2]Laser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lasers
}

func (p *poses) SubmitFrame(*resource.Texture, Pose) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted++
	return nil
}

func (p *poses) set(fn func(p *poses)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func yaw(degrees float32) Pose {
	return Pose{Orientation: mgl32.QuatRotate(mgl32.DegToRad(degrees), mgl32.Vec3{0, 1, 0})}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

var background = context.Background()

// nearMat4 compares element-wise with an absolute tolerance; the mgl32
// comparisons are relative and never match an exact zero.
func nearMat4(a, b mgl32.Mat4, tol float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func nearVec3(a, b mgl32.Vec3, tol float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
