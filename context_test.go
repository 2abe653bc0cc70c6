package gfx

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/resource"
)

func newTestContext(t *testing.T, opts ...ContextOption) (*Context, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{name: "fake"}
	ctx, err := NewContext(b, opts...)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, b
}

func TestNewContextNilBackend(t *testing.T) {
	if _, err := NewContext(nil); !errors.Is(err, ErrNilBackend) {
		t.Fatalf("NewContext(nil) error = %v, want ErrNilBackend", err)
	}
}

func TestOpenContext(t *testing.T) {
	registerFake(t, "ctx-fake", nil)

	ctx, err := OpenContext(Config{Backend: "ctx-fake", HMD: HMDConfig{PoseHistory: 1}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	if got := ctx.Backend().Capabilities().Name; got != "ctx-fake" {
		t.Errorf("backend = %q, want ctx-fake", got)
	}

	if _, err := OpenContext(Config{Backend: "missing", HMD: HMDConfig{PoseHistory: 1}}); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("OpenContext(missing) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestContextFrameLifecycle(t *testing.T) {
	ctx, _ := newTestContext(t, WithFrameSize(800, 600))

	if _, err := ctx.EndFrame(); !errors.Is(err, ErrNoFrameInProgress) {
		t.Fatalf("EndFrame without BeginFrame error = %v", err)
	}
	if err := ctx.AppendBatch(batch.New("early")); !errors.Is(err, ErrNoFrameInProgress) {
		t.Fatalf("AppendBatch without BeginFrame error = %v", err)
	}

	if err := ctx.BeginFrame(7); err != nil {
		t.Fatal(err)
	}
	if err := ctx.BeginFrame(8); !errors.Is(err, ErrFrameInProgress) {
		t.Fatalf("nested BeginFrame error = %v, want ErrFrameInProgress", err)
	}

	first, second := batch.New("first"), batch.New("second")
	second.Draw(batch.Triangles, 3, 0)
	view := mgl32.Translate3D(0, 0, -5)
	for _, err := range []error{
		ctx.AppendBatch(first),
		ctx.AppendBatch(second),
		ctx.SetFrameView(view),
		ctx.SetFramePose(mgl32.Ident4()),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	f, err := ctx.EndFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Index() != 7 {
		t.Errorf("Index() = %d, want 7", f.Index())
	}
	if got := f.Batches(); len(got) != 2 || got[0] != first || got[1] != second {
		t.Errorf("Batches() not in append order")
	}
	if !first.Sealed() || !second.Sealed() {
		t.Error("EndFrame did not seal the batches")
	}
	if v, ok := f.View(); !ok || v != view {
		t.Errorf("View() = %v, %v; want the override", v, ok)
	}
	if _, ok := f.Projection(); ok {
		t.Error("Projection() reports an override that was never set")
	}
	if w, h := f.Size(); w != 800 || h != 600 {
		t.Errorf("Size() = %dx%d, want 800x600", w, h)
	}
	if f.DrawCallCount() != 1 {
		t.Errorf("DrawCallCount() = %d, want 1", f.DrawCallCount())
	}
	if f.SealedAt().IsZero() {
		t.Error("SealedAt() is zero")
	}
}

func TestContextFramebufferSetsSize(t *testing.T) {
	ctx, _ := newTestContext(t)
	fb := resource.NewColorFramebuffer("out", gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatUndefined, 320, 200)

	if err := ctx.BeginFrame(1); err != nil {
		t.Fatal(err)
	}
	if err := ctx.SetFrameFramebuffer(fb); err != nil {
		t.Fatal(err)
	}
	f, err := ctx.EndFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Framebuffer() != fb {
		t.Error("Framebuffer() is not the selected framebuffer")
	}
	if w, h := f.Size(); w != 320 || h != 200 {
		t.Errorf("Size() = %dx%d, want the framebuffer size", w, h)
	}
}

func TestContextExecuteAndConsume(t *testing.T) {
	ctx, b := newTestContext(t)
	frame := func(index uint32) *Frame {
		t.Helper()
		if err := ctx.BeginFrame(index); err != nil {
			t.Fatal(err)
		}
		f, err := ctx.EndFrame()
		if err != nil {
			t.Fatal(err)
		}
		return f
	}

	f1, f2 := frame(1), frame(2)
	if err := ctx.ExecuteFrame(f1); err != nil {
		t.Fatal(err)
	}
	if err := ctx.ConsumeFrameUpdates(f2); err != nil {
		t.Fatal(err)
	}
	if err := ctx.ExecuteFrame(f2); !errors.Is(err, ErrFrameConsumed) {
		t.Errorf("executing a drained frame error = %v, want ErrFrameConsumed", err)
	}

	if len(b.rendered) != 1 || b.rendered[0] != 1 || len(b.synced) != 1 || b.synced[0] != 2 {
		t.Errorf("rendered %v, synced %v; want [1] and [2]", b.rendered, b.synced)
	}
	want := Stats{Begun: 2, Produced: 2, Executed: 1, Drained: 1}
	if got := ctx.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestContextStereo(t *testing.T) {
	ctx, _ := newTestContext(t)
	if ctx.IsStereo() {
		t.Fatal("new context is stereo")
	}

	proj := [2]mgl32.Mat4{mgl32.Perspective(1, 1, 0.1, 100), mgl32.Perspective(1.1, 1, 0.1, 100)}
	views := [2]mgl32.Mat4{mgl32.Translate3D(0.03, 0, 0), mgl32.Translate3D(-0.03, 0, 0)}
	ctx.EnableStereo(true)
	ctx.SetStereoProjections(proj)
	ctx.SetStereoViews(views)

	if err := ctx.BeginFrame(1); err != nil {
		t.Fatal(err)
	}
	ctx.EnableStereo(false) // applies to later frames only
	f, err := ctx.EndFrame()
	if err != nil {
		t.Fatal(err)
	}
	s := f.Stereo()
	if !s.Enabled || s.EyeProjections != proj || s.EyeViews != views {
		t.Errorf("frame stereo = %+v, want the state at BeginFrame", s)
	}
	if ctx.Stereo().Enabled {
		t.Error("EnableStereo(false) not applied to the context")
	}
}

func TestContextOnFramePresented(t *testing.T) {
	ctx, _ := newTestContext(t)
	if err := ctx.OnFramePresented(func(*Frame) {}); !errors.Is(err, ErrNoFrameInProgress) {
		t.Fatalf("OnFramePresented outside a frame error = %v", err)
	}

	if err := ctx.BeginFrame(3); err != nil {
		t.Fatal(err)
	}
	var calls int
	if err := ctx.OnFramePresented(func(f *Frame) { calls++ }); err != nil {
		t.Fatal(err)
	}
	f, err := ctx.EndFrame()
	if err != nil {
		t.Fatal(err)
	}
	f.Presented()
	f.Presented()
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestContextClose(t *testing.T) {
	ctx, b := newTestContext(t)
	if err := ctx.BeginFrame(1); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatal(err)
	}
	if b.closed != 1 {
		t.Errorf("backend closed %d times, want 1", b.closed)
	}
	if err := ctx.BeginFrame(2); !errors.Is(err, ErrClosed) {
		t.Errorf("BeginFrame after Close error = %v, want ErrClosed", err)
	}
}
