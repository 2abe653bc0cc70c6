package replay_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/backend/trace"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/replay"
	"github.com/gogpu/gfx/resource"
)

const triangleWGSL = `
@vertex fn vs_main(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(p, 1.0);
}
@fragment fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

var fullView = batch.Rect{Width: 640, Height: 480}

type scene struct {
	shader   *resource.Shader
	pipeline *resource.Pipeline
	vertices *resource.Buffer
}

func newScene() *scene {
	sh := resource.NewShader("triangle", triangleWGSL)
	return &scene{
		shader:   sh,
		pipeline: resource.NewPipeline("triangle", sh, resource.DefaultState()),
		vertices: resource.NewBuffer("vertices", gputypes.BufferUsageVertex, make([]byte, 36)),
	}
}

// setup records the pipeline, input and viewport of a draw.
func (s *scene) setup(b *batch.Batch) {
	b.SetPipeline(s.pipeline)
	b.SetInputBuffer(0, s.vertices, 0, 12)
	b.SetViewportTransform(fullView)
}

func (s *scene) batch(name string, draws int) *batch.Batch {
	b := batch.New(name)
	s.setup(b)
	for range draws {
		b.Draw(batch.Triangles, 3, 0)
	}
	return b
}

func newEngine(t *testing.T, devOpts []trace.Option, opts ...replay.EngineOption) (*replay.Engine, *trace.Device) {
	t.Helper()
	dev := trace.New(devOpts...)
	e := replay.NewEngine(dev, opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e, dev
}

// frame builds a sealed frame through a Context.
func frame(t *testing.T, e *replay.Engine, stereo bool, batches ...*batch.Batch) *gfx.Frame {
	t.Helper()
	ctx, err := gfx.NewContext(e, gfx.WithStereo(stereo), gfx.WithFrameSize(640, 480))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if err := ctx.BeginFrame(1); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	for _, b := range batches {
		if err := ctx.AppendBatch(b); err != nil {
			t.Fatalf("AppendBatch: %v", err)
		}
	}
	f, err := ctx.EndFrame()
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	return f
}

func render(t *testing.T, e *replay.Engine, stereo bool, batches ...*batch.Batch) {
	t.Helper()
	if err := e.Render(frame(t, e, stereo, batches...)); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestRenderCreatesMirrorsOnce(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	b := s.batch("main", 1)

	render(t, e, false, b)
	render(t, e, false, b)

	for _, op := range []string{"CreateBuffer", "CreateShader", "CreatePipeline"} {
		if got := dev.Count(op); got != 1 {
			t.Errorf("%s called %d times, want 1", op, got)
		}
	}
	if got := dev.Count("Draw"); got != 2 {
		t.Errorf("Draw called %d times, want 2", got)
	}
	if got := e.Stats().Mirrors; got != 3 {
		t.Errorf("Mirrors = %d, want 3", got)
	}
}

func TestStampChangeRebuildsMirror(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	b := s.batch("main", 1)
	render(t, e, false, b)

	s.vertices.SetData(make([]byte, 72))
	render(t, e, false, b)

	if got := dev.Count("CreateBuffer"); got != 2 {
		t.Fatalf("CreateBuffer called %d times, want 2", got)
	}
	if got := dev.Count("Destroy"); got != 0 {
		t.Fatalf("stale mirror destroyed during replay (%d destroys)", got)
	}
	if got := dev.LiveOf(resource.KindBuffer); got != 2 {
		t.Fatalf("live buffers = %d, want 2 before Recycle", got)
	}

	e.Recycle()
	if got := dev.LiveOf(resource.KindBuffer); got != 1 {
		t.Errorf("live buffers = %d, want 1 after Recycle", got)
	}
	if got := e.Stats().MirrorRebuilds; got != 1 {
		t.Errorf("MirrorRebuilds = %d, want 1", got)
	}
}

func TestShaderChangeRebuildsPipeline(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	b := s.batch("main", 1)
	render(t, e, false, b)

	s.shader.SetEntryPoints("vs_main", "fs_main")
	render(t, e, false, b)

	if got := dev.Count("CreatePipeline"); got != 2 {
		t.Errorf("CreatePipeline called %d times, want 2", got)
	}
	if got := dev.Count("CreateShader"); got != 2 {
		t.Errorf("CreateShader called %d times, want 2", got)
	}
}

func TestFramebufferAttachmentChangeRebuilds(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	fb := resource.NewColorFramebuffer("offscreen", gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatUndefined, 64, 64)

	b := batch.New("offscreen")
	b.SetFramebuffer(fb)
	s.setup(b)
	b.Draw(batch.Triangles, 3, 0)

	render(t, e, false, b)
	fb.RenderBuffer(0).Resize(128, 128)
	render(t, e, false, b)

	if got := dev.Count("CreateFramebuffer"); got != 2 {
		t.Errorf("CreateFramebuffer called %d times, want 2", got)
	}
	if got := dev.Count("CreateTexture"); got != 2 {
		t.Errorf("CreateTexture called %d times, want 2", got)
	}
}

func TestRedundantBindsElided(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	b := batch.New("main")
	for range 3 {
		s.setup(b)
		b.Draw(batch.Triangles, 3, 0)
	}
	render(t, e, false, b)

	tests := []struct {
		op   string
		want int
	}{
		{"BindPipeline", 1},
		{"BindVertexBuffer", 1},
		{"SetViewport", 1},
		{"Draw", 3},
	}
	for _, tt := range tests {
		if got := dev.Count(tt.op); got != tt.want {
			t.Errorf("%s called %d times, want %d", tt.op, got, tt.want)
		}
	}
	// two pipeline and two buffer rebinds, three viewports equal to the frame's
	if got := e.Stats().ElidedCalls; got != 7 {
		t.Errorf("ElidedCalls = %d, want 7", got)
	}
}

func TestReplayDeterminism(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	other := resource.NewBuffer("uniforms", gputypes.BufferUsageUniform, make([]byte, 64))

	b := batch.New("main")
	s.setup(b)
	b.SetUniformBuffer(0, other, 0, 0)
	b.SetStateBlendFactor(mgl32.Vec4{1, 1, 1, 1})
	b.Draw(batch.Triangles, 3, 0)
	b.ClearFramebuffer(batch.ClearColor0|batch.ClearDepth, mgl32.Vec4{0, 0, 0, 1}, 1, 0, false)
	b.SetModelTransform(mgl32.Translate3D(1, 2, 3))
	b.DrawIndexed(batch.Triangles, 6, 0)

	// Warm up the mirrors so both measured replays see the same objects.
	render(t, e, false, b)

	replayOnce := func() []trace.Call {
		dev.ClearState()
		e.SyncCache()
		dev.Reset()
		render(t, e, false, b)
		return dev.Calls()
	}
	first := replayOnce()
	second := replayOnce()

	if len(first) == 0 {
		t.Fatal("no calls recorded")
	}
	if !slices.Equal(first, second) {
		t.Errorf("call logs differ:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestSyncCacheReadsDeviceState(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	b := s.batch("main", 1)
	render(t, e, false, b)

	// Foreign native calls unbound everything behind the engine's back.
	dev.ClearState()
	e.SyncCache()
	dev.Reset()
	render(t, e, false, b)

	if got := dev.Count("BindPipeline"); got != 1 {
		t.Errorf("BindPipeline called %d times after SyncCache, want 1", got)
	}
}

func TestTrashSafety(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()

	b := batch.New("main")
	s.setup(b)
	b.Draw(batch.Triangles, 3, 0)
	b.RunLambda(func() { e.Forget(s.vertices) })
	b.Draw(batch.Triangles, 3, 0)
	render(t, e, false, b)

	if got := dev.Count("Draw"); got != 2 {
		t.Fatalf("Draw called %d times, want 2", got)
	}
	if got := e.Stats().SkippedDraws; got != 0 {
		t.Fatalf("SkippedDraws = %d, want 0", got)
	}
	if got := dev.LiveOf(resource.KindBuffer); got != 1 {
		t.Fatalf("buffer destroyed before Recycle (live = %d)", got)
	}

	e.Recycle()
	if got := dev.LiveOf(resource.KindBuffer); got != 0 {
		t.Errorf("live buffers = %d after Recycle, want 0", got)
	}
	if got := e.Stats().Destroyed; got != 1 {
		t.Errorf("Destroyed = %d, want 1", got)
	}
}

func TestTrashFromOtherGoroutine(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	render(t, e, false, s.batch("main", 1))

	done := make(chan struct{})
	go func() {
		e.Forget(s.pipeline)
		close(done)
	}()
	<-done

	if got := e.Pending(); got != 1 {
		t.Fatalf("Pending = %d, want 1", got)
	}
	e.Recycle()
	if got := dev.LiveOf(resource.KindPipeline); got != 0 {
		t.Errorf("live pipelines = %d, want 0", got)
	}
}

func TestDeferRunsOnRecycle(t *testing.T) {
	e, _ := newEngine(t, nil)
	ran := 0
	e.Defer(func() { ran++ })
	if ran != 0 {
		t.Fatal("deferred function ran early")
	}
	e.Recycle()
	e.Recycle()
	if ran != 1 {
		t.Errorf("deferred function ran %d times, want 1", ran)
	}
}

func TestDrawWithoutPipelineSkipped(t *testing.T) {
	e, dev := newEngine(t, nil)
	b := batch.New("main")
	b.Draw(batch.Triangles, 3, 0)
	render(t, e, false, b)

	if got := dev.Count("Draw"); got != 0 {
		t.Errorf("Draw called %d times, want 0", got)
	}
	if got := e.Stats().SkippedDraws; got != 1 {
		t.Errorf("SkippedDraws = %d, want 1", got)
	}
}

func TestMirrorFailureRetried(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	b := s.batch("main", 1)

	dev.FailCreate(resource.KindPipeline, true)
	render(t, e, false, b)
	st := e.Stats()
	if st.MirrorFailures != 1 || st.SkippedDraws != 1 {
		t.Fatalf("MirrorFailures = %d, SkippedDraws = %d, want 1, 1", st.MirrorFailures, st.SkippedDraws)
	}

	dev.FailCreate(resource.KindPipeline, false)
	dev.Reset()
	render(t, e, false, b)
	if got := dev.Count("Draw"); got != 1 {
		t.Errorf("Draw called %d times after recovery, want 1", got)
	}
}

func TestDeviceErrorCountedAndReplayContinues(t *testing.T) {
	e, dev := newEngine(t, nil, replay.WithDebug(true))
	s := newScene()
	dev.FailCall("BindVertexBuffer", nil)
	render(t, e, false, s.batch("main", 2))

	if got := e.Stats().DeviceErrors; got != 1 {
		t.Errorf("DeviceErrors = %d, want 1", got)
	}
	if got := dev.Count("Draw"); got != 2 {
		t.Errorf("Draw called %d times, want 2", got)
	}
}

func TestRenderConsumesFrame(t *testing.T) {
	e, _ := newEngine(t, nil)
	f := frame(t, e, false, newScene().batch("main", 1))
	if err := e.Render(f); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.Render(f); !errors.Is(err, gfx.ErrFrameConsumed) {
		t.Errorf("second Render = %v, want ErrFrameConsumed", err)
	}
}

func TestSyncFrameCreatesMirrorsWithoutDrawing(t *testing.T) {
	e, dev := newEngine(t, nil)
	f := frame(t, e, false, newScene().batch("main", 1))
	if err := e.SyncFrame(f); err != nil {
		t.Fatalf("SyncFrame: %v", err)
	}
	if got := dev.Count("CreatePipeline"); got != 1 {
		t.Errorf("CreatePipeline called %d times, want 1", got)
	}
	if got := dev.Count("Draw") + dev.Count("Submit"); got != 0 {
		t.Errorf("SyncFrame issued %d draws or submits", got)
	}
	if err := e.Render(f); !errors.Is(err, gfx.ErrFrameConsumed) {
		t.Errorf("Render after SyncFrame = %v, want ErrFrameConsumed", err)
	}
}

func TestCloseDestroysEverything(t *testing.T) {
	dev := trace.New()
	e := replay.NewEngine(dev)
	render(t, e, false, newScene().batch("main", 1))

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := dev.Live(); got != 0 {
		t.Errorf("live objects after Close = %d, want 0", got)
	}
	if !dev.Closed() {
		t.Error("device not closed")
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := e.Render(frame(t, e, false)); !errors.Is(err, replay.ErrClosed) {
		t.Errorf("Render after Close = %v, want ErrClosed", err)
	}
}

func TestResolveTexture(t *testing.T) {
	e, _ := newEngine(t, nil)
	s := newScene()
	tex := resource.NewTexture2D("albedo", gputypes.TextureFormatRGBA8Unorm, 4, 4, resource.DefaultSampler())

	if _, ok := e.ResolveTexture(tex); ok {
		t.Fatal("ResolveTexture created a mirror")
	}
	b := s.batch("main", 0)
	b.SetResourceTexture(0, tex)
	b.Draw(batch.Triangles, 3, 0)
	render(t, e, false, b)

	h, ok := e.ResolveTexture(tex)
	if !ok {
		t.Fatal("ResolveTexture found no mirror after render")
	}
	if _, isObj := h.(*trace.Object); !isObj {
		t.Errorf("handle type %T, want *trace.Object", h)
	}
}

type gate map[*resource.Texture]bool

func (g gate) Pending(t *resource.Texture) bool { return g[t] }

func TestTextureGateHidesPendingTextures(t *testing.T) {
	tex := resource.NewTexture2D("streamed", gputypes.TextureFormatRGBA8Unorm, 4, 4, resource.DefaultSampler())
	g := gate{tex: true}
	e, dev := newEngine(t, nil, replay.WithTextureGate(g))
	s := newScene()
	b := s.batch("main", 0)
	b.SetResourceTexture(0, tex)
	b.Draw(batch.Triangles, 3, 0)

	render(t, e, false, b)
	if got := dev.Count("CreateTexture"); got != 0 {
		t.Fatalf("pending texture created (%d)", got)
	}
	if got := dev.Count("Draw"); got != 1 {
		t.Fatalf("Draw called %d times, want 1", got)
	}

	g[tex] = false
	render(t, e, false, b)
	if got := dev.Count("CreateTexture"); got != 1 {
		t.Errorf("CreateTexture called %d times once ready, want 1", got)
	}
}

func TestResetStagesUnbinds(t *testing.T) {
	e, dev := newEngine(t, nil)
	s := newScene()
	tex := resource.NewTexture2D("albedo", gputypes.TextureFormatRGBA8Unorm, 4, 4, resource.DefaultSampler())
	b := s.batch("main", 0)
	b.SetResourceTexture(2, tex)
	b.Draw(batch.Triangles, 3, 0)
	b.ResetStages()
	render(t, e, false, b)

	if got := dev.Count("BindTexture"); got != 2 {
		t.Errorf("BindTexture called %d times, want 2", got)
	}
	if got := dev.Count("BindVertexBuffer"); got != 2 {
		t.Errorf("BindVertexBuffer called %d times, want 2", got)
	}
	st := dev.ReadState()
	if st.Textures[2] != nil || st.VertexBuffers[0] != (replay.VertexBinding{}) {
		t.Errorf("bindings left after ResetStages: %+v", st)
	}
}

func TestProfileRangesOnlyInDebug(t *testing.T) {
	for _, debug := range []bool{false, true} {
		e, dev := newEngine(t, nil, replay.WithDebug(debug))
		b := batch.New("main")
		b.PushProfileRange("shadows")
		b.PopProfileRange()
		render(t, e, false, b)

		want := 0
		if debug {
			want = 1
		}
		if got := dev.Count("PushMarker"); got != want {
			t.Errorf("debug=%v: PushMarker called %d times, want %d", debug, got, want)
		}
		if got := dev.Markers(); got != 0 {
			t.Errorf("debug=%v: %d markers left open", debug, got)
		}
	}
}

func TestNamedCalls(t *testing.T) {
	e, _ := newEngine(t, nil)
	s := newScene()
	b := batch.New("main")
	s.setup(b)
	b.StartNamedCall("hud")
	b.Draw(batch.Triangles, 3, 0)
	b.Draw(batch.Triangles, 3, 0)
	b.StopNamedCall()
	b.Draw(batch.Triangles, 3, 0)
	render(t, e, false, b)

	named := e.Stats().NamedDraws
	if named["hud"] != 2 || len(named) != 1 {
		t.Errorf("NamedDraws = %v, want map[hud:2]", named)
	}
}

func TestTimerQuery(t *testing.T) {
	e, _ := newEngine(t, []trace.Option{trace.WithTimerQueries(true)})
	s := newScene()
	var got []*resource.Query
	q := resource.NewQuery("frame", func(q *resource.Query) { got = append(got, q) })

	b := batch.New("main")
	b.BeginQuery(q)
	s.setup(b)
	b.Draw(batch.Triangles, 3, 0)
	b.EndQuery(q)
	b.GetQuery(q)
	render(t, e, false, b)

	if len(got) != 1 || q.Results() != 1 {
		t.Fatalf("query callbacks = %d, results = %d, want 1, 1", len(got), q.Results())
	}
	if q.Elapsed() <= 0 {
		t.Errorf("Elapsed = %v, want > 0", q.Elapsed())
	}
}

func TestBlitToFrameFramebuffer(t *testing.T) {
	e, dev := newEngine(t, nil)
	src := resource.NewColorFramebuffer("scene", gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatUndefined, 32, 32)
	b := batch.New("post")
	b.Blit(src, batch.Rect{Width: 32, Height: 32}, nil, batch.Rect{Width: 64, Height: 64})
	render(t, e, false, b)

	if got := dev.Count("Blit"); got != 1 {
		t.Errorf("Blit called %d times, want 1", got)
	}
}

func BenchmarkReplayDispatch(b *testing.B) {
	dev := trace.New()
	e := replay.NewEngine(dev)
	s := newScene()
	rec := batch.New("bench")
	for i := range 256 {
		s.setup(rec)
		rec.SetModelTransform(mgl32.Translate3D(float32(i), 0, 0))
		rec.Draw(batch.Triangles, 3, 0)
	}
	rec.Seal()

	for b.Loop() {
		ctx, _ := gfx.NewContext(e)
		_ = ctx.BeginFrame(0)
		_ = ctx.AppendBatch(rec)
		f, _ := ctx.EndFrame()
		_ = e.Render(f)
		dev.Reset()
	}
}

func TestStatsReadableWhileRendering(t *testing.T) {
	e, _ := newEngine(t, nil)
	s := newScene()
	const frames = 20

	done := make(chan struct{})
	polled := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-done:
				polled <- n
				return
			default:
			}
			st := e.Stats()
			st.NamedDraws["poller"]++ // the snapshot is the caller's own
			n++
		}
	}()
	for range frames {
		render(t, e, false, s.batch("main", 1))
	}
	close(done)
	<-polled

	st := e.Stats()
	if st.Frames != frames || st.DrawCalls != frames {
		t.Errorf("Frames = %d, DrawCalls = %d; want %d each", st.Frames, st.DrawCalls, frames)
	}
	if _, ok := st.NamedDraws["poller"]; ok {
		t.Error("a caller's write to NamedDraws reached the engine")
	}
}
