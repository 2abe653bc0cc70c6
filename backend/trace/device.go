package trace

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/replay"
	"github.com/gogpu/gfx/resource"
)

// ErrInjected is returned by calls configured to fail with FailCall and no
// explicit error.
var ErrInjected = errors.New("trace: injected failure")

func init() {
	gfx.Register(gfx.BackendTrace, func(cfg gfx.Config) (gfx.Backend, error) {
		return replay.NewEngine(New(), replay.ConfigOptions(cfg)...), nil
	})
}

// Object is a native object created by the trace Device.
type Object struct {
	Kind  resource.Kind
	Seq   uint64
	Label string
	Stamp resource.Stamp
}

func (o *Object) String() string {
	if o == nil {
		return "nil"
	}
	return fmt.Sprintf("%s#%d", o.Kind, o.Seq)
}

// Call is one recorded device call.
type Call struct {
	Op   string
	Args string
}

func (c Call) String() string {
	if c.Args == "" {
		return c.Op
	}
	return c.Op + " " + c.Args
}

// Device records calls. It is safe for concurrent inspection while the
// engine replays.
type Device struct {
	mu sync.Mutex

	caps       gfx.Capabilities
	calls      []Call
	draws      []replay.DrawCall
	state      replay.DeviceState
	transforms []replay.TransformObject
	live       map[*Object]struct{}
	seq        uint64
	markers    int
	queries    map[*Object]int64
	failCreate map[resource.Kind]bool
	failCalls  map[string]error
	closed     bool
}

var _ replay.Device = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithStereo sets the stereo technique the device reports.
func WithStereo(m gfx.StereoMode) Option {
	return func(d *Device) { d.caps.Stereo = m }
}

// WithTimerQueries makes queries report elapsed GPU time.
func WithTimerQueries(enabled bool) Option {
	return func(d *Device) { d.caps.TimerQueries = enabled }
}

// New creates a trace Device. It reports instanced stereo by default.
func New(opts ...Option) *Device {
	d := &Device{
		caps: gfx.Capabilities{
			Name:           gfx.BackendTrace,
			Stereo:         gfx.StereoInstanced,
			MaxTextureSize: 16384,
		},
		state:      replay.InitialState(),
		live:       make(map[*Object]struct{}),
		queries:    make(map[*Object]int64),
		failCreate: make(map[resource.Kind]bool),
		failCalls:  make(map[string]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Capabilities implements replay.Device.
func (d *Device) Capabilities() gfx.Capabilities { return d.caps }

func (d *Device) record(op string, args ...any) error {
	c := Call{Op: op}
	if len(args) > 0 {
		c.Args = fmt.Sprint(args...)
	}
	d.calls = append(d.calls, c)
	if err, ok := d.failCalls[op]; ok {
		return err
	}
	return nil
}

func (d *Device) create(kind resource.Kind, obj resource.Object) (replay.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failCreate[kind] {
		d.record("Create"+kind.String(), obj.Label(), " failed")
		return nil, fmt.Errorf("trace: create %s %q: %w", kind, obj.Label(), ErrInjected)
	}
	d.seq++
	o := &Object{Kind: kind, Seq: d.seq, Label: obj.Label(), Stamp: obj.Stamp()}
	d.live[o] = struct{}{}
	if err := d.record("Create"+kind.String(), o, " ", obj.Label()); err != nil {
		delete(d.live, o)
		return nil, err
	}
	return o, nil
}

// CreateBuffer implements replay.Device.
func (d *Device) CreateBuffer(b *resource.Buffer) (replay.Handle, error) {
	return d.create(resource.KindBuffer, b)
}

// CreateTexture implements replay.Device.
func (d *Device) CreateTexture(t *resource.Texture) (replay.Handle, error) {
	if m := d.caps.MaxTextureSize; t.Width() > m || t.Height() > m {
		return nil, fmt.Errorf("trace: texture %q exceeds %d", t.Label(), m)
	}
	return d.create(resource.KindTexture, t)
}

// CreateFramebuffer implements replay.Device.
func (d *Device) CreateFramebuffer(fb *resource.Framebuffer, colors []replay.Handle, depth replay.Handle) (replay.Handle, error) {
	for _, h := range colors {
		if h != nil && !d.IsLive(h) {
			return nil, fmt.Errorf("trace: framebuffer %q: attachment %v is not live", fb.Label(), h)
		}
	}
	return d.create(resource.KindFramebuffer, fb)
}

// CreateShader implements replay.Device.
func (d *Device) CreateShader(s *resource.Shader) (replay.Handle, error) {
	if s.Source() == "" {
		return nil, fmt.Errorf("trace: shader %q has no source", s.Label())
	}
	return d.create(resource.KindShader, s)
}

// CreatePipeline implements replay.Device.
func (d *Device) CreatePipeline(p *resource.Pipeline, shader replay.Handle) (replay.Handle, error) {
	if !d.IsLive(shader) {
		return nil, fmt.Errorf("trace: pipeline %q: shader is not live", p.Label())
	}
	return d.create(resource.KindPipeline, p)
}

// CreateQuery implements replay.Device.
func (d *Device) CreateQuery(q *resource.Query) (replay.Handle, error) {
	return d.create(resource.KindQuery, q)
}

// Destroy implements replay.Device.
func (d *Device) Destroy(kind resource.Kind, h replay.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, _ := h.(*Object)
	delete(d.live, o)
	_ = d.record("Destroy", o)
}

// ReadState implements replay.Device.
func (d *Device) ReadState() replay.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// UploadTransforms implements replay.Device.
func (d *Device) UploadTransforms(objects []replay.TransformObject) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transforms = append(d.transforms[:0], objects...)
	return d.record("UploadTransforms", len(objects))
}

func (d *Device) bind(op string, apply func(), args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(op, args...); err != nil {
		return err
	}
	apply()
	return nil
}

// BindFramebuffer implements replay.Device.
func (d *Device) BindFramebuffer(fb replay.Handle) error {
	return d.bind("BindFramebuffer", func() { d.state.Framebuffer = fb }, fb)
}

// BindPipeline implements replay.Device.
func (d *Device) BindPipeline(p replay.Handle) error {
	return d.bind("BindPipeline", func() { d.state.Pipeline = p }, p)
}

// BindFormat implements replay.Device.
func (d *Device) BindFormat(f *resource.Format) error {
	key := "nil"
	if f != nil {
		key = f.Key()
	}
	return d.bind("BindFormat", func() { d.state.Format = f }, key)
}

// BindVertexBuffer implements replay.Device.
func (d *Device) BindVertexBuffer(slot uint32, b replay.VertexBinding) error {
	return d.bind("BindVertexBuffer", func() { d.state.VertexBuffers[slot] = b },
		slot, " ", b.Buffer, " ", b.Offset, " ", b.Stride)
}

// BindIndexBuffer implements replay.Device.
func (d *Device) BindIndexBuffer(b replay.IndexBinding) error {
	return d.bind("BindIndexBuffer", func() { d.state.IndexBuffer = b }, b.Buffer, " ", b.Type, " ", b.Offset)
}

// BindUniformBuffer implements replay.Device.
func (d *Device) BindUniformBuffer(slot uint32, b replay.BufferBinding) error {
	return d.bind("BindUniformBuffer", func() { d.state.UniformBuffers[slot] = b },
		slot, " ", b.Buffer, " ", b.Offset, " ", b.Size)
}

// BindStorageBuffer implements replay.Device.
func (d *Device) BindStorageBuffer(slot uint32, b replay.Handle) error {
	return d.bind("BindStorageBuffer", func() { d.state.StorageBuffers[slot] = b }, slot, " ", b)
}

// BindTexture implements replay.Device.
func (d *Device) BindTexture(slot uint32, t replay.Handle) error {
	return d.bind("BindTexture", func() { d.state.Textures[slot] = t }, slot, " ", t)
}

// SetViewport implements replay.Device.
func (d *Device) SetViewport(r batch.Rect, depthRange [2]float32) error {
	return d.bind("SetViewport", func() {
		d.state.Viewport = r
		d.state.DepthRange = depthRange
	}, r, " ", depthRange)
}

// SetScissor implements replay.Device.
func (d *Device) SetScissor(r batch.Rect) error {
	return d.bind("SetScissor", func() { d.state.Scissor = r }, r)
}

// SetBlendConstant implements replay.Device.
func (d *Device) SetBlendConstant(c mgl32.Vec4) error {
	return d.bind("SetBlendConstant", func() { d.state.BlendConstant = c }, c)
}

// SetStencilReference implements replay.Device.
func (d *Device) SetStencilReference(ref uint32) error {
	return d.bind("SetStencilReference", func() { d.state.StencilRef = ref }, ref)
}

// Draw implements replay.Device.
func (d *Device) Draw(call replay.DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if call.Transform >= len(d.transforms) {
		_ = d.record("Draw", "transform ", call.Transform, " out of range")
		return fmt.Errorf("trace: draw references transform %d of %d", call.Transform, len(d.transforms))
	}
	d.draws = append(d.draws, call)
	return d.record("Draw", call.Primitive, " ", call.Count, " ", call.First,
		" x", call.Instances, " eye ", call.Eye, " t", call.Transform)
}

// Clear implements replay.Device.
func (d *Device) Clear(op replay.ClearOp) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("Clear", uint32(op.Masks), " ", op.Color, " ", op.Depth, " ", op.Stencil, " ", op.Scissor != nil)
}

// Blit implements replay.Device.
func (d *Device) Blit(src replay.Handle, srcRect batch.Rect, dst replay.Handle, dstRect batch.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("Blit", src, " ", srcRect, " ", dst, " ", dstRect)
}

// GenerateMips implements replay.Device.
func (d *Device) GenerateMips(t replay.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("GenerateMips", t)
}

// BeginQuery implements replay.Device.
func (d *Device) BeginQuery(q replay.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("BeginQuery", q)
}

// EndQuery implements replay.Device. With timer queries enabled the
// elapsed time is the number of draws recorded so far, in microseconds.
func (d *Device) EndQuery(q replay.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := q.(*Object); ok && d.caps.TimerQueries {
		d.queries[o] = int64(len(d.draws)) * 1000
	}
	return d.record("EndQuery", q)
}

// QueryResult implements replay.Device.
func (d *Device) QueryResult(q replay.Handle) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, _ := q.(*Object)
	nanos, ok := d.queries[o]
	delete(d.queries, o)
	return nanos, ok
}

// PushMarker implements replay.Device.
func (d *Device) PushMarker(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markers++
	_ = d.record("PushMarker", name)
}

// PopMarker implements replay.Device.
func (d *Device) PopMarker() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markers--
	_ = d.record("PopMarker")
}

// Submit implements replay.Device.
func (d *Device) Submit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("Submit")
}

// Compact implements replay.Device.
func (d *Device) Compact() {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("Compact")
}

// Close implements replay.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.record("Close")
}

// Inspection.

// Calls returns a copy of the call log.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Count returns how many logged calls have the given op.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Draws returns the draws recorded since the last Reset.
func (d *Device) Draws() []replay.DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]replay.DrawCall(nil), d.draws...)
}

// Transforms returns the last uploaded transform objects.
func (d *Device) Transforms() []replay.TransformObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]replay.TransformObject(nil), d.transforms...)
}

// Reset clears the call and draw logs. Live objects and bound state stay.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = d.calls[:0]
	d.draws = d.draws[:0]
}

// ClearState unbinds everything, as a fresh native context would.
func (d *Device) ClearState() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = replay.InitialState()
}

// Live returns the number of created, not yet destroyed objects.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// LiveOf returns the number of live objects of one kind.
func (d *Device) LiveOf(kind resource.Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for o := range d.live {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// IsLive reports whether h was created and not destroyed.
func (d *Device) IsLive(h replay.Handle) bool {
	o, ok := h.(*Object)
	if !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, live := d.live[o]
	return live
}

// Markers returns the open profile marker depth.
func (d *Device) Markers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.markers
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// FailCreate makes creation of kind fail until turned off.
func (d *Device) FailCreate(kind resource.Kind, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failCreate[kind] = fail
}

// FailCall makes every call with op return err, or ErrInjected when err
// is nil. The call is still logged.
func (d *Device) FailCall(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	d.failCalls[op] = err
}

// ClearFailures removes every injected failure.
func (d *Device) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.failCreate)
	clear(d.failCalls)
}

// WriteTo writes the call log, one call per line.
func (d *Device) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, c := range d.Calls() {
		m, err := fmt.Fprintln(w, c.String())
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
