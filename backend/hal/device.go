// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halbackend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan backend

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/cache"
	"github.com/gogpu/gfx/replay"
	"github.com/gogpu/gfx/resource"
)

// Errors reported by the hal device.
var (
	// ErrNoProvider is returned by NewFromProvider when the provider does
	// not expose hal objects.
	ErrNoProvider = errors.New("halbackend: provider does not expose HAL device and queue")

	// ErrNoAdapter is returned by Open when no GPU adapter is found.
	ErrNoAdapter = errors.New("halbackend: no GPU adapter")

	errUnsupported = fmt.Errorf("halbackend: %w", errors.ErrUnsupported)
)

const (
	defaultTargetWidth  = 1280
	defaultTargetHeight = 720
	maxFramesInFlight   = 2

	// halUniformSlots and friends are the slots of the shared bind group
	// layout. Higher slots are rejected.
	halUniformSlots = 4
	halStorageSlots = 2
	halTextureSlots = 4

	// transformSize is one Transform record; transformStride keeps records
	// at the uniform offset alignment.
	transformSize   = 5 * 64
	transformStride = 512

	defaultMaxTextureSize = 8192

	bindGroupCacheSize = 128
	pipelineCacheSize  = 64
)

func init() {
	gfx.Register(gfx.BackendHAL, func(cfg gfx.Config) (gfx.Backend, error) {
		d, err := Open()
		if err != nil {
			return nil, err
		}
		return replay.NewEngine(d, replay.ConfigOptions(cfg)...), nil
	})
}

// Option configures a Device.
type Option func(*Device)

// WithStereo sets the stereo technique reported to the engine.
func WithStereo(m gfx.StereoMode) Option {
	return func(d *Device) { d.caps.Stereo = m }
}

// WithTargetSize sets the size of the offscreen default target.
func WithTargetSize(width, height uint32) Option {
	return func(d *Device) { d.targetW, d.targetH = max(width, 1), max(height, 1) }
}

// WithTargetFormat sets the color format of the default target.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(d *Device) { d.targetFormat = f }
}

// Device is a replay.Device over a hal device and queue. Like every
// replay.Device it must be used from one goroutine.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // set when the Device opened its own adapter
	owned    bool

	caps         gfx.Capabilities
	targetFormat gputypes.TextureFormat
	targetW      uint32
	targetH      uint32
	target       *halFramebuffer
	ownedTarget  *halTexture

	layouts    bindLayouts
	dummyBuf   hal.Buffer
	dummyTex   *halTexture
	pipelines  *cache.Cache[pipelineKey, hal.RenderPipeline]
	bindGroups *cache.Cache[bindKey, hal.BindGroup]

	transforms transformRing

	state replay.DeviceState
	fb    *halFramebuffer
	enc   frameEncoder

	// garbage is destroyed once the next submission has finished on the GPU.
	garbage  []func()
	inflight []submission
	closed   bool
}

// submission is a command buffer in flight and the objects released while
// it was recorded.
type submission struct {
	index   uint64
	cmd     hal.CommandBuffer
	garbage []func()
}

var _ replay.Device = (*Device)(nil)

// New creates a Device on an existing hal device and queue. The caller
// keeps ownership of both.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNoProvider
	}
	d := &Device{
		device: device,
		queue:  queue,
		caps: gfx.Capabilities{
			Name:           gfx.BackendHAL,
			Stereo:         gfx.StereoInstanced,
			MaxTextureSize: defaultMaxTextureSize,
		},
		targetFormat: gputypes.TextureFormatBGRA8Unorm,
		targetW:      defaultTargetWidth,
		targetH:      defaultTargetHeight,
		state:        replay.InitialState(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.init(); err != nil {
		d.release()
		return nil, err
	}
	gfx.Logger().Info("halbackend: device ready",
		"target", fmt.Sprintf("%dx%d", d.targetW, d.targetH), "stereo", d.caps.Stereo)
	return d, nil
}

// NewFromProvider creates a Device on the device of a host application.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The default target uses the provider's surface
// format unless an option overrides it.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoProvider)
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithTargetFormat(f)}, opts...)
	}
	return New(device, queue, opts...)
}

// Open creates a Device on its own Vulkan adapter, preferring a discrete or
// integrated GPU.
func Open(opts ...Option) (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("halbackend: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("halbackend: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("halbackend: open device: %w", err)
	}
	d, err := New(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	gfx.Logger().Info("halbackend: opened adapter", "adapter", selected.Info.Name)
	return d, nil
}

func (d *Device) init() error {
	if err := d.layouts.create(d.device); err != nil {
		return err
	}

	var err error
	d.dummyBuf, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gfx_dummy_uniform",
		Size:  256,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("halbackend: create dummy buffer: %w", err)
	}
	d.dummyTex, err = d.newTexture("gfx_dummy_texture", textureSpec{
		format: gputypes.TextureFormatRGBA8Unorm, width: 1, height: 1, layers: 1, levels: 1,
		usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	if err := d.writeTexture(d.dummyTex, 0, 0, []byte{255, 255, 255, 255}); err != nil {
		return err
	}

	d.ownedTarget, err = d.newTexture("gfx_default_target", textureSpec{
		format: d.targetFormat, width: d.targetW, height: d.targetH, layers: 1, levels: 1,
		usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}
	d.target = &halFramebuffer{
		label:  "default",
		colors: []*halTexture{d.ownedTarget},
		width:  d.targetW,
		height: d.targetH,
	}

	d.pipelines = cache.New[pipelineKey, hal.RenderPipeline](pipelineCacheSize)
	d.pipelines.OnEvict(func(_ pipelineKey, p hal.RenderPipeline) {
		d.later(func() { d.device.DestroyRenderPipeline(p) })
	})
	d.bindGroups = cache.New[bindKey, hal.BindGroup](bindGroupCacheSize)
	d.bindGroups.OnEvict(func(_ bindKey, bg hal.BindGroup) {
		d.later(func() { d.device.DestroyBindGroup(bg) })
	})
	return nil
}

// Capabilities implements replay.Device.
func (d *Device) Capabilities() gfx.Capabilities { return d.caps }

// SetTarget replaces the default framebuffer with an external color view,
// typically the current surface texture. A nil view restores the offscreen
// target.
func (d *Device) SetTarget(view hal.TextureView, format gputypes.TextureFormat, width, height uint32) {
	d.endPass()
	if view == nil {
		d.target = &halFramebuffer{label: "default", colors: []*halTexture{d.ownedTarget},
			width: d.targetW, height: d.targetH}
		return
	}
	tex := &halTexture{label: "surface", view: view, format: format, width: width, height: height,
		layers: 1, levels: 1, external: true}
	d.target = &halFramebuffer{label: "surface", colors: []*halTexture{tex}, width: width, height: height}
}

// Target returns the texture and view of the offscreen default target.
func (d *Device) Target() (hal.Texture, hal.TextureView) {
	return d.ownedTarget.tex, d.ownedTarget.view
}

// HalDevice returns the underlying hal device.
func (d *Device) HalDevice() hal.Device { return d.device }

// CreateBuffer implements replay.Device.
func (d *Device) CreateBuffer(b *resource.Buffer) (replay.Handle, error) {
	size := alignUp(uint64(max(b.Size(), 4)), 4)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.Label(),
		Size:  size,
		Usage: b.Usage() | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halbackend: create buffer %q: %w", b.Label(), err)
	}
	if data := b.Bytes(); len(data) > 0 {
		if err := d.queue.WriteBuffer(buf, 0, padded(data)); err != nil {
			d.device.DestroyBuffer(buf)
			return nil, fmt.Errorf("halbackend: upload buffer %q: %w", b.Label(), err)
		}
	}
	return &halBuffer{label: b.Label(), buf: buf, size: size}, nil
}

// CreateTexture implements replay.Device.
func (d *Device) CreateTexture(t *resource.Texture) (replay.Handle, error) {
	if m := d.caps.MaxTextureSize; t.Width() > m || t.Height() > m {
		return nil, fmt.Errorf("halbackend: texture %q exceeds %d", t.Label(), m)
	}
	layers := t.Layers()
	if t.Type() == resource.Texture3D {
		layers = t.Depth()
	}
	tex, err := d.newTexture(t.Label(), textureSpec{
		format: t.Format(), width: t.Width(), height: t.Height(), layers: layers,
		levels: t.MipLevels(), usage: t.Usage() | gputypes.TextureUsageCopyDst,
		volume: t.Type() == resource.Texture3D,
	})
	if err != nil {
		return nil, err
	}
	if bpp := resource.BytesPerPixel(t.Format()); bpp > 0 {
		for layer := range t.Layers() {
			for level := range t.MipLevels() {
				data := t.Mip(level, layer)
				if data == nil {
					continue
				}
				if err := d.writeTexture(tex, level, layer, data); err != nil {
					d.destroyTexture(tex)
					return nil, err
				}
			}
		}
	}
	return tex, nil
}

// CreateFramebuffer implements replay.Device.
func (d *Device) CreateFramebuffer(fb *resource.Framebuffer, colors []replay.Handle, depth replay.Handle) (replay.Handle, error) {
	h := &halFramebuffer{label: fb.Label(), width: fb.Width(), height: fb.Height()}
	for i, c := range colors {
		if c == nil {
			continue
		}
		tex, ok := c.(*halTexture)
		if !ok || tex.depth() {
			return nil, fmt.Errorf("halbackend: framebuffer %q: color %d is not a color texture", fb.Label(), i)
		}
		h.colors = append(h.colors, tex)
	}
	if depth != nil {
		tex, ok := depth.(*halTexture)
		if !ok || !tex.depth() {
			return nil, fmt.Errorf("halbackend: framebuffer %q: depth attachment is not a depth texture", fb.Label())
		}
		h.depthTex = tex
	}
	if len(h.colors) == 0 && h.depthTex == nil {
		return nil, fmt.Errorf("halbackend: framebuffer %q has no attachments", fb.Label())
	}
	return h, nil
}

// CreateShader implements replay.Device.
func (d *Device) CreateShader(s *resource.Shader) (replay.Handle, error) {
	spirv, err := compileWGSL(s.Source())
	if err != nil {
		return nil, fmt.Errorf("halbackend: shader %q: %w", s.Label(), err)
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  s.Label(),
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("halbackend: create shader module %q: %w", s.Label(), err)
	}
	return &halShader{label: s.Label(), module: module, vertex: s.VertexEntry(), fragment: s.FragmentEntry()}, nil
}

// CreatePipeline implements replay.Device. The native pipeline is built at
// the first draw, once the vertex format and target formats are known.
func (d *Device) CreatePipeline(p *resource.Pipeline, shader replay.Handle) (replay.Handle, error) {
	s, ok := shader.(*halShader)
	if !ok || s == nil {
		return nil, fmt.Errorf("halbackend: pipeline %q: shader is not a hal shader", p.Label())
	}
	return &halPipeline{label: p.Label(), shader: s, state: p.State()}, nil
}

// CreateQuery implements replay.Device. Queries carry no native object;
// the engine falls back to CPU timing.
func (d *Device) CreateQuery(q *resource.Query) (replay.Handle, error) {
	return &halQuery{label: q.Label()}, nil
}

// Destroy implements replay.Device. Native objects are released after the
// next Submit so in-flight command buffers stay valid.
func (d *Device) Destroy(kind resource.Kind, h replay.Handle) {
	switch v := h.(type) {
	case *halBuffer:
		d.dropBindGroups(func(k bindKey) bool { return k.usesBuffer(v) })
		d.later(func() { d.device.DestroyBuffer(v.buf) })
	case *halTexture:
		d.dropBindGroups(func(k bindKey) bool { return k.usesTexture(v) })
		d.later(func() { d.destroyTexture(v) })
	case *halShader:
		d.later(func() { d.device.DestroyShaderModule(v.module) })
	case *halPipeline:
		d.pipelines.DeleteFunc(func(k pipelineKey, _ hal.RenderPipeline) bool { return k.pipeline == v })
	case *halFramebuffer, *halQuery, nil:
	default:
		gfx.Logger().Warn("halbackend: destroy of foreign handle", "kind", kind, "handle", fmt.Sprintf("%T", h))
	}
	if fb, ok := h.(*halFramebuffer); ok && fb == d.fb {
		d.endPass()
		d.fb = nil
	}
}

// ReadState implements replay.Device.
func (d *Device) ReadState() replay.DeviceState { return d.state }

// Compact implements replay.Device. Cached bind groups are rebuilt on
// demand.
func (d *Device) Compact() {
	d.bindGroups.Purge()
	d.transforms.shrink(d)
}

// Close implements replay.Device.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.enc.discard()
	d.pipelines.Purge()
	d.bindGroups.Purge()
	d.release()
	return nil
}

func (d *Device) release() {
	if err := d.waitIdle(); err != nil {
		gfx.Logger().Warn("halbackend: wait for idle on close", "err", err)
	}
	d.transforms.release(d)
	if d.ownedTarget != nil {
		d.destroyTexture(d.ownedTarget)
	}
	if d.dummyTex != nil {
		d.destroyTexture(d.dummyTex)
	}
	if d.dummyBuf != nil {
		d.device.DestroyBuffer(d.dummyBuf)
	}
	d.layouts.destroy(d.device)
	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
}

func (d *Device) later(fn func()) { d.garbage = append(d.garbage, fn) }

// retire hands the garbage of the frame to the submission with the given
// index and releases every submission the GPU has completed. A nil cmd
// means nothing was submitted; the garbage then waits for the newest
// submission still in flight.
func (d *Device) retire(index uint64, cmd hal.CommandBuffer) {
	g := d.garbage
	d.garbage = nil
	switch {
	case cmd != nil:
		d.inflight = append(d.inflight, submission{index: index, cmd: cmd, garbage: g})
	case len(d.inflight) > 0:
		last := &d.inflight[len(d.inflight)-1]
		last.garbage = append(last.garbage, g...)
	default:
		runAll(g)
	}
	d.collect(d.queue.PollCompleted())
}

// collect releases the submissions up to and including index done.
func (d *Device) collect(done uint64) {
	n := 0
	for ; n < len(d.inflight) && d.inflight[n].index <= done; n++ {
		s := d.inflight[n]
		d.device.FreeCommandBuffer(s.cmd)
		runAll(s.garbage)
	}
	d.inflight = append(d.inflight[:0], d.inflight[n:]...)
}

// waitIdle blocks until the GPU has finished all submitted work and
// releases everything pending.
func (d *Device) waitIdle() error {
	err := d.device.WaitIdle()
	if err != nil {
		err = fmt.Errorf("halbackend: wait idle: %w", err)
	}
	d.collect(^uint64(0))
	g := d.garbage
	d.garbage = nil
	runAll(g)
	return err
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

func alignUp(n, a uint64) uint64 { return (n + a - 1) &^ (a - 1) }

// padded returns data extended to a multiple of four bytes, as queue
// writes require.
func padded(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	out := make([]byte, alignUp(uint64(len(data)), 4))
	copy(out, data)
	return out
}
