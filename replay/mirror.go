package replay

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/resource"
)

var errAttachment = errors.New("replay: framebuffer attachment unavailable")

// depStamps are the stamps of the objects a mirror was built from: the
// attachments of a framebuffer, the shader of a pipeline.
type depStamps [resource.MaxColorAttachments + 1]resource.Stamp

// mirror is the native counterpart of a resource. A handle of nil with a
// zero stamp marks a failed creation that is retried on next use.
type mirror struct {
	handle Handle
	stamp  resource.Stamp
	deps   depStamps
}

// mirrorTable maps resource IDs to mirrors, one map per kind. The maps hold
// no reference to the resources; a runtime cleanup on each resource queues
// its mirror for destruction once the resource is unreachable.
type mirrorTable [resource.KindCount]map[resource.ID]*mirror

func newMirrorTable() mirrorTable {
	var t mirrorTable
	for i := range t {
		t[i] = make(map[resource.ID]*mirror)
	}
	return t
}

func (t *mirrorTable) count() int {
	n := 0
	for _, m := range t {
		n += len(m)
	}
	return n
}

// syncMirror returns the current mirror handle of p, creating or
// recreating it when absent or stale. It returns nil when creation fails.
func syncMirror[T any, P interface {
	*T
	resource.Object
}](e *Engine, p P, deps depStamps, create func(P) (Handle, error)) Handle {
	kind, id, stamp := p.Kind(), p.ID(), p.Stamp()
	table := e.mirrors[kind]
	m, ok := table[id]
	if ok && m.handle != nil && m.stamp == stamp && m.deps == deps {
		return m.handle
	}
	if !ok {
		m = &mirror{}
		table[id] = m
		runtime.AddCleanup((*T)(p), e.trash.orphan, orphanKey{kind: kind, id: id})
	}
	if m.handle != nil {
		// Stale: the old object may still be referenced by work already
		// encoded this frame.
		e.trash.push(kind, m.handle)
		m.handle = nil
		e.stats.MirrorRebuilds++
	}

	h, err := create(p)
	if err != nil || h == nil {
		m.stamp = 0
		e.stats.MirrorFailures++
		if err == nil {
			err = fmt.Errorf("replay: device returned no %s", kind)
		}
		gfx.Logger().Warn("replay: mirror creation failed",
			"kind", kind.String(), "label", p.Label(), "err", err)
		return nil
	}
	m.handle, m.stamp, m.deps = h, stamp, deps
	e.stats.MirrorCreates++
	gfx.Logger().Debug("replay: mirror created", "kind", kind.String(), "label", p.Label(), "stamp", stamp)
	return h
}

func (e *Engine) syncBuffer(b *resource.Buffer) Handle {
	if b == nil {
		return nil
	}
	return syncMirror(e, b, depStamps{}, e.dev.CreateBuffer)
}

func (e *Engine) syncTexture(t *resource.Texture) Handle {
	if t == nil {
		return nil
	}
	if e.gate != nil && e.gate.Pending(t) {
		return nil
	}
	return syncMirror(e, t, depStamps{}, e.dev.CreateTexture)
}

func (e *Engine) syncFramebuffer(fb *resource.Framebuffer) Handle {
	if fb == nil {
		return nil
	}
	return syncMirror(e, fb, fb.AttachmentStamps(), func(fb *resource.Framebuffer) (Handle, error) {
		colors := make([]Handle, resource.MaxColorAttachments)
		for i := range colors {
			tex := fb.RenderBuffer(i)
			if tex == nil {
				continue
			}
			if colors[i] = e.syncTexture(tex); colors[i] == nil {
				return nil, fmt.Errorf("%w: color %d %q", errAttachment, i, tex.Label())
			}
		}
		var depth Handle
		if ds := fb.DepthStencil(); ds != nil {
			if depth = e.syncTexture(ds); depth == nil {
				return nil, fmt.Errorf("%w: depth %q", errAttachment, ds.Label())
			}
		}
		return e.dev.CreateFramebuffer(fb, colors, depth)
	})
}

func (e *Engine) syncShader(s *resource.Shader) Handle {
	if s == nil {
		return nil
	}
	return syncMirror(e, s, depStamps{}, e.dev.CreateShader)
}

func (e *Engine) syncPipeline(p *resource.Pipeline) Handle {
	if p == nil {
		return nil
	}
	var deps depStamps
	if s := p.Shader(); s != nil {
		deps[0] = s.Stamp()
	}
	return syncMirror(e, p, deps, func(p *resource.Pipeline) (Handle, error) {
		shader := e.syncShader(p.Shader())
		if shader == nil {
			return nil, fmt.Errorf("replay: pipeline %q has no usable shader", p.Label())
		}
		return e.dev.CreatePipeline(p, shader)
	})
}

func (e *Engine) syncQuery(q *resource.Query) Handle {
	if q == nil {
		return nil
	}
	return syncMirror(e, q, depStamps{}, e.dev.CreateQuery)
}

// lookup returns an existing, current mirror without creating one.
func (e *Engine) lookup(obj resource.Object) (Handle, bool) {
	m, ok := e.mirrors[obj.Kind()][obj.ID()]
	if !ok || m.handle == nil || m.stamp != obj.Stamp() {
		return nil, false
	}
	return m.handle, true
}

// drop removes a mirror and queues its handle.
func (e *Engine) drop(kind resource.Kind, id resource.ID) bool {
	m, ok := e.mirrors[kind][id]
	if !ok {
		return false
	}
	delete(e.mirrors[kind], id)
	e.trash.push(kind, m.handle)
	return true
}
