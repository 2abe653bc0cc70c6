// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import "sync/atomic"

// ID identifies a resource for the lifetime of the process.
type ID uint64

// Stamp is a revision counter. It starts at 1 and grows every time the
// CPU-side description of a resource changes.
type Stamp = uint32

var nextID atomic.Uint64

func newID() ID { return ID(nextID.Add(1)) }

// Kind identifies the type of a resource.
type Kind uint8

const (
	KindBuffer Kind = iota
	KindTexture
	KindFramebuffer
	KindShader
	KindPipeline
	KindFormat
	KindQuery

	kindCount
)

// KindCount is the number of resource kinds.
const KindCount = int(kindCount)

var kindNames = [...]string{
	KindBuffer:      "Buffer",
	KindTexture:     "Texture",
	KindFramebuffer: "Framebuffer",
	KindShader:      "Shader",
	KindPipeline:    "Pipeline",
	KindFormat:      "Format",
	KindQuery:       "Query",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Object is implemented by every resource type.
type Object interface {
	ID() ID
	Stamp() Stamp
	Kind() Kind
	Label() string
}

// header carries the identity shared by all resources.
type header struct {
	id    ID
	stamp atomic.Uint32
	label string
}

func (h *header) init(label string) {
	h.id = newID()
	h.stamp.Store(1)
	h.label = label
}

// ID returns the process-unique identifier.
func (h *header) ID() ID { return h.id }

// Stamp returns the current revision.
func (h *header) Stamp() Stamp { return h.stamp.Load() }

// Label returns the debug label.
func (h *header) Label() string { return h.label }

func (h *header) touch() Stamp { return h.stamp.Add(1) }
