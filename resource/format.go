// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Attribute is one vertex attribute.
type Attribute struct {
	// Slot is the input buffer slot the attribute is read from.
	Slot uint32
	// Location is the shader input location.
	Location uint32
	Format   gputypes.VertexFormat
	Offset   uint32
	// PerInstance advances the attribute once per instance.
	PerInstance bool
}

// Format describes the vertex layout consumed by a draw. Formats are
// immutable once created.
type Format struct {
	header
	attributes []Attribute
	key        string
}

// NewFormat creates a vertex format.
func NewFormat(label string, attrs ...Attribute) *Format {
	f := &Format{attributes: append([]Attribute(nil), attrs...)}
	f.init(label)
	var sb strings.Builder
	for _, a := range f.attributes {
		fmt.Fprintf(&sb, "%d:%d:%v:%d:%t;", a.Slot, a.Location, a.Format, a.Offset, a.PerInstance)
	}
	f.key = sb.String()
	return f
}

// Kind returns KindFormat.
func (f *Format) Kind() Kind { return KindFormat }

// Attributes returns the attributes. The slice must not be modified.
func (f *Format) Attributes() []Attribute { return f.attributes }

// Key returns a string that is equal for formats with equal layouts.
func (f *Format) Key() string { return f.key }

// Slots returns the number of input buffer slots the format reads.
func (f *Format) Slots() int {
	n := 0
	for _, a := range f.attributes {
		n = max(n, int(a.Slot)+1)
	}
	return n
}
