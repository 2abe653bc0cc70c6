// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import "github.com/gogpu/gputypes"

// Buffer is a CPU-side byte buffer mirrored on the GPU as a vertex, index,
// uniform or storage buffer.
type Buffer struct {
	header
	usage gputypes.BufferUsage
	data  []byte
}

// NewBuffer creates a buffer holding a copy of data.
func NewBuffer(label string, usage gputypes.BufferUsage, data []byte) *Buffer {
	b := &Buffer{usage: usage}
	b.init(label)
	if len(data) > 0 {
		b.data = append([]byte(nil), data...)
	}
	return b
}

// Kind returns KindBuffer.
func (b *Buffer) Kind() Kind { return KindBuffer }

// Usage returns the usage flags the GPU buffer is created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Size returns the size in bytes.
func (b *Buffer) Size() int { return len(b.data) }

// Bytes returns the buffer contents. The slice is owned by the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// SetData replaces the contents with a copy of data.
func (b *Buffer) SetData(data []byte) Stamp {
	b.data = append(b.data[:0], data...)
	return b.touch()
}

// SetSubData copies data at offset, growing the buffer if needed.
func (b *Buffer) SetSubData(offset int, data []byte) Stamp {
	if end := offset + len(data); end > len(b.data) {
		b.grow(end)
	}
	copy(b.data[offset:], data)
	return b.touch()
}

// Append adds data at the end of the buffer and returns the offset it was
// written at.
func (b *Buffer) Append(data []byte) int {
	off := len(b.data)
	b.data = append(b.data, data...)
	b.touch()
	return off
}

// Resize changes the size. New bytes are zero.
func (b *Buffer) Resize(size int) Stamp {
	if size <= len(b.data) {
		b.data = b.data[:size]
	} else {
		b.grow(size)
	}
	return b.touch()
}

func (b *Buffer) grow(size int) {
	if size <= cap(b.data) {
		old := len(b.data)
		b.data = b.data[:size]
		clear(b.data[old:])
		return
	}
	nd := make([]byte, size)
	copy(nd, b.data)
	b.data = nd
}
