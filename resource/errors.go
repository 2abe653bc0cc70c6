// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import "errors"

var (
	// ErrSizeMismatch is returned when an attachment does not match the
	// framebuffer size.
	ErrSizeMismatch = errors.New("resource: attachment size mismatch")

	// ErrSlotOutOfRange is returned for an invalid attachment or mip slot.
	ErrSlotOutOfRange = errors.New("resource: slot out of range")

	// ErrUnsupportedFormat is returned when an operation cannot handle the
	// texture format.
	ErrUnsupportedFormat = errors.New("resource: unsupported texture format")
)

// ErrNoSource is returned when an operation needs source bytes that were
// never assigned.
var ErrNoSource = errors.New("resource: texture has no source data")
