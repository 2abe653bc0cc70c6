// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import "github.com/gogpu/gputypes"

// Sampler describes how a texture is filtered and addressed.
type Sampler struct {
	MinFilter     gputypes.FilterMode
	MagFilter     gputypes.FilterMode
	MipFilter     gputypes.FilterMode
	WrapU         gputypes.AddressMode
	WrapV         gputypes.AddressMode
	WrapW         gputypes.AddressMode
	MaxAnisotropy uint16
}

// DefaultSampler returns a trilinear, clamp-to-edge sampler.
func DefaultSampler() Sampler {
	return Sampler{
		MinFilter:     gputypes.FilterModeLinear,
		MagFilter:     gputypes.FilterModeLinear,
		MipFilter:     gputypes.FilterModeLinear,
		WrapU:         gputypes.AddressModeClampToEdge,
		WrapV:         gputypes.AddressModeClampToEdge,
		WrapW:         gputypes.AddressModeClampToEdge,
		MaxAnisotropy: 1,
	}
}

// RepeatSampler returns a trilinear sampler that wraps in every direction.
func RepeatSampler() Sampler {
	s := DefaultSampler()
	s.WrapU = gputypes.AddressModeRepeat
	s.WrapV = gputypes.AddressModeRepeat
	s.WrapW = gputypes.AddressModeRepeat
	return s
}
