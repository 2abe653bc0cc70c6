// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

// Stage is one state of the present cycle.
type Stage int32

const (
	StageIdle Stage = iota
	StageAcquireSurface
	StageWaitForFrame
	// StageSkip is entered when no frame arrived in time; the surface is
	// cleared to the sentinel color.
	StageSkip
	StageExecute
	StageCompositeOverlay
	StageCompositePointer
	StageCompositeExtra
	StagePresentSurface
)

var stageNames = [...]string{
	StageIdle:             "Idle",
	StageAcquireSurface:   "AcquireSurface",
	StageWaitForFrame:     "WaitForFrame",
	StageSkip:             "Skip",
	StageExecute:          "Execute",
	StageCompositeOverlay: "CompositeOverlay",
	StageCompositePointer: "CompositePointer",
	StageCompositeExtra:   "CompositeExtra",
	StagePresentSurface:   "PresentSurface",
}

// String returns the stage name.
func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Unknown"
}
