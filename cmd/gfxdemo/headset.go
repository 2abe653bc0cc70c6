package main

import (
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx/present"
	"github.com/gogpu/gfx/resource"
)

// headSim is a head slowly turning left and right, with the right hand
// pointing at the overlay.
type headSim struct {
	start    time.Time
	interval time.Duration

	mu        sync.Mutex
	submitted int
}

func newHeadSim(interval time.Duration) *headSim {
	return &headSim{start: time.Now(), interval: interval}
}

func (h *headSim) poseAt(t time.Duration) present.Pose {
	angle := 0.3 * math32.Sin(float32(t.Seconds()))
	return present.Pose{
		Orientation: mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0}),
		Position:    mgl32.Vec3{0, 1.6, 0},
	}
}

// PredictedPose predicts two frame intervals ahead.
func (h *headSim) PredictedPose(uint32) present.Pose {
	return h.poseAt(time.Since(h.start) + 2*h.interval)
}

func (h *headSim) CurrentPose() present.Pose {
	return h.poseAt(time.Since(h.start))
}

func (h *headSim) HandLasers() [2]present.Laser {
	var lasers [2]present.Laser
	lasers[present.HandRight] = present.Laser{
		Valid: true,
		Hand:  present.Pose{Orientation: mgl32.QuatIdent(), Position: mgl32.Vec3{0.2, 1.2, -0.3}},
		Color: mgl32.Vec4{0.2, 0.8, 1, 1},
	}
	return lasers
}

func (h *headSim) SubmitFrame(*resource.Texture, present.Pose) error {
	h.mu.Lock()
	h.submitted++
	h.mu.Unlock()
	return nil
}
