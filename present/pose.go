// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx/resource"
)

// Pose is a rigid head or hand transform in tracking space.
type Pose struct {
	Orientation mgl32.Quat
	Position    mgl32.Vec3
}

// IdentityPose returns the pose at the origin looking down -Z.
func IdentityPose() Pose { return Pose{Orientation: mgl32.QuatIdent()} }

// PoseFromMat4 extracts the rotation and translation of a rigid transform.
func PoseFromMat4(m mgl32.Mat4) Pose {
	return Pose{Orientation: mgl32.Mat4ToQuat(m).Normalize(), Position: m.Col(3).Vec3()}
}

// Mat4 returns the pose-to-world matrix. A zero orientation reads as
// identity.
func (p Pose) Mat4() mgl32.Mat4 {
	q := p.Orientation
	if q == (mgl32.Quat{}) {
		q = mgl32.QuatIdent()
	}
	return mgl32.Translate3D(p.Position.Elem()).Mul4(q.Mat4())
}

// Laser is the pointing ray of one hand controller.
type Laser struct {
	// Valid is false when the hand has no active laser. Invalid lasers
	// cost nothing per frame.
	Valid bool
	Hand  Pose
	// Direction is the ray direction in hand space. Zero means -Z.
	Direction mgl32.Vec3
	Color     mgl32.Vec4
}

// Hands.
const (
	HandLeft = iota
	HandRight
)

// PoseSource is the VR runtime side of the HMD plugin. Its methods may be
// called from the present goroutine and from producers.
type PoseSource interface {
	// PredictedPose returns the head pose predicted for the display time
	// of a frame.
	PredictedPose(frameIndex uint32) Pose

	// CurrentPose returns the latest tracked head pose.
	CurrentPose() Pose

	// HandLasers returns the laser state of both hands.
	HandLasers() [2]Laser
}

// FrameSubmitter is implemented by pose sources that also accept the
// finished eye image, paired with the pose it was rendered for.
type FrameSubmitter interface {
	SubmitFrame(color *resource.Texture, renderPose Pose) error
}

// reprojectionEpsilon is the smallest rotation, in radians, that is warped.
const reprojectionEpsilon = 1e-5

// Reprojection returns the rotation that maps the image rendered at pose
// render onto the view from pose present: the rotational part of
// present⁻¹·render. Translation is ignored. Equal orientations, or ones
// closer than a small epsilon, yield exactly the identity.
func Reprojection(render, present Pose) mgl32.Mat4 {
	if render.Orientation == present.Orientation {
		return mgl32.Ident4()
	}
	q := present.Orientation.Normalize().Inverse().Mul(render.Orientation.Normalize()).Normalize()
	angle := 2 * math32.Acos(min(math32.Abs(q.W), 1))
	if angle < reprojectionEpsilon {
		return mgl32.Ident4()
	}
	return q.Mat4()
}

var negZ = mgl32.Vec3{0, 0, -1}

// laserEpsilon bounds how far a rotated direction may drift from unit
// length before it is renormalized.
const laserEpsilon = 1e-4

// laserModel returns the model matrix of a laser that ends where it hits
// the sphere at center with the given radius. ok is false when the ray
// misses.
func laserModel(l Laser, center mgl32.Vec3, radius float32) (model mgl32.Mat4, ok bool) {
	dir := l.Direction
	if dir.Dot(dir) == 0 {
		dir = negZ
	}
	hand := l.Hand.Orientation
	if hand == (mgl32.Quat{}) {
		hand = mgl32.QuatIdent()
	}
	cast := hand.Rotate(dir)
	if math32.Abs(cast.Dot(cast)-1) > laserEpsilon {
		cast = cast.Normalize()
	}
	dist, ok := intersectRaySphere(l.Hand.Position, cast, center, radius)
	if !ok {
		return mgl32.Mat4{}, false
	}
	model = l.Hand.Mat4()
	if dir != negZ {
		model = model.Mul4(mgl32.QuatBetweenVectors(negZ, dir.Normalize()).Mat4())
	}
	return model.Mul4(mgl32.Scale3D(dist, dist, dist)), true
}

// intersectRaySphere returns the distance along the unit direction dir
// from origin to the sphere surface. From inside the sphere it returns the
// exit distance.
func intersectRaySphere(origin, dir, center mgl32.Vec3, radius float32) (float32, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	s := math32.Sqrt(disc)
	t := -b - s
	if t <= 0 {
		t = -b + s
	}
	if t <= 0 {
		return 0, false
	}
	return t, true
}
