package batch

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Param is one cell of the scalar parameter pool.
type Param uint64

// Uint makes a Param from a uint32.
func Uint(v uint32) Param { return Param(v) }

// Int makes a Param from an int32.
func Int(v int32) Param { return Param(uint32(v)) }

// Float makes a Param from a float32.
func Float(v float32) Param { return Param(math.Float32bits(v)) }

// Size makes a Param from a byte size or offset.
func Size(v uint64) Param { return Param(v) }

// Bool makes a Param from a bool.
func Bool(v bool) Param {
	if v {
		return 1
	}
	return 0
}

// Uint returns the param as uint32.
func (p Param) Uint() uint32 { return uint32(p) }

// Int returns the param as int32.
func (p Param) Int() int32 { return int32(uint32(p)) }

// Float returns the param as float32.
func (p Param) Float() float32 { return math.Float32frombits(uint32(p)) }

// Size returns the param as a byte size or offset.
func (p Param) Size() uint64 { return uint64(p) }

// Bool returns the param as bool.
func (p Param) Bool() bool { return p != 0 }

// Rect is an integer rectangle used for viewports, scissors and blits.
type Rect struct {
	X, Y          int32
	Width, Height int32
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Blob sizes in the data pool.
const (
	mat4Size = 16 * 4
	vec4Size = 4 * 4
	rectSize = 4 * 4
)

var le = binary.LittleEndian

func putMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		le.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func getMat4(src []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(le.Uint32(src[i*4:]))
	}
	return m
}

func putVec4(dst []byte, v mgl32.Vec4) {
	for i, f := range v {
		le.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func getVec4(src []byte) mgl32.Vec4 {
	var v mgl32.Vec4
	for i := range v {
		v[i] = math.Float32frombits(le.Uint32(src[i*4:]))
	}
	return v
}

func putRect(dst []byte, r Rect) {
	le.PutUint32(dst[0:], uint32(r.X))
	le.PutUint32(dst[4:], uint32(r.Y))
	le.PutUint32(dst[8:], uint32(r.Width))
	le.PutUint32(dst[12:], uint32(r.Height))
}

func getRect(src []byte) Rect {
	return Rect{
		X:      int32(le.Uint32(src[0:])),
		Y:      int32(le.Uint32(src[4:])),
		Width:  int32(le.Uint32(src[8:])),
		Height: int32(le.Uint32(src[12:])),
	}
}
