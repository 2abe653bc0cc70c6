package main

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/gfx/resource"
)

// overlay is a checkered UI panel one meter in front of the user.
type overlay struct {
	tex *resource.Texture
}

func newOverlay(width, height uint32) *overlay {
	return &overlay{
		tex: resource.NewTexture2D("ui", gputypes.TextureFormatRGBA8Unorm, width, height, resource.DefaultSampler()),
	}
}

// pixels renders the panel image.
func (o *overlay) pixels() []byte {
	w, h := int(o.tex.Width()), int(o.tex.Height())
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	light := image.NewUniform(color.RGBA{220, 220, 230, 200})
	dark := image.NewUniform(color.RGBA{40, 40, 60, 200})
	const cell = 16
	for y := 0; y < h; y += cell {
		for x := 0; x < w; x += cell {
			src := dark
			if (x/cell+y/cell)%2 == 0 {
				src = light
			}
			draw.Draw(img, image.Rect(x, y, x+cell, y+cell), src, image.Point{}, draw.Src)
		}
	}
	return img.Pix
}

func (o *overlay) OverlayTexture() *resource.Texture { return o.tex }

func (o *overlay) OverlayTransform() mgl32.Mat4 {
	aspect := float32(o.tex.Width()) / float32(o.tex.Height())
	return mgl32.Translate3D(0, 0, -1).Mul4(mgl32.Scale3D(0.5*aspect, 0.5, 1))
}

func (o *overlay) Pointer() (*resource.Texture, mgl32.Mat4, bool) {
	return nil, mgl32.Mat4{}, false
}

func (o *overlay) Alpha() float32 { return 0.9 }
