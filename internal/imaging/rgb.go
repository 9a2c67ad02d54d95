package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/fcolor"
	"github.com/disintegration/imaging"
)

// HasAlpha reports whether img contains at least one pixel that is not fully
// opaque. Images whose type cannot answer the question are assumed to have
// alpha.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// ToRGB returns img with every pixel made opaque.
//
// Transparent and translucent pixels are alpha-composited onto background,
// which must itself be opaque; the result is then an *image.RGBA with its
// origin at (0,0). Images that are already opaque are returned as they are.
func ToRGB(img image.Image, background color.Color) image.Image {
	if !HasAlpha(img) {
		return img
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), background)
	return blend.Blend(canvas, img, over)
}

// halfStep turns blend's truncating 8-bit conversion into rounding.
const halfStep = 0.5 / 255

// over is the Porter-Duff source-over operator. blend hands both colours over
// alpha-premultiplied, so the foreground colour already carries its alpha.
func over(bg, fg fcolor.RGBAF64) fcolor.RGBAF64 {
	k := 1 - fg.A
	return fcolor.RGBAF64{
		R: fg.R + k*bg.R + halfStep,
		G: fg.G + k*bg.G + halfStep,
		B: fg.B + k*bg.B + halfStep,
		A: 1,
	}
}
