package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Resize scales img to exactly width x height pixels with the Catmull-Rom
// cubic filter (bicubic, a = -0.5). The aspect ratio is not preserved; callers
// pick the target size.
//
// The result always has its origin at (0,0). The filter output depends only on
// the source pixels and the target size, so repeated calls are bit-identical.
func Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size: %dx%d", width, height)
	}
	return imaging.Resize(img, width, height, imaging.CatmullRom), nil
}
