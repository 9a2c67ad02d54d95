package multimodal

import "math"

// NumPatches returns the patch grid, (wide, tall), for a width x height image.
//
// When the longer edge exceeds MaxImageSize both edges are scaled down by the
// same ratio and rounded to whole pixels, so the longer edge lands exactly on
// MaxImageSize. Each edge is then quantized to patches per c.Rounding, with a
// floor of one patch and a ceiling of MaxPatches.
func (c MultimodalConfig) NumPatches(width, height int) (int, int) {
	w, h := float64(width), float64(height)

	ratio := math.Max(w, h) / float64(c.MaxImageSize)
	if ratio > 1 {
		w = math.RoundToEven(w / ratio)
		h = math.RoundToEven(h / ratio)
	}

	return c.quantize(w), c.quantize(h)
}

func (c MultimodalConfig) quantize(edge float64) int {
	n := edge / float64(c.ImagePatchSize)

	var patches int
	switch c.Rounding {
	case RoundUp:
		patches = int(math.Ceil(n))
	default:
		patches = int(math.RoundToEven(n))
	}

	return min(max(patches, 1), c.MaxPatches())
}
