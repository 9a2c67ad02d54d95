package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// Per-channel statistics of the dataset the vision backbone was trained on
// (the CLIP preprocessing constants), in R, G, B order.
const (
	meanR = 0.48145466
	meanG = 0.4578275
	meanB = 0.40821073

	stdR = 0.26862954
	stdG = 0.26130258
	stdB = 0.27577711
)

// Channels is the number of colour planes in a normalized tensor.
const Channels = 3

// normTable maps every 8-bit channel value to its normalized float for each
// channel. Built once; read-only afterwards.
var normTable = buildNormTable()

func buildNormTable() [Channels][256]float32 {
	mean := [Channels]float64{meanR, meanG, meanB}
	std := [Channels]float64{stdR, stdG, stdB}

	var t [Channels][256]float32
	for c := 0; c < Channels; c++ {
		for v := 0; v < 256; v++ {
			t[c][v] = float32((float64(v)/255.0 - mean[c]) / std[c])
		}
	}
	return t
}

// NormalizeValue returns the normalized value of an 8-bit sample v in the
// given channel (0 = R, 1 = G, 2 = B): (v/255 - mean) / std.
func NormalizeValue(channel int, v uint8) float32 {
	return normTable[channel][v]
}

// NormalizeCHW converts img into a channel-first float32 tensor of shape
// (3, height, width). Alpha is ignored; flatten translucent images with ToRGB
// first.
func NormalizeCHW(img image.Image) []float32 {
	src, ok := img.(*image.NRGBA)
	if !ok || src.Rect.Min != (image.Point{}) {
		src = imaging.Clone(img)
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	plane := w * h
	out := make([]float32, Channels*plane)

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			px := row[x*4 : x*4+4]
			out[i] = normTable[0][px[0]]
			out[plane+i] = normTable[1][px[1]]
			out[2*plane+i] = normTable[2][px[2]]
		}
	}

	return out
}
