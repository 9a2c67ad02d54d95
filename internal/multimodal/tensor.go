package multimodal

import "math"

// Tensor is a dense channel-first float32 image: Data[c*Height*Width + y*Width + x].
type Tensor struct {
	Data     []float32
	Channels int
	Height   int
	Width    int
}

// Shape returns (channels, height, width).
func (t *Tensor) Shape() [3]int {
	return [3]int{t.Channels, t.Height, t.Width}
}

// At returns the value at channel c, row y, column x.
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.Height+y)*t.Width+x]
}

// AbsSum is the sum of absolute values, accumulated in float64 in index
// order. It serves as a checksum for reproducibility checks.
func (t *Tensor) AbsSum() float64 {
	var sum float64
	for _, v := range t.Data {
		sum += math.Abs(float64(v))
	}
	return sum
}
