package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// PreviewResult is a PNG rendering of a bitmap for returning over MCP.
type PreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG renders img as base64 PNG.
func EncodePNG(img image.Image) (*PreviewResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	bounds := img.Bounds()
	return &PreviewResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// PatchGrid returns a copy of img with a one-pixel line in c along every
// interior patch boundary. The source is not modified.
func PatchGrid(img image.Image, patchSize int, c color.Color) (*image.NRGBA, error) {
	if patchSize <= 0 {
		return nil, fmt.Errorf("invalid patch size: %d", patchSize)
	}

	result := imaging.Clone(img)
	width, height := result.Rect.Dx(), result.Rect.Dy()
	lineColor := color.NRGBAModel.Convert(c)

	// Vertical lines
	for x := patchSize; x < width; x += patchSize {
		for y := 0; y < height; y++ {
			result.Set(x, y, lineColor)
		}
	}

	// Horizontal lines
	for y := patchSize; y < height; y += patchSize {
		for x := 0; x < width; x++ {
			result.Set(x, y, lineColor)
		}
	}

	return result, nil
}
