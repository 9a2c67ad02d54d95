package multimodal

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultAlphaBackground is the colour transparent pixels are composited onto.
const DefaultAlphaBackground = "#FFFFFF"

var (
	// ErrInvalidConfig is wrapped by every MultimodalConfig validation failure.
	ErrInvalidConfig = errors.New("invalid multimodal config")

	// ErrDuplicateSpecialID is returned when two special image ids collide.
	ErrDuplicateSpecialID = errors.New("special image ids must be distinct")
)

// PatchRounding selects how a resized edge is quantized to whole patches.
type PatchRounding int

const (
	// RoundNearest rounds edge/patch to the nearest integer, halves to even.
	RoundNearest PatchRounding = iota

	// RoundUp takes the ceiling of edge/patch. Checkpoints trained with the
	// ceil-based preprocessing (e.g. 200x311 -> 208x320) need this mode.
	RoundUp
)

func (r PatchRounding) String() string {
	switch r {
	case RoundNearest:
		return "nearest"
	case RoundUp:
		return "up"
	default:
		return fmt.Sprintf("PatchRounding(%d)", int(r))
	}
}

// ParsePatchRounding accepts "nearest" or "up" (also "ceil"), case-insensitive.
func ParsePatchRounding(s string) (PatchRounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest", "round":
		return RoundNearest, nil
	case "up", "ceil":
		return RoundUp, nil
	default:
		return 0, fmt.Errorf("%w: unknown patch rounding %q", ErrInvalidConfig, s)
	}
}

// MultimodalConfig holds the image geometry the vision backbone was trained
// with. It is a value type; copies are independent.
type MultimodalConfig struct {
	// ImagePatchSize is the edge, in pixels, of one patch (one Img token).
	ImagePatchSize int

	// MaxImageSize caps the longer edge, in pixels, after resizing.
	MaxImageSize int

	// Rounding selects how edges are quantized to patches.
	Rounding PatchRounding

	// AlphaBackground is a "#RRGGBB" colour for transparent pixels. Empty
	// means DefaultAlphaBackground.
	AlphaBackground string
}

// NewMultimodalConfig returns a config with nearest rounding and a white
// alpha background.
func NewMultimodalConfig(imagePatchSize, maxImageSize int) MultimodalConfig {
	return MultimodalConfig{
		ImagePatchSize:  imagePatchSize,
		MaxImageSize:    maxImageSize,
		Rounding:        RoundNearest,
		AlphaBackground: DefaultAlphaBackground,
	}
}

// Validate reports the first problem with c, wrapped in ErrInvalidConfig.
func (c MultimodalConfig) Validate() error {
	if c.ImagePatchSize <= 0 {
		return fmt.Errorf("%w: image patch size must be positive, got %d", ErrInvalidConfig, c.ImagePatchSize)
	}
	if c.MaxImageSize <= 0 {
		return fmt.Errorf("%w: max image size must be positive, got %d", ErrInvalidConfig, c.MaxImageSize)
	}
	if c.Rounding != RoundNearest && c.Rounding != RoundUp {
		return fmt.Errorf("%w: unknown patch rounding %v", ErrInvalidConfig, c.Rounding)
	}
	if _, err := c.background(); err != nil {
		return err
	}
	return nil
}

// MaxPatches is the largest patch count allowed along either edge.
func (c MultimodalConfig) MaxPatches() int {
	return max(1, c.MaxImageSize/c.ImagePatchSize)
}

func (c MultimodalConfig) background() (color.Color, error) {
	hex := c.AlphaBackground
	if hex == "" {
		hex = DefaultAlphaBackground
	}
	bg, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("%w: alpha background %q: %v", ErrInvalidConfig, c.AlphaBackground, err)
	}
	return bg, nil
}

// SpecialImageIDs are the vocabulary ids that frame an image in a token stream.
type SpecialImageIDs struct {
	// Img marks one patch.
	Img int
	// ImgBreak closes every row but the last.
	ImgBreak int
	// ImgEnd closes the last row and the image.
	ImgEnd int
}

// Validate returns ErrDuplicateSpecialID when any two ids are equal.
func (ids SpecialImageIDs) Validate() error {
	if ids.Img == ids.ImgBreak || ids.Img == ids.ImgEnd || ids.ImgBreak == ids.ImgEnd {
		return fmt.Errorf("%w: img=%d img_break=%d img_end=%d", ErrDuplicateSpecialID, ids.Img, ids.ImgBreak, ids.ImgEnd)
	}
	return nil
}
