package multimodal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/image-token-encoder/internal/fetch"
	"github.com/ironsheep/image-token-encoder/internal/imaging"
)

// Fetcher downloads the bytes behind a remote image URL. Implementations own
// timeouts and retries; the encoder calls FetchBytes once and returns its
// error unchanged.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// EncodedImage is the result of encoding one image.
type EncodedImage struct {
	// Tokens is the image's span in the token stream, (PatchesWide+1)*PatchesTall long.
	Tokens []int

	// Image is the normalized pixel tensor, shape (3, PatchesTall*p, PatchesWide*p).
	Image *Tensor

	PatchesWide int
	PatchesTall int
}

// ImageEncoder turns image chunks into EncodedImage values.
type ImageEncoder struct {
	cfg        MultimodalConfig
	ids        SpecialImageIDs
	background color.Color
	fetcher    Fetcher
}

// EncoderOption configures an ImageEncoder.
type EncoderOption func(*ImageEncoder)

// WithFetcher replaces the default HTTP fetcher used for remote URLs.
func WithFetcher(f Fetcher) EncoderOption {
	return func(e *ImageEncoder) {
		if f != nil {
			e.fetcher = f
		}
	}
}

var errNilImage = errors.New("nil image")

// NewImageEncoder validates cfg and ids and returns a ready encoder. Remote
// URLs are fetched with fetch.NewHTTPFetcher unless WithFetcher is given.
func NewImageEncoder(cfg MultimodalConfig, ids SpecialImageIDs, opts ...EncoderOption) (*ImageEncoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ids.Validate(); err != nil {
		return nil, err
	}

	bg, err := cfg.background()
	if err != nil {
		return nil, err
	}

	e := &ImageEncoder{
		cfg:        cfg,
		ids:        ids,
		background: bg,
		fetcher:    fetch.NewHTTPFetcher(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the encoder's configuration.
func (e *ImageEncoder) Config() MultimodalConfig { return e.cfg }

// SpecialIDs returns the encoder's special token ids.
func (e *ImageEncoder) SpecialIDs() SpecialImageIDs { return e.ids }

// NumPatches returns the patch grid, (wide, tall), for an image of the given
// size. See MultimodalConfig.NumPatches.
func (e *ImageEncoder) NumPatches(width, height int) (int, int) {
	return e.cfg.NumPatches(width, height)
}

// Encode converts an image chunk into its pixel tensor and token span.
//
// Errors:
//   - *TypeMismatchError for any chunk that is not ImageChunk or ImageURLChunk
//   - *DecodeError when the bitmap cannot be obtained from the chunk
//   - whatever the Fetcher returns (a *fetch.FetchError by default) for remote URLs
func (e *ImageEncoder) Encode(ctx context.Context, chunk Chunk) (*EncodedImage, error) {
	resized, err := e.Prepare(ctx, chunk)
	if err != nil {
		return nil, err
	}

	b := resized.Bounds()
	p := e.cfg.ImagePatchSize

	return &EncodedImage{
		Tokens: e.ids.Tokens(b.Dx()/p, b.Dy()/p),
		Image: &Tensor{
			Data:     imaging.NormalizeCHW(resized),
			Channels: imaging.Channels,
			Height:   b.Dy(),
			Width:    b.Dx(),
		},
		PatchesWide: b.Dx() / p,
		PatchesTall: b.Dy() / p,
	}, nil
}

// Prepare returns the opaque, patch-aligned bitmap that Encode normalizes:
// the chunk's image with transparency flattened, resized to the patch grid.
// Errors are the same as Encode's.
func (e *ImageEncoder) Prepare(ctx context.Context, chunk Chunk) (*image.NRGBA, error) {
	img, err := e.toImage(ctx, chunk)
	if err != nil {
		return nil, err
	}

	rgb := imaging.ToRGB(img, e.background)
	b := rgb.Bounds()
	wide, tall := e.cfg.NumPatches(b.Dx(), b.Dy())

	p := e.cfg.ImagePatchSize
	resized, err := imaging.Resize(rgb, wide*p, tall*p)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}
	return resized, nil
}

// toImage maps every accepted chunk variant to a non-empty bitmap.
func (e *ImageEncoder) toImage(ctx context.Context, chunk Chunk) (image.Image, error) {
	switch c := chunk.(type) {
	case ImageChunk:
		return checkImage(c.Image)
	case *ImageChunk:
		if c == nil {
			return nil, &TypeMismatchError{Got: "nil"}
		}
		return checkImage(c.Image)
	case ImageURLChunk:
		return e.fromURL(ctx, c.ImageURL)
	case *ImageURLChunk:
		if c == nil {
			return nil, &TypeMismatchError{Got: "nil"}
		}
		return e.fromURL(ctx, c.ImageURL)
	case TextChunk:
		return nil, &TypeMismatchError{Got: string(ChunkText)}
	case *TextChunk:
		if c == nil {
			return nil, &TypeMismatchError{Got: "nil"}
		}
		return nil, &TypeMismatchError{Got: string(ChunkText)}
	case nil:
		return nil, &TypeMismatchError{Got: "nil"}
	default:
		// Unreachable while Chunk stays sealed.
		return nil, &TypeMismatchError{Got: fmt.Sprintf("%T", chunk)}
	}
}

func (e *ImageEncoder) fromURL(ctx context.Context, url string) (image.Image, error) {
	if fetch.IsDataURL(url) {
		du, err := fetch.ParseDataURL(url)
		if err != nil {
			return nil, &DecodeError{Source: "data url", Err: err}
		}
		return decode(du.Data, "data url")
	}

	data, err := e.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	return decode(data, url)
}

func decode(data []byte, source string) (image.Image, error) {
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	return img, nil
}

func checkImage(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, &DecodeError{Source: "image", Err: errNilImage}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Source: "image", Err: fmt.Errorf("zero-sized bitmap %dx%d", b.Dx(), b.Dy())}
	}
	return img, nil
}
