// Package multimodal converts images into the pixel tensor and token span a
// multimodal language model consumes.
//
// An ImageEncoder is built once from a MultimodalConfig and the three special
// token ids, then called per image:
//
//	cfg := multimodal.NewMultimodalConfig(16, 1024)
//	enc, err := multimodal.NewImageEncoder(cfg, multimodal.SpecialImageIDs{Img: 10, ImgBreak: 12, ImgEnd: 13})
//	if err != nil {
//	    return err
//	}
//	out, err := enc.Encode(ctx, multimodal.ImageURLChunk{ImageURL: "https://example.com/cat.jpg"})
//
// # Patch grid
//
// The longer image edge is scaled down to MaxImageSize when it exceeds it,
// keeping the aspect ratio; smaller images keep their size. Each edge is then
// quantized to a whole number of ImagePatchSize patches (at least one), and
// the bitmap is resampled to exactly that many pixels. Prepare returns that
// resampled bitmap without normalizing it.
//
// # Token span
//
// For a grid W patches wide and H tall the span holds H rows of W Img tokens,
// each row closed by ImgBreak except the last, which is closed by ImgEnd.
// The span is always (W+1)*H tokens long.
//
// # Thread Safety
//
// ImageEncoder holds only immutable configuration. Encode may be called from
// many goroutines at once.
package multimodal
