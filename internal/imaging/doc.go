// Package imaging provides the pixel-level steps of image tokenization:
// decoding, RGB flattening, resizing and normalization.
//
// All functions work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Pipeline
//
// The encoder chains the functions in this order:
//   - Decode: bytes to bitmap (PNG, JPEG, GIF, WebP, BMP, TIFF)
//   - ToRGB: composite transparency onto an opaque background colour
//   - Resize: Catmull-Rom (bicubic) resampling to the patch-aligned size
//   - NormalizeCHW: 8-bit RGB to channel-first float32, (v/255 - mean) / std
//
// Each step is deterministic: identical input pixels produce bit-identical
// output, which the vision backbone relies on.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images. Operations
// on the same image should be synchronized by the caller if the image is mutable.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Empty or corrupt encoded data
//   - Zero-sized bitmaps
//   - Non-positive resize targets
//   - File I/O errors during image loading
package imaging
