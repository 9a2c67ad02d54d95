package multimodal

import "fmt"

// TypeMismatchError is returned when Encode receives a chunk that is not an
// image variant.
type TypeMismatchError struct {
	Got string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot encode %s chunk as image", e.Got)
}

// DecodeError is returned when an image source cannot be turned into a
// bitmap: corrupt or empty bytes, an unsupported format, a malformed data URL
// or a nil image.
type DecodeError struct {
	// Source identifies the input: "image", "data url" or the remote URL.
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image from %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
