package multimodal

import "image"

// ChunkKind names a content chunk variant.
type ChunkKind string

const (
	ChunkText     ChunkKind = "text"
	ChunkImage    ChunkKind = "image"
	ChunkImageURL ChunkKind = "image_url"
)

// Chunk is one piece of message content. The set of variants is closed:
// ImageChunk, ImageURLChunk and TextChunk.
type Chunk interface {
	Kind() ChunkKind
	isChunk()
}

// ImageChunk carries an already decoded bitmap.
type ImageChunk struct {
	Image image.Image
}

// ImageURLChunk references an image by remote URL or by inline data URL
// ("data:image/png;base64,...").
type ImageURLChunk struct {
	ImageURL string
}

// TextChunk carries plain text. Encoders reject it.
type TextChunk struct {
	Text string
}

func (ImageChunk) Kind() ChunkKind    { return ChunkImage }
func (ImageURLChunk) Kind() ChunkKind { return ChunkImageURL }
func (TextChunk) Kind() ChunkKind     { return ChunkText }

func (ImageChunk) isChunk()    {}
func (ImageURLChunk) isChunk() {}
func (TextChunk) isChunk()     {}
