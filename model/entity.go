package model

import "image"

// Entity represents an original image. The cache asks it for the original
// only on a miss and does not keep it after the artifact is produced.
type Entity interface {
	// CacheID identifies the original. Entities sharing an image should share the id.
	CacheID() string
	// OriginalImage returns the decoded original, or nil to use OriginalData instead.
	OriginalImage() image.Image
	// OriginalData returns the encoded original, or nil to use OriginalImage instead.
	OriginalData() []byte
}

// Transformer renders an original into a format.
type Transformer interface {
	Transform(src image.Image, f Format) (image.Image, error)
}

// Codec converts artifacts to their disk bytes and back. Decode is also used
// for originals supplied as bytes.
type Codec interface {
	Encode(img image.Image, f Format) ([]byte, error)
	Decode(data []byte) (image.Image, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(src image.Image, f Format) (image.Image, error)

func (fn TransformerFunc) Transform(src image.Image, f Format) (image.Image, error) { return fn(src, f) }
