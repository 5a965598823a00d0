package help

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
)

// Gradient returns a w x h image whose pixels depend on their position.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / max(w, 1)), G: uint8(y * 255 / max(h, 1)), B: 128, A: 255})
		}
	}
	return img
}

// PNG encodes img, panicking on failure.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Entity serves a fixed original and counts how often the cache asked for it.
type Entity struct {
	ID    string
	Image image.Image
	Data  []byte

	calls atomic.Int64
}

func NewEntity(id string, w, h int) *Entity {
	return &Entity{ID: id, Image: Gradient(w, h)}
}

func (e *Entity) CacheID() string { return e.ID }

func (e *Entity) OriginalImage() image.Image {
	e.calls.Add(1)
	return e.Image
}

func (e *Entity) OriginalData() []byte {
	e.calls.Add(1)
	return e.Data
}

// Calls returns how many times the original was requested.
func (e *Entity) Calls() int64 { return e.calls.Load() }
