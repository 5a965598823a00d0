package memory

import (
	"image"

	"github.com/Borislavv/go-ash-imgcache/model"
)

// Entry is one decoded artifact held in memory.
type Entry struct {
	key    model.Key
	format string
	img    image.Image
	weight int64
}

func NewEntry(key model.Key, format string, img image.Image) *Entry {
	return &Entry{key: key, format: format, img: img, weight: weightOf(img)}
}

func (e *Entry) Key() model.Key     { return e.key }
func (e *Entry) Format() string     { return e.format }
func (e *Entry) Image() image.Image { return e.img }
func (e *Entry) Weight() int64      { return e.weight }

// weightOf estimates the resident size of a decoded image as 4 bytes per pixel.
func weightOf(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
