// Package transform provides the default Transformer and Codec, both built on
// github.com/disintegration/imaging.
package transform

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/Borislavv/go-ash-imgcache/model"
	"github.com/disintegration/imaging"
)

// Imaging renders originals with a Lanczos filter.
type Imaging struct {
	Filter imaging.ResampleFilter
}

func NewImaging() Imaging { return Imaging{Filter: imaging.Lanczos} }

// Transform fits src into the format's box according to its scale mode.
// Without upscaling the box is first clamped to the source dimensions.
func (t Imaging) Transform(src image.Image, f model.Format) (image.Image, error) {
	if src == nil {
		return nil, errors.New("nil source image")
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("empty source image %v", b)
	}
	filter := t.Filter
	if filter.Support == 0 && filter.Kernel == nil {
		filter = imaging.Lanczos
	}

	w, h := Box(b.Dx(), b.Dy(), f)
	switch f.ScaleMode {
	case model.ScaleModeFill:
		return imaging.Resize(src, w, h, filter), nil
	case model.ScaleModeAspectFit:
		fw, fh := fitSize(b.Dx(), b.Dy(), w, h)
		return imaging.Resize(src, fw, fh, filter), nil
	case model.ScaleModeAspectFill, "":
		return imaging.Fill(src, w, h, imaging.Center, filter), nil
	default:
		return nil, fmt.Errorf("%w: unknown scale mode %q", model.ErrInvalidFormat, f.ScaleMode)
	}
}

// Box returns the target box of f for a source of srcW x srcH.
func Box(srcW, srcH int, f model.Format) (w, h int) {
	w, h = f.Width, f.Height
	if !f.AllowUpscaling {
		w, h = min(w, srcW), min(h, srcH)
	}
	return w, h
}

// fitSize scales srcW x srcH to the largest size fitting into boxW x boxH.
func fitSize(srcW, srcH, boxW, boxH int) (int, int) {
	scale := math.Min(float64(boxW)/float64(srcW), float64(boxH)/float64(srcH))
	w := max(1, int(math.Round(float64(srcW)*scale)))
	h := max(1, int(math.Round(float64(srcH)*scale)))
	return min(w, boxW), min(h, boxH)
}

var _ model.Transformer = Imaging{}
