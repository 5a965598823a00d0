package model

import (
	"fmt"
	"strings"
)

// ScaleMode defines how an original is fitted into a format's target box.
type ScaleMode string

const (
	// ScaleModeFill stretches the image to exactly the target size, ignoring aspect ratio.
	ScaleModeFill ScaleMode = "fill"
	// ScaleModeAspectFit scales the image to fit inside the target box, keeping aspect ratio.
	ScaleModeAspectFit ScaleMode = "aspect_fit"
	// ScaleModeAspectFill scales the image to cover the target box, keeping aspect ratio, then crops the overflow.
	ScaleModeAspectFill ScaleMode = "aspect_fill"
)

// Encoding is the on-disk encoding of an artifact.
type Encoding string

const (
	EncodingJPEG Encoding = "jpeg"
	EncodingPNG  Encoding = "png"
)

const DefaultQuality = 90

// Format is a named transformation profile.
type Format struct {
	// Name is unique per cache instance. It is also the disk subdirectory of the format.
	Name string `yaml:"name"`

	// Width and Height are the target dimensions in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	ScaleMode ScaleMode `yaml:"scale_mode"`

	// AllowUpscaling lets the transform enlarge originals smaller than the target box.
	AllowUpscaling bool `yaml:"allow_upscaling"`

	// DiskCapacity is the byte ceiling of the format on disk. Zero means no disk tier for the format.
	DiskCapacity uint64 `yaml:"disk_capacity"`

	// Encoding and Quality control the artifact bytes written to disk.
	Encoding Encoding `yaml:"encoding"`
	Quality  int      `yaml:"quality"`

	// Preload warms the memory tier with the disk entries of the format at registration.
	Preload bool `yaml:"preload"`
}

func (f Format) HasDisk() bool { return f.DiskCapacity > 0 }

// Normalize fills defaults: aspect_fill, jpeg, quality 90.
func (f Format) Normalize() Format {
	if f.ScaleMode == "" {
		f.ScaleMode = ScaleModeAspectFill
	}
	if f.Encoding == "" {
		f.Encoding = EncodingJPEG
	}
	if f.Quality <= 0 || f.Quality > 100 {
		f.Quality = DefaultQuality
	}
	return f
}

// Validate checks that the format can be registered.
func (f Format) Validate() error {
	switch {
	case f.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidFormat)
	case f.Name == "." || f.Name == ".." || strings.ContainsAny(f.Name, `/\`) || strings.HasPrefix(f.Name, "."):
		return fmt.Errorf("%w: name %q is not a plain path segment", ErrInvalidFormat, f.Name)
	case f.Width <= 0 || f.Height <= 0:
		return fmt.Errorf("%w: %q has non-positive size %dx%d", ErrInvalidFormat, f.Name, f.Width, f.Height)
	}
	switch f.ScaleMode {
	case ScaleModeFill, ScaleModeAspectFit, ScaleModeAspectFill:
	default:
		return fmt.Errorf("%w: %q has unknown scale mode %q", ErrInvalidFormat, f.Name, f.ScaleMode)
	}
	switch f.Encoding {
	case EncodingJPEG, EncodingPNG:
	default:
		return fmt.Errorf("%w: %q has unknown encoding %q", ErrInvalidFormat, f.Name, f.Encoding)
	}
	return nil
}
