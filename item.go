package imgcache

import (
	"image"

	"github.com/Borislavv/go-ash-imgcache/model"
)

type (
	Format      = model.Format
	ScaleMode   = model.ScaleMode
	Encoding    = model.Encoding
	Entity      = model.Entity
	Transformer = model.Transformer
	Codec       = model.Codec
	Key         = model.Key
)

const (
	ScaleModeFill       = model.ScaleModeFill
	ScaleModeAspectFit  = model.ScaleModeAspectFit
	ScaleModeAspectFill = model.ScaleModeAspectFill

	EncodingJPEG = model.EncodingJPEG
	EncodingPNG  = model.EncodingPNG
)

var (
	ErrFormatAlreadyRegistered = model.ErrFormatAlreadyRegistered
	ErrFormatNotRegistered     = model.ErrFormatNotRegistered
	ErrInvalidFormat           = model.ErrInvalidFormat
	ErrSourceUnavailable       = model.ErrSourceUnavailable
	ErrTransformFailed         = model.ErrTransformFailed
	ErrStorageIO               = model.ErrStorageIO
	ErrClosed                  = model.ErrClosed
)

// Result is delivered to Retrieve completions. Exactly one of Image and Err is set.
type Result struct {
	Image image.Image
	Err   error
}

// NewKey returns the cache key of an entity id in a format.
func NewKey(id, formatName string) Key { return model.NewKey(id, formatName) }

// ImageEntity is an Entity holding a decoded original.
type ImageEntity struct {
	ID    string
	Image image.Image
}

func (e ImageEntity) CacheID() string            { return e.ID }
func (e ImageEntity) OriginalImage() image.Image { return e.Image }
func (e ImageEntity) OriginalData() []byte       { return nil }

// DataEntity is an Entity holding an encoded original.
type DataEntity struct {
	ID   string
	Data []byte
}

func (e DataEntity) CacheID() string            { return e.ID }
func (e DataEntity) OriginalImage() image.Image { return nil }
func (e DataEntity) OriginalData() []byte       { return e.Data }
