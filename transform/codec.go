package transform

import (
	"bytes"
	"fmt"
	"image"

	"github.com/Borislavv/go-ash-imgcache/model"
	"github.com/disintegration/imaging"

	// extra source formats for originals given as bytes
	_ "golang.org/x/image/webp"
)

// Codec encodes artifacts as JPEG or PNG and decodes every format known to imaging plus WebP.
type Codec struct{}

func (Codec) Encode(img image.Image, f model.Format) ([]byte, error) {
	var (
		buf bytes.Buffer
		err error
	)
	switch f.Encoding {
	case model.EncodingPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case model.EncodingJPEG, "":
		quality := f.Quality
		if quality <= 0 || quality > 100 {
			quality = model.DefaultQuality
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", model.ErrInvalidFormat, f.Encoding)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Codec) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDecode, err)
	}
	return img, nil
}

var _ model.Codec = Codec{}
