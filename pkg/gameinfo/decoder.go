package gameinfo

import (
	"bytes"
	"image"

	// Artwork in game images is PNG; some homebrew ships JPEG.
	_ "image/jpeg"
	_ "image/png"
)

// stdDecoder decodes artwork with the standard library image codecs.
type stdDecoder struct{}

// NewStdDecoder returns the default image decoder.
func NewStdDecoder() Decoder {
	return stdDecoder{}
}

func (stdDecoder) Decode(data []byte) (*Artwork, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Artwork{Image: img, Format: format}, nil
}
