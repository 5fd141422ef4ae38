package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngMagic)
}

// ToPNG returns data as PNG bytes along with the image dimensions.
// PNG input is returned unchanged; other decodable formats are re-encoded.
func ToPNG(data []byte) ([]byte, image.Point, error) {
	if len(data) == 0 {
		return nil, image.Point{}, ErrEmptyFrame
	}

	if IsPNG(data) {
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, image.Point{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return data, image.Pt(cfg.Width, cfg.Height), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), img.Bounds().Size(), nil
}

// EncodePNG encodes an in-memory image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
