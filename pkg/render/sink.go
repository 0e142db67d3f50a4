package render

import (
	"bytes"
	"image"
	"image/png"
	"io"
)

// PNGOption configures PNG encoding.
type PNGOption func(*pngEncoder)

type pngEncoder struct {
	level png.CompressionLevel
}

// WithCompression sets the PNG compression level (default best size;
// layer images are flat color fields and compress extremely well).
func WithCompression(level png.CompressionLevel) PNGOption {
	return func(e *pngEncoder) { e.level = level }
}

// WritePNG encodes img to w.
func WritePNG(w io.Writer, img image.Image, opts ...PNGOption) error {
	e := pngEncoder{level: png.BestCompression}
	for _, opt := range opts {
		opt(&e)
	}
	enc := png.Encoder{CompressionLevel: e.level}
	return enc.Encode(w, img)
}

// EncodePNG returns img encoded as PNG bytes.
func EncodePNG(img image.Image, opts ...PNGOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, img, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
