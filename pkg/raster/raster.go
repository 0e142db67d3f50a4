// Package raster holds the row-major RGBA pixel grid the engine operates
// on, plus the two raster transforms of the pipeline: palette
// quantization and border edge extension.
//
// A Raster always wraps an *image.NRGBA whose bounds start at the origin,
// so the pixel at (x, y) lives at row-major index y*width+x and byte
// offset 4*(y*width+x). The segmenter and packer rely on that layout.
package raster

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"sort"

	"github.com/flagstack/flagstack/pkg/palette"
)

// Raster is a width x height RGBA grid, row-major.
type Raster struct {
	img *image.NRGBA
}

// New returns a fully transparent raster of the given size.
func New(w, h int) *Raster {
	return &Raster{img: image.NewNRGBA(image.Rect(0, 0, w, h))}
}

// FromImage copies src into a fresh origin-anchored NRGBA raster.
func FromImage(src image.Image) *Raster {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Raster{img: dst}
}

// Decode reads a PNG stream into a raster.
func Decode(r io.Reader) (*Raster, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return FromImage(img), nil
}

// Load reads a PNG file into a raster.
func Load(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// EncodePNG writes the raster as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.img)
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int { return r.img.Rect.Dx() }

// Height returns the raster height in pixels.
func (r *Raster) Height() int { return r.img.Rect.Dy() }

// Len returns the pixel count.
func (r *Raster) Len() int { return r.Width() * r.Height() }

// NRGBA exposes the backing image. Shared, not a copy.
func (r *Raster) NRGBA() *image.NRGBA { return r.img }

// Clone returns an independent copy of the raster.
func (r *Raster) Clone() *Raster {
	dst := image.NewNRGBA(r.img.Rect)
	copy(dst.Pix, r.img.Pix)
	return &Raster{img: dst}
}

// Pixel returns the color channels at row-major index i.
func (r *Raster) Pixel(i int) (red, green, blue, alpha uint8) {
	o := i * 4
	return r.img.Pix[o], r.img.Pix[o+1], r.img.Pix[o+2], r.img.Pix[o+3]
}

// SetPixel writes the color channels at row-major index i.
func (r *Raster) SetPixel(i int, red, green, blue, alpha uint8) {
	o := i * 4
	r.img.Pix[o] = red
	r.img.Pix[o+1] = green
	r.img.Pix[o+2] = blue
	r.img.Pix[o+3] = alpha
}

// Color returns the palette color at index i, ignoring alpha.
func (r *Raster) Color(i int) palette.Color {
	o := i * 4
	return palette.Color{R: r.img.Pix[o], G: r.img.Pix[o+1], B: r.img.Pix[o+2]}
}

// Opaque reports whether the pixel at index i has alpha at or above floor.
func (r *Raster) Opaque(i int, floor uint8) bool {
	return r.img.Pix[i*4+3] >= floor
}

// OpaqueCount returns how many pixels have alpha at or above floor.
func (r *Raster) OpaqueCount(floor uint8) int {
	n := 0
	for i := 3; i < len(r.img.Pix); i += 4 {
		if r.img.Pix[i] >= floor {
			n++
		}
	}
	return n
}

// Histogram counts exact RGB values over pixels with alpha at or above
// floor, ranked by frequency descending. Ties order by ascending hex so
// repeated runs stay byte-identical.
func (r *Raster) Histogram(floor uint8) []palette.Weighted {
	counts := make(map[palette.Color]int)
	for i := 0; i < len(r.img.Pix); i += 4 {
		if r.img.Pix[i+3] < floor {
			continue
		}
		c := palette.Color{R: r.img.Pix[i], G: r.img.Pix[i+1], B: r.img.Pix[i+2]}
		counts[c]++
	}
	out := make([]palette.Weighted, 0, len(counts))
	for c, n := range counts {
		out = append(out, palette.Weighted{Color: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Color.Hex() < out[j].Color.Hex()
	})
	return out
}
