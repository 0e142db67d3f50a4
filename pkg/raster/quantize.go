package raster

import "github.com/flagstack/flagstack/pkg/palette"

// Quantize returns a new raster of the same dimensions with every pixel
// either zeroed (alpha below floor) or snapped to the nearest palette
// color by squared RGB distance at full opacity. The receiver is left
// untouched.
//
// Callers must not pass an empty palette; the pipeline skips such images
// before quantization (see pkg/pipeline).
func (r *Raster) Quantize(pal palette.Palette, floor uint8) *Raster {
	out := New(r.Width(), r.Height())
	src, dst := r.img.Pix, out.img.Pix
	for i := 0; i < len(src); i += 4 {
		if src[i+3] < floor {
			continue
		}
		c, _ := pal.Nearest(src[i], src[i+1], src[i+2])
		dst[i] = c.R
		dst[i+1] = c.G
		dst[i+2] = c.B
		dst[i+3] = 0xff
	}
	return out
}
