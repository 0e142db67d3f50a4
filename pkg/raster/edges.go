package raster

import "github.com/flagstack/flagstack/pkg/palette"

// ExtendEdges repairs the thin transparent halo rasterizers leave at the
// canvas border. It mutates the quantized raster in place.
//
// Each column is scanned inward from the top and bottom edge, each row
// from the left and right edge, at most span pixels deep. Transparent and
// near-white pixels form the back-fill run; the first opaque pixel of any
// other color is the anchor, and the run is rewritten with the anchor's
// color at full opacity. Near-white pixels never act as anchors: a white
// field reaching the border is background, not a halo.
//
// Expects post-quantization alpha, i.e. 0 or 255 per pixel.
func (r *Raster) ExtendEdges(span int) {
	if span <= 0 {
		return
	}
	w, h := r.Width(), r.Height()
	for x := 0; x < w; x++ {
		r.extendLine(func(i int) int { return i*w + x }, h, span)
		r.extendLine(func(i int) int { return (h-1-i)*w + x }, h, span)
	}
	for y := 0; y < h; y++ {
		r.extendLine(func(i int) int { return y*w + i }, w, span)
		r.extendLine(func(i int) int { return y*w + (w - 1 - i) }, w, span)
	}
}

// extendLine walks one scan line from an edge. at maps a step count to
// the row-major pixel index.
func (r *Raster) extendLine(at func(int) int, length, span int) {
	limit := span
	if limit > length {
		limit = length
	}
	for i := 0; i < limit; i++ {
		red, green, blue, alpha := r.Pixel(at(i))
		if alpha == 0 || nearWhiteChannels(red, green, blue) {
			continue
		}
		// Anchor found: back-fill the run between the edge and here.
		for j := 0; j < i; j++ {
			r.SetPixel(at(j), red, green, blue, 0xff)
		}
		return
	}
}

func nearWhiteChannels(red, green, blue uint8) bool {
	return red >= palette.NearWhiteFloor && green >= palette.NearWhiteFloor && blue >= palette.NearWhiteFloor
}
