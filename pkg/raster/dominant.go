package raster

import (
	"github.com/cenkalti/dominantcolor"

	"github.com/flagstack/flagstack/pkg/palette"
)

// Dominant finds the raster's dominant color by sampled clustering over
// the image. Used for manifest entries and placeholder fills, not for
// palette building, which needs exact counts.
func (r *Raster) Dominant() palette.Color {
	c := dominantcolor.Find(r.img)
	return palette.Color{R: c.R, G: c.G, B: c.B}
}
