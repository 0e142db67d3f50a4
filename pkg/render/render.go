package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/flagstack/flagstack/pkg/errors"
	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/stack"
)

// Layer rasterizes one plan: a buffer of the source dimensions, fully
// transparent except the plan's pixels, which are copied verbatim from
// the quantized raster. Copying instead of repainting preserves exact
// color fidelity at region boundaries. Pure function, safe to call
// concurrently across layers and images.
func Layer(q *raster.Raster, plan stack.Layer) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, q.Width(), q.Height()))
	src := q.NRGBA().Pix
	for _, f := range plan.Fragments {
		for _, idx := range f.Pixels {
			o := idx * 4
			copy(out.Pix[o:o+4], src[o:o+4])
		}
	}
	return out
}

// Composite stacks images bottom-up over a transparent canvas of the
// given size. Inputs are expected to share that size; the reveal preview
// and the quality gate both build their progressive states through this.
func Composite(w, h int, imgs ...*image.NRGBA) *image.NRGBA {
	out := imaging.New(w, h, color.Transparent)
	for _, img := range imgs {
		if img == nil {
			continue
		}
		out = imaging.Overlay(out, img, image.Pt(0, 0), 1.0)
	}
	return out
}

// DiffRatio reports the fraction of canvas pixels whose RGBA value
// differs between a and b. Comparing rasters of different dimensions is
// a contract violation, not a runtime condition.
func DiffRatio(a, b *raster.Raster) (float64, error) {
	if a.Width() != b.Width() || a.Height() != b.Height() {
		return 0, errors.New(errors.ErrCodeDimensionMismatch,
			"cannot compare %dx%d raster with %dx%d raster",
			a.Width(), a.Height(), b.Width(), b.Height())
	}
	total := a.Len()
	if total == 0 {
		return 0, nil
	}
	pa, pb := a.NRGBA().Pix, b.NRGBA().Pix
	differing := 0
	for i := 0; i < len(pa); i += 4 {
		if pa[i] != pb[i] || pa[i+1] != pb[i+1] || pa[i+2] != pb[i+2] || pa[i+3] != pb[i+3] {
			differing++
		}
	}
	return float64(differing) / float64(total), nil
}
