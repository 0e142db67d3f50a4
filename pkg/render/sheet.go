package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/flagstack/flagstack/pkg/errors"
)

// SheetOptions configures contact-sheet assembly.
type SheetOptions struct {
	// Columns fixes the grid width; zero picks a near-square grid.
	Columns int
	// Padding is the gap between tiles in pixels.
	Padding int
	// CellWidth caps each tile's width, downscaling with aspect kept.
	// Zero keeps the native layer size.
	CellWidth int
}

// Sheet lays the given images out on a single contact sheet, row by row
// in slice order. All images are expected to share the canvas size of
// the stack they came from; the grid is sized from the first tile.
func Sheet(images []*image.NRGBA, opts SheetOptions) (*image.NRGBA, error) {
	if len(images) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "contact sheet needs at least one image")
	}

	tiles := make([]*image.NRGBA, len(images))
	for i, img := range images {
		if opts.CellWidth > 0 && img.Bounds().Dx() > opts.CellWidth {
			tiles[i] = imaging.Resize(img, opts.CellWidth, 0, imaging.Lanczos)
		} else {
			tiles[i] = img
		}
	}

	cols := opts.Columns
	if cols <= 0 {
		cols = int(math.Ceil(math.Sqrt(float64(len(tiles)))))
	}
	rows := (len(tiles) + cols - 1) / cols

	tw := tiles[0].Bounds().Dx()
	th := tiles[0].Bounds().Dy()
	pad := opts.Padding

	out := imaging.New(cols*tw+(cols+1)*pad, rows*th+(rows+1)*pad, color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff})
	for i, tile := range tiles {
		x := pad + (i%cols)*(tw+pad)
		y := pad + (i/cols)*(th+pad)
		out = imaging.Overlay(out, tile, image.Pt(x, y), 1.0)
	}
	return out, nil
}
