package pipeline

import (
	"bytes"

	"github.com/flagstack/flagstack/pkg/errors"
	"github.com/flagstack/flagstack/pkg/palette"
	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/vector"
)

// BuildPalette derives the working palette for one rendered source.
//
// Declared fill/stroke paints in the source markup are the primary
// candidate source, in declaration order. Raster-only sources have no
// declarations; when opts.KMeans is set their opaque pixels are clustered
// into candidates instead, and either way the opaque-pixel histogram
// backs the candidates up inside Simplify. The returned map holds the raw
// colors first declared inside <defs>, before palette snapping.
func BuildPalette(markup []byte, r *raster.Raster, opts Options) (palette.Palette, map[palette.Color]bool, error) {
	var candidates []palette.Color
	defs := map[palette.Color]bool{}

	if len(markup) > 0 {
		entries, err := vector.ScanPaints(bytes.NewReader(markup))
		if err != nil {
			return palette.Palette{}, nil, err
		}
		candidates = vector.Colors(entries)
		defs = vector.DefsColors(entries)
	} else if opts.KMeans {
		// Cluster failures fall back to the histogram.
		if centers, err := palette.KMeansCandidates(r.NRGBA(), opts.MaxPaletteColors, opts.OpacityFloor); err == nil {
			candidates = centers
		}
	}

	hist := r.Histogram(opts.OpacityFloor)
	pal := palette.Simplify(candidates, hist, opts.SimplifyOptions())
	if pal.Empty() {
		return pal, nil, errors.New(errors.ErrCodeEmptyPalette, "no palette colors")
	}
	return pal, defs, nil
}

// ForceTopColors snaps overlay color declarations onto the palette and
// returns the set the packer treats as forceTop. Declared colors that the
// simplifier merged away land on their nearest palette color, matching
// what the quantizer does to their pixels. Unparseable override strings
// are ignored.
func ForceTopColors(pal palette.Palette, defs map[palette.Color]bool, overrides []string) map[palette.Color]bool {
	top := make(map[palette.Color]bool, len(defs)+len(overrides))
	for c := range defs {
		snapped, _ := pal.Nearest(c.R, c.G, c.B)
		top[snapped] = true
	}
	for _, hex := range overrides {
		c, ok := palette.Parse(hex)
		if !ok {
			continue
		}
		snapped, _ := pal.Nearest(c.R, c.G, c.B)
		top[snapped] = true
	}
	return top
}
