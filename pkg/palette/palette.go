// Package palette models the bounded, perceptually-separated color set
// built once per source image.
//
// A Palette is constructed by Simplify from declared paint candidates or
// from a raster histogram and is immutable afterwards. Quantization and
// layer ordering take it as an explicit input; nothing in this package
// holds global state.
package palette

// Weighted pairs a color with its pixel frequency in a raster histogram.
type Weighted struct {
	Color Color
	Count int
}

// Palette is an ordered set of distinct colors, at most MaxColors long,
// pairwise separated by at least the configured minimum RGB distance
// (best effort; the first accepted candidate is always kept).
type Palette struct {
	colors []Color
}

// New builds a Palette from already-vetted colors. Callers outside this
// package normally go through Simplify instead.
func New(colors []Color) Palette {
	cs := make([]Color, len(colors))
	copy(cs, colors)
	return Palette{colors: cs}
}

// Len returns the number of colors.
func (p Palette) Len() int {
	return len(p.colors)
}

// Empty reports whether the palette has no colors. An empty palette is
// the signal to skip the image entirely.
func (p Palette) Empty() bool {
	return len(p.colors) == 0
}

// Colors returns a copy of the palette in acceptance order.
func (p Palette) Colors() []Color {
	cs := make([]Color, len(p.colors))
	copy(cs, p.colors)
	return cs
}

// Nearest returns the palette color closest to the given channels by
// squared RGB distance, and that distance. Ties keep the earlier entry.
// Must not be called on an empty palette.
func (p Palette) Nearest(r, g, b uint8) (Color, int) {
	best := p.colors[0]
	bestDist := DistanceSq(best, Color{R: r, G: g, B: b})
	for _, c := range p.colors[1:] {
		if d := DistanceSq(c, Color{R: r, G: g, B: b}); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// Contains reports whether c is a palette member.
func (p Palette) Contains(c Color) bool {
	for _, pc := range p.colors {
		if pc == c {
			return true
		}
	}
	return false
}
