package palette

// SimplifyOptions bound the palette produced by Simplify.
type SimplifyOptions struct {
	// MaxColors caps the palette size.
	MaxColors int
	// MinDistance is the minimum Euclidean RGB distance between any two
	// accepted colors. Compared in squared space.
	MinDistance int
}

// Simplify reduces candidate colors to the final palette.
//
// Candidates are walked in input order; one is accepted only if its
// squared RGB distance to every already-accepted color exceeds
// MinDistance squared, stopping once MaxColors are accepted. When the
// candidate list is empty the histogram seeds the walk instead, with a
// search pool twice the palette cap to improve the odds of filling it;
// if even that accepts nothing, the single most frequent color is kept
// unconditionally. The result is empty only when hist is empty too,
// i.e. the raster had no opaque pixels.
func Simplify(candidates []Color, hist []Weighted, opts SimplifyOptions) Palette {
	accepted := accept(candidates, opts)
	if len(accepted) == 0 {
		pool := poolFromHistogram(hist, 2*opts.MaxColors)
		accepted = accept(pool, opts)
		if len(accepted) == 0 && len(hist) > 0 {
			accepted = []Color{hist[0].Color}
		}
	}
	return Palette{colors: accepted}
}

// accept runs the greedy distance-threshold walk.
func accept(candidates []Color, opts SimplifyOptions) []Color {
	minSq := opts.MinDistance * opts.MinDistance
	var out []Color
	for _, cand := range candidates {
		if len(out) >= opts.MaxColors {
			break
		}
		ok := true
		for _, kept := range out {
			if DistanceSq(cand, kept) <= minSq {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, cand)
		}
	}
	return out
}

// poolFromHistogram takes the top n histogram colors in frequency order.
func poolFromHistogram(hist []Weighted, n int) []Color {
	if n > len(hist) {
		n = len(hist)
	}
	pool := make([]Color, 0, n)
	for _, w := range hist[:n] {
		pool = append(pool, w.Color)
	}
	return pool
}
