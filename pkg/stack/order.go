package stack

import (
	"sort"

	"github.com/flagstack/flagstack/pkg/palette"
)

// tier buckets colors into reveal bands: regular colors first, near-black
// demoted, white-dominant always last.
func tier(c palette.Color, nearBlack float64) int {
	switch {
	case c.NearWhite():
		return 2
	case c.Luminance() < nearBlack:
		return 1
	default:
		return 0
	}
}

// revealLess orders buckets for progressive reveal: by tier, then
// brightness descending, then ascending area so small distinctive detail
// shows before broad fields, with forceTop content deferred among equals
// and original order as the final tie-break.
func revealLess(a, b *bucket, opts Options) bool {
	da, db := a.dominant(), b.dominant()
	ta, tb := tier(da, opts.NearBlackLuminance), tier(db, opts.NearBlackLuminance)
	if ta != tb {
		return ta < tb
	}
	la, lb := da.Luminance(), db.Luminance()
	if la != lb {
		return la > lb
	}
	if a.area != b.area {
		return a.area < b.area
	}
	fa, fb := opts.ForceTop[da], opts.ForceTop[db]
	if fa != fb {
		return !fa
	}
	return a.order < b.order
}

func sortByReveal(buckets []*bucket, opts Options) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return revealLess(buckets[i], buckets[j], opts)
	})
}

// order finalizes buckets into reveal-ordered layers and assigns
// stacking depths. Depth follows reveal order except that forceTop layers
// sit above every regular layer.
func order(buckets []*bucket, opts Options) []Layer {
	sortByReveal(buckets, opts)

	layers := make([]Layer, 0, len(buckets))
	for _, b := range buckets {
		d := b.dominant()
		layers = append(layers, Layer{
			Fragments:  b.fragments,
			Dominant:   d,
			Area:       b.area,
			Brightness: d.Luminance(),
			ForceTop:   opts.ForceTop[d],
			Mixed:      len(b.colors) > 1,
			Clip:       b.clip,
		})
	}

	z := 0
	for i := range layers {
		if !layers[i].ForceTop {
			layers[i].Z = z
			z++
		}
	}
	for i := range layers {
		if layers[i].ForceTop {
			layers[i].Z = z
			z++
		}
	}
	return layers
}
