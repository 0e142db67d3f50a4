// Package stack packs color regions into a fixed-size ordered set of
// layer plans.
//
// The packer is a pure function from (regions, raster width, options) to
// plans: group regions by color, eagerly expand finely detailed colors
// through rectangular clip windows, merge minor colors while over the
// layer budget, bisect dominant content while under it, and finally
// order everything for progressive reveal. No rendering happens here;
// plans reference region pixels, they never copy raster data.
package stack

import (
	"image"

	"github.com/flagstack/flagstack/pkg/palette"
	"github.com/flagstack/flagstack/pkg/segment"
)

// Options tune the packing heuristics. Zero values are not usable;
// pipeline.Options supplies validated defaults.
type Options struct {
	// TargetLayers is the fixed layer budget per image.
	TargetLayers int
	// SplitEntryThreshold is the region count above which a color is
	// eagerly expanded into clip-window pieces.
	SplitEntryThreshold int
	// NearBlackLuminance demotes layers darker than this in the reveal
	// order.
	NearBlackLuminance float64
	// ForceTop marks overlay colors whose layers stack above all others.
	ForceTop map[palette.Color]bool
}

// Fragment is the unit of layer membership: a run of one region's pixels,
// optionally restricted by the clip window that produced it. Pixels
// aliases the region's index list for plain fragments and is materialized
// for clipped ones.
type Fragment struct {
	Region *segment.Region
	Pixels []int
	Window *image.Rectangle
}

// Area returns the fragment's pixel count.
func (f Fragment) Area() int { return len(f.Pixels) }

// Layer is one finalized layer plan in reveal order.
type Layer struct {
	Fragments  []Fragment
	Dominant   palette.Color
	Area       int
	Brightness float64
	ForceTop   bool
	// Mixed marks layers merged from more than one color; their file
	// names omit the color suffix.
	Mixed bool
	// Clip is set when the layer came out of a clip-window expansion.
	Clip *image.Rectangle
	// Z is the stacking depth, forceTop layers above all others.
	Z int
}

// bucket is the working grouping during packing, before finalization.
type bucket struct {
	fragments []Fragment
	colors    []palette.Color       // first-seen order, for dominant ties
	areas     map[palette.Color]int // area per color
	area      int
	expanded  bool // produced by clip-window expansion, exempt from merging
	clip      *image.Rectangle
	order     int // first-appearance sequence
}

func newBucket(order int) *bucket {
	return &bucket{areas: make(map[palette.Color]int), order: order}
}

func (b *bucket) add(f Fragment) {
	c := f.Region.Color
	if _, ok := b.areas[c]; !ok {
		b.colors = append(b.colors, c)
	}
	b.areas[c] += f.Area()
	b.area += f.Area()
	b.fragments = append(b.fragments, f)
}

// dominant returns the bucket color with the largest area; ties keep the
// first-seen color.
func (b *bucket) dominant() palette.Color {
	best := b.colors[0]
	for _, c := range b.colors[1:] {
		if b.areas[c] > b.areas[best] {
			best = c
		}
	}
	return best
}

func (b *bucket) splittable() bool {
	if len(b.fragments) >= 2 {
		return true
	}
	return len(b.fragments) == 1 && len(b.fragments[0].Pixels) >= 2
}

// Pack turns a region list into at most opts.TargetLayers ordered layer
// plans. It returns fewer only when splitting is structurally impossible
// (every bucket down to single pixels) or the raster had a single region,
// which by policy maps to a single layer.
func Pack(regions []*segment.Region, width int, opts Options) []Layer {
	if len(regions) == 0 || opts.TargetLayers < 1 {
		return nil
	}

	buckets := groupByColor(regions)
	if len(regions) > 1 {
		buckets = expandDetailed(buckets, width, opts.SplitEntryThreshold)
		buckets = mergeDown(buckets, opts.TargetLayers)
		buckets = splitUp(buckets, opts.TargetLayers)
		buckets = selectRepresentatives(buckets, opts)
	}
	return order(buckets, opts)
}

// groupByColor seeds the packing: all regions of one color start in one bucket,
// bucket order by first appearance. A solid-color flag keeps single-layer
// coverage through this step.
func groupByColor(regions []*segment.Region) []*bucket {
	byColor := make(map[palette.Color]*bucket)
	var buckets []*bucket
	for _, reg := range regions {
		b, ok := byColor[reg.Color]
		if !ok {
			b = newBucket(len(buckets))
			byColor[reg.Color] = b
			buckets = append(buckets, b)
		}
		b.add(Fragment{Region: reg, Pixels: reg.Pixels})
	}
	return buckets
}

// expandDetailed splits a color holding more regions than the entry
// threshold into two or three clip-window pieces before any merging
// runs, so finely detailed ornamentation cannot collapse into a single
// overplotted layer. Three pieces when the count reaches twice the
// threshold, two otherwise.
func expandDetailed(buckets []*bucket, width, threshold int) []*bucket {
	if threshold <= 0 {
		return buckets
	}
	var out []*bucket
	for _, b := range buckets {
		if len(b.fragments) <= threshold {
			out = append(out, b)
			continue
		}
		pieces := 2
		if len(b.fragments) >= 2*threshold {
			pieces = 3
		}
		expanded := expandBucket(b, width, pieces, len(out))
		if len(expanded) < 2 {
			out = append(out, b)
			continue
		}
		out = append(out, expanded...)
	}
	for i, b := range out {
		b.order = i
	}
	return out
}

// expandBucket slices b's bounding box into windows and rebuilds one
// bucket per window from the pixels that fall inside it. Windows that
// catch nothing are dropped.
func expandBucket(b *bucket, width, pieces, orderBase int) []*bucket {
	bbox := b.fragments[0].Region.Bounds
	for _, f := range b.fragments[1:] {
		bbox = bbox.Union(f.Region.Bounds)
	}
	windows := bisectWindows(bbox, pieces)
	if len(windows) < 2 {
		return nil
	}

	out := make([]*bucket, 0, len(windows))
	for i := range windows {
		win := windows[i]
		nb := newBucket(orderBase + len(out))
		nb.expanded = true
		nb.clip = &win
		for _, f := range b.fragments {
			if !f.Region.Bounds.Overlaps(win) {
				continue
			}
			var pixels []int
			for _, idx := range f.Pixels {
				if pointIn(idx, width, win) {
					pixels = append(pixels, idx)
				}
			}
			if len(pixels) == 0 {
				continue
			}
			nb.add(Fragment{Region: f.Region, Pixels: pixels, Window: &win})
		}
		if nb.area > 0 {
			out = append(out, nb)
		}
	}
	return out
}

// bisectWindows cuts rect into the requested number of pieces, vertical
// split first, then a horizontal split of the second half, falling back
// to whichever axis still has room. Returns nil when rect is too small
// to cut at all.
func bisectWindows(rect image.Rectangle, pieces int) []image.Rectangle {
	w, h := rect.Dx(), rect.Dy()
	var first, second image.Rectangle
	switch {
	case w >= 2:
		mid := rect.Min.X + w/2
		first = image.Rect(rect.Min.X, rect.Min.Y, mid, rect.Max.Y)
		second = image.Rect(mid, rect.Min.Y, rect.Max.X, rect.Max.Y)
	case h >= 2:
		mid := rect.Min.Y + h/2
		first = image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, mid)
		second = image.Rect(rect.Min.X, mid, rect.Max.X, rect.Max.Y)
	default:
		return nil
	}
	if pieces < 3 {
		return []image.Rectangle{first, second}
	}
	// Alternate the axis for the third cut.
	var subA, subB image.Rectangle
	switch {
	case second.Dy() >= 2:
		mid := second.Min.Y + second.Dy()/2
		subA = image.Rect(second.Min.X, second.Min.Y, second.Max.X, mid)
		subB = image.Rect(second.Min.X, mid, second.Max.X, second.Max.Y)
	case second.Dx() >= 2:
		mid := second.Min.X + second.Dx()/2
		subA = image.Rect(second.Min.X, second.Min.Y, mid, second.Max.Y)
		subB = image.Rect(mid, second.Min.Y, second.Max.X, second.Max.Y)
	default:
		return []image.Rectangle{first, second}
	}
	return []image.Rectangle{first, subA, subB}
}

func pointIn(idx, width int, rect image.Rectangle) bool {
	return image.Pt(idx%width, idx/width).In(rect)
}

// mergeDown folds the two smallest-area buckets into one while over
// the layer budget, re-sorting by area every iteration. Clip-window
// pieces from the expansion never merge (that would undo it); when
// fewer than two mergeable buckets remain the overflow is left for
// selectRepresentatives.
func mergeDown(buckets []*bucket, target int) []*bucket {
	for len(buckets) > target {
		lo1, lo2 := -1, -1
		for i, b := range buckets {
			if b.expanded {
				continue
			}
			switch {
			case lo1 < 0 || b.area < buckets[lo1].area:
				lo2 = lo1
				lo1 = i
			case lo2 < 0 || b.area < buckets[lo2].area:
				lo2 = i
			}
		}
		if lo1 < 0 || lo2 < 0 {
			break
		}
		dst, src := lo1, lo2
		if buckets[dst].order > buckets[src].order {
			dst, src = src, dst
		}
		for _, f := range buckets[src].fragments {
			buckets[dst].add(f)
		}
		buckets = append(buckets[:src], buckets[src+1:]...)
	}
	return buckets
}

// splitUp bisects the largest splittable bucket while under the layer
// budget. Multiple fragments partition by greedy area balance
// in fragment order; a lone fragment halves its pixel list by iteration
// order, a deliberate approximation that ignores geometry. Stops early
// when nothing splittable remains.
func splitUp(buckets []*bucket, target int) []*bucket {
	for len(buckets) < target {
		pick := -1
		for i, b := range buckets {
			if !b.splittable() {
				continue
			}
			if pick < 0 || b.area > buckets[pick].area {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		a, b := bisectBucket(buckets[pick])
		buckets = append(buckets[:pick], append([]*bucket{a, b}, buckets[pick+1:]...)...)
		for i, bk := range buckets {
			bk.order = i
		}
	}
	return buckets
}

// bisectBucket splits one bucket in two, preserving expansion flags.
func bisectBucket(b *bucket) (*bucket, *bucket) {
	left, right := newBucket(b.order), newBucket(b.order+1)
	left.expanded, right.expanded = b.expanded, b.expanded
	left.clip, right.clip = b.clip, b.clip

	if len(b.fragments) >= 2 {
		for _, f := range b.fragments {
			if left.area <= right.area {
				left.add(f)
			} else {
				right.add(f)
			}
		}
		return left, right
	}

	f := b.fragments[0]
	half := len(f.Pixels) / 2
	left.add(Fragment{Region: f.Region, Pixels: f.Pixels[:half], Window: f.Window})
	right.add(Fragment{Region: f.Region, Pixels: f.Pixels[half:], Window: f.Window})
	return left, right
}

// selectRepresentatives handles expansion overshoot: when more buckets
// remain than the budget, keep one bucket per color walking the reveal
// order, then fill the remaining slots in original order. Every color present
// keeps at least one layer whenever the budget allows.
func selectRepresentatives(buckets []*bucket, opts Options) []*bucket {
	if len(buckets) <= opts.TargetLayers {
		return buckets
	}
	ranked := make([]*bucket, len(buckets))
	copy(ranked, buckets)
	sortByReveal(ranked, opts)

	keep := make(map[*bucket]bool, opts.TargetLayers)
	seen := make(map[palette.Color]bool)
	for _, b := range ranked {
		if len(keep) == opts.TargetLayers {
			break
		}
		c := b.dominant()
		if seen[c] {
			continue
		}
		seen[c] = true
		keep[b] = true
	}
	for _, b := range buckets {
		if len(keep) == opts.TargetLayers {
			break
		}
		keep[b] = true
	}

	out := make([]*bucket, 0, opts.TargetLayers)
	for _, b := range buckets {
		if keep[b] {
			out = append(out, b)
		}
	}
	return out
}
