// Package segment splits a quantized raster into maximal 4-connected
// same-color regions.
//
// Connectivity is expressed through row-major index arithmetic over the
// raster grid with an explicit visited bitmap and an explicit stack, so
// large images cannot hit recursion depth limits. Each pixel is visited
// exactly once; total work is O(width*height).
package segment

import (
	"image"

	"github.com/flagstack/flagstack/pkg/palette"
	"github.com/flagstack/flagstack/pkg/raster"
)

// Region is a maximal 4-connected set of opaque pixels sharing one
// quantized color. Pixels holds row-major indices in discovery order;
// that order is load-bearing for the packer's pixel-span splits.
type Region struct {
	Color  palette.Color
	Pixels []int
	Bounds image.Rectangle
}

// Area returns the pixel count.
func (r *Region) Area() int { return len(r.Pixels) }

// Regions flood-fills the quantized raster into its connected regions.
// Transparent pixels are visited but belong to no region. Two same-color
// areas that are not 4-connected stay distinct regions, which lets the
// packer put separated stripes of one color on different layers.
func Regions(q *raster.Raster) []*Region {
	w, h := q.Width(), q.Height()
	visited := make([]bool, w*h)
	var regions []*Region
	stack := make([]int, 0, 256)

	for start := 0; start < w*h; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		if _, _, _, alpha := q.Pixel(start); alpha == 0 {
			continue
		}

		color := q.Color(start)
		reg := &Region{Color: color}
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY

		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			reg.Pixels = append(reg.Pixels, idx)

			x, y := idx%w, idx/w
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			if y > 0 {
				pushIfSame(q, visited, &stack, idx-w, color)
			}
			if y < h-1 {
				pushIfSame(q, visited, &stack, idx+w, color)
			}
			if x > 0 {
				pushIfSame(q, visited, &stack, idx-1, color)
			}
			if x < w-1 {
				pushIfSame(q, visited, &stack, idx+1, color)
			}
		}

		reg.Bounds = image.Rect(minX, minY, maxX+1, maxY+1)
		regions = append(regions, reg)
	}
	return regions
}

// pushIfSame marks and stacks a neighbor when it is opaque and matches
// the seed color exactly. Marking happens at push time so no pixel can
// enter the stack twice.
func pushIfSame(q *raster.Raster, visited []bool, stack *[]int, idx int, color palette.Color) {
	if visited[idx] {
		return
	}
	if _, _, _, alpha := q.Pixel(idx); alpha == 0 {
		return
	}
	if q.Color(idx) != color {
		return
	}
	visited[idx] = true
	*stack = append(*stack, idx)
}
