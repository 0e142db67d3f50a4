package palette

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// kmeansSampleStride thins the observation set so clustering stays fast
// on full-size rasters.
const kmeansSampleStride = 3

// KMeansCandidates clusters the opaque pixels of img into at most k
// colors and returns the cluster centers in cluster order. It is an
// alternative candidate source for raster-only inputs; the centers still
// pass through Simplify's acceptance rule like any other candidates.
func KMeansCandidates(img image.Image, k int, alphaFloor uint8) ([]Color, error) {
	var obs clusters.Observations
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += kmeansSampleStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += kmeansSampleStride {
			px := img.At(x, y)
			_, _, _, a := px.RGBA()
			if uint8(a>>8) < alphaFloor {
				continue
			}
			cf, ok := colorful.MakeColor(px)
			if !ok {
				continue
			}
			obs = append(obs, clusters.Coordinates{cf.R, cf.G, cf.B})
		}
	}
	if len(obs) == 0 {
		return nil, nil
	}
	if k > len(obs) {
		k = len(obs)
	}
	km := kmeans.New()
	cls, err := km.Partition(obs, k)
	if err != nil {
		return nil, err
	}
	out := make([]Color, 0, len(cls))
	for _, cl := range cls {
		cf := colorful.Color{R: cl.Center[0], G: cl.Center[1], B: cl.Center[2]}
		r, g, b := cf.Clamped().RGB255()
		out = append(out, Color{R: r, G: g, B: b})
	}
	return out, nil
}
