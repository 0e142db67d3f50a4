package render

import (
	"encoding/base64"
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"

	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/stack"
)

const (
	boundsStyle = "fill:none;stroke:#ff00ff;stroke-width:1"
	windowStyle = "fill:none;stroke:#00ffff;stroke-width:1;stroke-dasharray:4 2"
	labelStyle  = "font-family:monospace;font-size:12px;fill:#ff00ff"
)

// Overlay writes an SVG diagnostic view of a packed stack: the quantized
// raster as backdrop, every fragment's region bounds traced on top, and
// clip windows dashed where expansion carved a color up. Each layer is
// labeled with its stacking depth and dominant color.
func Overlay(w io.Writer, q *raster.Raster, layers []stack.Layer) error {
	backdrop, err := EncodePNG(q.NRGBA())
	if err != nil {
		return err
	}

	canvas := svg.New(w)
	canvas.Start(q.Width(), q.Height())
	canvas.Image(0, 0, q.Width(), q.Height(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(backdrop))

	for _, l := range layers {
		for _, f := range l.Fragments {
			b := f.Region.Bounds
			canvas.Rect(b.Min.X, b.Min.Y, b.Dx(), b.Dy(), boundsStyle)
			if f.Window != nil {
				canvas.Rect(f.Window.Min.X, f.Window.Min.Y, f.Window.Dx(), f.Window.Dy(), windowStyle)
			}
		}
		if len(l.Fragments) > 0 {
			b := l.Fragments[0].Region.Bounds
			canvas.Text(b.Min.X+2, b.Min.Y+12, fmt.Sprintf("%02d %s", l.Z, l.Dominant.Hex()), labelStyle)
		}
	}

	canvas.End()
	return nil
}
