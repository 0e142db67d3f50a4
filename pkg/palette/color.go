package palette

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// NearWhiteFloor is the per-channel minimum for a color to count as
// near-white. Near-white pixels are background, never fill seeds.
const NearWhiteFloor = 250

// Color is an opaque 24-bit RGB value. Transparency is a property of
// raster pixels, not of colors; "no color" is expressed by absence.
// The canonical textual form is the lowercase 6-hex-digit string.
type Color struct {
	R, G, B uint8
}

// RGB builds a Color from channel values.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Hex returns the canonical lowercase representation, e.g. "#bc002d".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Parse normalizes a paint value to a Color. It accepts "#rgb", "#rrggbb"
// and "rgb(r,g,b)"/"rgba(r,g,b,a)" forms. Keyword paints ("none",
// "transparent"), paint-server references ("url(#grad)") and anything else
// unrecognized report ok=false.
func Parse(s string) (Color, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "" || s == "none" || s == "transparent":
		return Color{}, false
	case strings.HasPrefix(s, "url("):
		return Color{}, false
	case strings.HasPrefix(s, "#"):
		cf, err := colorful.Hex(s)
		if err != nil {
			return Color{}, false
		}
		r, g, b := cf.Clamped().RGB255()
		return Color{R: r, G: g, B: b}, true
	case strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba("):
		return parseRGBFunc(s)
	}
	return Color{}, false
}

// parseRGBFunc handles rgb()/rgba() functional notation. An rgba() alpha
// of zero is treated as no paint.
func parseRGBFunc(s string) (Color, bool) {
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return Color{}, false
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) < 3 {
		return Color{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		var v int
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[i]), "%d", &v); err != nil {
			return Color{}, false
		}
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		ch[i] = uint8(v)
	}
	if len(parts) >= 4 {
		var a float64
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[3]), "%g", &a); err == nil && a == 0 {
			return Color{}, false
		}
	}
	return Color{R: ch[0], G: ch[1], B: ch[2]}, true
}

// DistanceSq returns the squared Euclidean RGB distance between two colors.
// Kept in integer space: the hot paths compare against squared thresholds.
func DistanceSq(a, b Color) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

// Luminance returns the perceptual brightness of c in [0,1], computed as
// Rec. 709 luma over linearized RGB.
func (c Color) Luminance() float64 {
	cf := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	r, g, b := cf.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// NearWhite reports whether every channel is at or above NearWhiteFloor.
func (c Color) NearWhite() bool {
	return c.R >= NearWhiteFloor && c.G >= NearWhiteFloor && c.B >= NearWhiteFloor
}
