package vector

import (
	"fmt"
	"math"
	"strings"

	rsvg "github.com/rustyoz/svg"

	"github.com/flagstack/flagstack/pkg/errors"
)

// Dimensions reads the intrinsic size of SVG markup from its viewBox,
// falling back to the width and height attributes when no viewBox is
// declared.
func Dimensions(markup []byte) (float64, float64, error) {
	parsed, err := rsvg.ParseSvg(string(markup), "", 1.0)
	if err != nil {
		return 0, 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse svg")
	}

	box := strings.ReplaceAll(parsed.ViewBox, ",", " ")
	if fields := strings.Fields(box); len(fields) == 4 {
		w, okW := parseLength(fields[2])
		h, okH := parseLength(fields[3])
		if okW && okH {
			return w, h, nil
		}
	}

	w, okW := parseLength(parsed.Width)
	h, okH := parseLength(parsed.Height)
	if okW && okH {
		return w, h, nil
	}
	return 0, 0, errors.New(errors.ErrCodeInvalidInput, "svg declares no usable viewBox or width/height")
}

// TargetSize scales intrinsic dimensions to renderWidth preserving the
// aspect ratio. Unusable intrinsics fall back to a square canvas.
func TargetSize(w, h float64, renderWidth int) (int, int) {
	if w <= 0 || h <= 0 {
		return renderWidth, renderWidth
	}
	th := int(math.Round(float64(renderWidth) * h / w))
	if th < 1 {
		th = 1
	}
	return renderWidth, th
}

// parseLength reads a positive SVG length, tolerating unit suffixes
// like px or pt. Percentages carry no intrinsic size and are rejected.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, "%") {
		return 0, false
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%f", &v); err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
