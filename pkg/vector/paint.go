// Package vector handles the SVG side of the pipeline: resolving source
// images on disk, scanning declared paints for palette seeding, reading
// intrinsic dimensions, and rasterizing markup through rsvg-convert.
package vector

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/flagstack/flagstack/pkg/errors"
	"github.com/flagstack/flagstack/pkg/palette"
)

// PaintSource tags where a paint declaration was found, so layer
// rewriting can restore paint to the right place.
type PaintSource int

const (
	// PaintAttribute marks paint declared as a fill or stroke attribute.
	PaintAttribute PaintSource = iota
	// PaintStyle marks paint declared inside an inline style attribute.
	PaintStyle
)

func (s PaintSource) String() string {
	if s == PaintStyle {
		return "style"
	}
	return "attribute"
}

// PaintEntry is one distinct declared color with its provenance.
type PaintEntry struct {
	Color  palette.Color
	Source PaintSource
	// Defs is set when the color is first declared inside <defs>,
	// marking overlay content that should stack above field colors.
	Defs bool
}

// ScanPaints walks SVG markup and collects every declared fill and
// stroke color in document order, first occurrence wins. Values that
// normalize to no color (none, transparent, paint-server references)
// are ignored.
func ScanPaints(r io.Reader) ([]PaintEntry, error) {
	dec := xml.NewDecoder(r)
	s := paintScanner{seen: make(map[palette.Color]bool)}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "scan svg paints")
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "defs" {
				s.defs++
			}
			for _, attr := range el.Attr {
				switch attr.Name.Local {
				case "fill", "stroke":
					s.record(attr.Value, PaintAttribute)
				case "style":
					for _, val := range stylePaints(attr.Value) {
						s.record(val, PaintStyle)
					}
				}
			}
		case xml.EndElement:
			if el.Name.Local == "defs" {
				s.defs--
			}
		}
	}
	return s.entries, nil
}

// Colors flattens entries to candidate colors in document order.
func Colors(entries []PaintEntry) []palette.Color {
	out := make([]palette.Color, len(entries))
	for i, e := range entries {
		out[i] = e.Color
	}
	return out
}

// DefsColors returns the set of colors declared inside <defs>.
func DefsColors(entries []PaintEntry) map[palette.Color]bool {
	out := make(map[palette.Color]bool)
	for _, e := range entries {
		if e.Defs {
			out[e.Color] = true
		}
	}
	return out
}

type paintScanner struct {
	entries []PaintEntry
	seen    map[palette.Color]bool
	defs    int
}

func (s *paintScanner) record(raw string, src PaintSource) {
	c, ok := palette.Parse(raw)
	if !ok || s.seen[c] {
		return
	}
	s.seen[c] = true
	s.entries = append(s.entries, PaintEntry{Color: c, Source: src, Defs: s.defs > 0})
}

// stylePaints pulls fill and stroke values out of an inline style
// declaration list.
func stylePaints(style string) []string {
	var vals []string
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(strings.ToLower(prop)) {
		case "fill", "stroke":
			vals = append(vals, strings.TrimSpace(val))
		}
	}
	return vals
}
