package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/flagstack/flagstack/pkg/stack"
)

// DOTOptions configures packing-graph rendering.
type DOTOptions struct {
	// Detailed includes area, fragment count, and clip dimensions in
	// node labels. When false, only the layer index and color are shown.
	Detailed bool
}

// ToDOT converts a packed stack to Graphviz DOT format, one node per
// layer chained in reveal order. The resulting DOT string can be
// rendered with [RenderDOTSVG].
//
// Mixed layers (merged from several colors) are rendered with dashed
// outlines; forced-top layers get a heavier border.
func ToDOT(layers []stack.Layer, opts DOTOptions) string {
	ordered := slices.Clone(layers)
	slices.SortFunc(ordered, func(a, b stack.Layer) int { return a.Z - b.Z })

	var buf bytes.Buffer
	buf.WriteString("digraph stack {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, l := range ordered {
		attrs := dotAttrs(l, dotLabel(l, opts.Detailed))
		fmt.Fprintf(&buf, "  %q [%s];\n", dotID(l), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for i := 1; i < len(ordered); i++ {
		fmt.Fprintf(&buf, "  %q -> %q;\n", dotID(ordered[i-1]), dotID(ordered[i]))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func dotID(l stack.Layer) string {
	return fmt.Sprintf("layer-%02d", l.Z)
}

func dotLabel(l stack.Layer, detailed bool) string {
	head := fmt.Sprintf("%02d %s", l.Z, l.Dominant.Hex())
	if !detailed {
		return head
	}

	parts := []string{
		fmt.Sprintf("area: %d", l.Area),
		fmt.Sprintf("fragments: %d", len(l.Fragments)),
	}
	if l.Mixed {
		parts = append(parts, "mixed")
	}
	if l.Clip != nil {
		parts = append(parts, fmt.Sprintf("clip: %dx%d", l.Clip.Dx(), l.Clip.Dy()))
	}
	if l.ForceTop {
		parts = append(parts, "forced top")
	}

	return head + "\n" + strings.Join(parts, "\n")
}

func dotAttrs(l stack.Layer, label string) []string {
	font := "black"
	if l.Brightness < 0.35 {
		font = "white"
	}
	attrs := []string{
		fmt.Sprintf("label=%q", label),
		fmt.Sprintf("fillcolor=%q", l.Dominant.Hex()),
		fmt.Sprintf("fontcolor=%s", font),
	}
	if l.Mixed {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	if l.ForceTop {
		attrs = append(attrs, "penwidth=2")
	}
	return attrs
}

// RenderDOTSVG renders a DOT graph to SVG using Graphviz.
func RenderDOTSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
