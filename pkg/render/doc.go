// Package render turns packed layer plans into image artifacts.
//
// # Overview
//
// This package is the output end of the stacking pipeline. Given the
// quantized raster and the layer plans produced by [stack.Pack], it
// provides:
//
//   - Per-layer rendering ([Layer]): transparent canvases with the
//     plan's pixels copied verbatim
//   - Progressive compositing ([Composite]) and pixel diffing
//     ([DiffRatio]) for reveal verification
//   - PNG encoding sinks ([WritePNG], [EncodePNG])
//   - Contact sheets ([Sheet]) and annotated SVG overlays ([Overlay])
//     for inspection
//   - Packing-decision graphs in Graphviz DOT ([ToDOT], [RenderDOTSVG])
//
// # Layer Rendering
//
// [Layer] never repaints: every output pixel is a byte copy from the
// quantized raster, so compositing all layers reproduces the quantized
// image exactly.
//
//	img := render.Layer(quantized, plan)
//	err := render.WritePNG(f, img)
//
// # Verification
//
// [Composite] flattens layers bottom to top and [DiffRatio] measures
// how much of the canvas changed between two composites. The verify
// command builds the progressive reveal from these two calls.
//
//	flat := render.Composite(w, h, imgs...)
//	ratio, err := render.DiffRatio(raster.FromImage(flat), want)
//
// # Inspection
//
// [Sheet] tiles layer images onto one grid, [Overlay] writes an SVG
// tracing region bounds and clip windows over the quantized backdrop,
// and [ToDOT] emits the layer chain in reveal order for Graphviz.
//
//	dot := render.ToDOT(layers, render.DOTOptions{Detailed: true})
//	svg, err := render.RenderDOTSVG(dot)
package render
