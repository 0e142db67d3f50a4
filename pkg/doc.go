// Package pkg provides the core libraries for Flagstack layer building.
//
// # Overview
//
// Flagstack slices flag images into a fixed number of ordered,
// non-overlapping transparent layers for progressive reveal. The pkg
// directory is organized into three main areas:
//
//  1. Engine - Pure image logic (palette, raster, segment, stack)
//  2. Edges - Inputs and outputs (vector, render, manifest)
//  3. Infrastructure - Orchestration and plumbing (pipeline, cache, errors, observability)
//
// # Architecture
//
// The typical data flow through Flagstack:
//
//	SVG/PNG source
//	         ↓
//	    [vector] package (rasterize + scan paints)
//	         ↓
//	    [palette] package (extract + simplify colors)
//	         ↓
//	    [raster] package (quantize + extend edges)
//	         ↓
//	    [segment] package (4-connected regions)
//	         ↓
//	    [stack] package (merge/split/pack into layers)
//	         ↓
//	    [render] + [manifest] packages (PNG layers + index)
//
// # Quick Start
//
// Build one image's layer stack:
//
//	import (
//	    "context"
//	    "github.com/flagstack/flagstack/pkg/pipeline"
//	    "github.com/flagstack/flagstack/pkg/vector"
//	)
//
//	// 1. Resolve the source
//	src, _ := vector.Resolve("flags/fr.svg")
//
//	// 2. Run the pipeline
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, _ := runner.ProcessImage(context.Background(), src, pipeline.Options{
//	    TargetLayers: 6,
//	    OutDir:       "layers",
//	})
//
//	// 3. The manifest entry lists the written layers in reveal order
//	for _, f := range res.Entry.Files {
//	    fmt.Println(f)
//	}
//
// # Main Packages
//
// ## Engine
//
// [palette] - Canonical colors, weighted histograms, and greedy palette
// simplification with a minimum inter-color distance. Optional k-means
// clustering proposes candidates for raster-only sources.
//
// [raster] - Pixel buffers decoded from PNG: histogram extraction,
// palette quantization with an opacity floor, and bounded edge
// extension that heals anti-aliased seams.
//
// [segment] - 4-connected flood fill over the quantized raster,
// producing one region per contiguous color run in row-major discovery
// order.
//
// [stack] - Packs regions into the target layer count: merges same
// colors, folds small entries, splits large layers, and orders the
// result bottom-up by brightness with forced-top overlays last.
//
// ## Edges
//
// [vector] - Source discovery and SVG rasterization via rsvg-convert,
// plus paint scanning that seeds the palette from the markup itself.
//
// [render] - Layer compositing and sinks: per-layer PNG cutouts, the
// full composite, contact sheets, SVG overlays, and the packing graph
// via Graphviz.
//
// [manifest] - The per-image output index consumed by reveal clients,
// with file and MongoDB stores.
//
// ## Infrastructure
//
// [pipeline] - Orchestration used by every command: render → palette →
// quantize → segment → pack → encode, with batch fan-out, skip
// semantics, and read-through caching.
//
// [cache] - Content-addressed artifact cache with file, Redis, and
// null backends.
//
// [errors] - Structured error codes separating skippable per-image
// conditions from hard failures, plus input validators.
//
// [observability] - Pluggable hook points for cache and HTTP
// instrumentation.
//
// [buildinfo] - Version metadata injected at build time.
//
// # Common Workflows
//
// Inspect a palette without writing output:
//
//	r, _ := raster.Load("flags/fr.png")
//	for _, w := range r.Histogram(24) {
//	    fmt.Printf("%s %d\n", w.Color.Hex(), w.Count)
//	}
//
// Run a batch with caching:
//
//	store, _ := cache.NewFileCache(dir)
//	runner := pipeline.NewRunner(store, nil, logger)
//	batch, _ := runner.Run(ctx, sources, opts)
//
// Serve built layers:
//
//	m, _ := manifest.NewFileStore("layers/manifest.json").Load(ctx)
//	for _, key := range m.Keys() {
//	    fmt.Println(key, m.Entries[key].Files)
//	}
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...              # All tests
//	go test ./pkg/stack/...        # Specific package
//	go test -run TestPack ./...    # Specific behavior
//
// [palette]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/palette
// [raster]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/raster
// [segment]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/segment
// [stack]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/stack
// [vector]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/vector
// [render]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/render
// [manifest]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/manifest
// [pipeline]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/cache
// [errors]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/errors
// [observability]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/flagstack/flagstack/pkg/buildinfo
package pkg
