// Package pipeline provides the core image build pipeline for Flagstack.
//
// This package implements the complete render → palette → segment → pack →
// encode pipeline that turns one source image into an ordered stack of
// transparent layer PNGs plus a manifest entry. Centralizing this logic keeps
// the CLI commands thin and guarantees identical behavior for single-image
// and batch runs.
//
// # Architecture
//
// The pipeline consists of five stages:
//
//  1. Render: load the source (rasterize SVGs through rsvg-convert)
//  2. Palette: extract candidate colors, simplify, quantize, repair edges
//  3. Segment: flood-fill the quantized raster into color regions
//  4. Pack: arrange regions into the fixed layer budget in reveal order
//  5. Encode: write one PNG per layer plus the full image
//
// Every stage is a deterministic function of the source bytes and the
// engine options, so two runs over the same input produce byte-identical
// output.
//
// # Usage
//
// Create a Runner and process images:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{OutDir: "public/layers"}
//	batch, err := runner.Run(ctx, sources, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, res := range batch.Results {
//	    fmt.Println(res.Key, res.Entry.Files)
//	}
//
// Process a single image:
//
//	res, err := runner.ProcessImage(ctx, src, opts)
package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/flagstack/flagstack/pkg/cache"
	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/palette"
	"github.com/flagstack/flagstack/pkg/stack"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Config
// =============================================================================

const (
	// DefaultTargetLayers is the fixed layer budget per image. Six steps
	// is enough for a guessing game without stretching the reveal.
	DefaultTargetLayers = 6

	// DefaultMaxPaletteColors caps the simplified palette size.
	DefaultMaxPaletteColors = 12

	// DefaultMinColorDistance is the minimum Euclidean RGB distance
	// between any two palette colors.
	DefaultMinColorDistance = 60

	// DefaultEdgeFillSpan is how deep the edge extender scans in from
	// each border when repairing rasterizer halos, in pixels.
	DefaultEdgeFillSpan = 4

	// DefaultSplitEntryThreshold is the region count above which a color
	// is eagerly expanded into clip-window pieces.
	DefaultSplitEntryThreshold = 8

	// DefaultOpacityFloor is the alpha below which a pixel counts as
	// transparent.
	DefaultOpacityFloor = 24

	// DefaultNearBlackLuminance demotes layers darker than this in the
	// reveal order.
	DefaultNearBlackLuminance = 0.08

	// DefaultRenderWidth is the rasterization width for SVG sources in
	// pixels. Height follows the intrinsic aspect ratio.
	DefaultRenderWidth = 1280

	// DefaultConcurrency is how many images a batch processes at once.
	DefaultConcurrency = 4

	// DefaultOutDir is where layer files and the manifest land.
	DefaultOutDir = "layers"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the build pipeline.
// This struct supports JSON serialization for config files and tooling.
type Options struct {
	// Engine options
	TargetLayers        int     `json:"target_layers,omitempty"`
	MaxPaletteColors    int     `json:"max_palette_colors,omitempty"`
	MinColorDistance    int     `json:"min_color_distance,omitempty"`
	EdgeFillSpan        int     `json:"edge_fill_span,omitempty"`
	SplitEntryThreshold int     `json:"split_entry_threshold,omitempty"`
	OpacityFloor        uint8   `json:"opacity_floor,omitempty"`
	NearBlackLuminance  float64 `json:"near_black_luminance,omitempty"`
	KMeans              bool    `json:"kmeans,omitempty"` // cluster candidates for raster-only sources

	// Output options
	OutDir      string `json:"out_dir,omitempty"`
	RenderWidth int    `json:"render_width,omitempty"`

	// Batch options
	Concurrency int  `json:"concurrency,omitempty"`
	Refresh     bool `json:"refresh,omitempty"` // bypass the cache entirely

	// Atlas carries optional per-image metadata keyed by image key.
	Atlas map[string]ImageMeta `json:"atlas,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ImageMeta is per-image metadata from atlas.toml: a display name, an
// optional geographic anchor, and overlay colors forced to the top of
// the stack in addition to those detected in the source markup.
type ImageMeta struct {
	Name     string           `json:"name,omitempty"`
	Anchor   *manifest.Anchor `json:"anchor,omitempty"`
	ForceTop []string         `json:"force_top,omitempty"`
}

// Result contains the outputs of processing one image.
type Result struct {
	// Key is the image key the result belongs to.
	Key string

	// Entry is the manifest entry describing the written stack.
	Entry manifest.Entry

	// Files are the paths written under the output directory.
	Files []string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains per-image execution statistics.
type Stats struct {
	Width       int
	Height      int
	PaletteSize int
	Regions     int
	Layers      int
	RenderTime  time.Duration
	PaletteTime time.Duration
	SegmentTime time.Duration
	PackTime    time.Duration
	EncodeTime  time.Duration
}

// CacheInfo tracks cache hits for the cached pipeline stages.
type CacheInfo struct {
	RasterHit bool // Whether the rendered raster came from cache
	LayersHit bool // Whether every encoded layer came from cache
}

// Skip records one skipped image and why. Skips are not failures.
type Skip struct {
	Key    string
	Reason string
}

// Failure records one failed image. The batch continues past it.
type Failure struct {
	Key string
	Err error
}

// BatchResult contains the outcome of a batch run.
type BatchResult struct {
	// BuildID uniquely identifies this batch run.
	BuildID string

	// Results holds one entry per successfully built image.
	Results []*Result

	// Skips holds images that produced no output by policy.
	Skips []Skip

	// Failures holds images that errored. A failed image never aborts
	// the batch.
	Failures []Failure

	// Duration is the wall-clock time of the whole batch.
	Duration time.Duration
}

// Entries collects the manifest entries of all successful results.
func (b *BatchResult) Entries() []manifest.Entry {
	entries := make([]manifest.Entry, 0, len(b.Results))
	for _, res := range b.Results {
		entries = append(entries, res.Entry)
	}
	return entries
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks option ranges and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.TargetLayers == 0 {
		o.TargetLayers = DefaultTargetLayers
	}
	if o.MaxPaletteColors == 0 {
		o.MaxPaletteColors = DefaultMaxPaletteColors
	}
	if o.MinColorDistance == 0 {
		o.MinColorDistance = DefaultMinColorDistance
	}
	if o.EdgeFillSpan == 0 {
		o.EdgeFillSpan = DefaultEdgeFillSpan
	}
	if o.SplitEntryThreshold == 0 {
		o.SplitEntryThreshold = DefaultSplitEntryThreshold
	}
	if o.OpacityFloor == 0 {
		o.OpacityFloor = DefaultOpacityFloor
	}
	if o.NearBlackLuminance == 0 {
		o.NearBlackLuminance = DefaultNearBlackLuminance
	}
	if o.RenderWidth == 0 {
		o.RenderWidth = DefaultRenderWidth
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.OutDir == "" {
		o.OutDir = DefaultOutDir
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	if o.TargetLayers < 1 {
		return fmt.Errorf("target_layers must be at least 1, got %d", o.TargetLayers)
	}
	if o.MaxPaletteColors < 1 {
		return fmt.Errorf("max_palette_colors must be at least 1, got %d", o.MaxPaletteColors)
	}
	if o.MinColorDistance < 0 {
		return fmt.Errorf("min_color_distance must not be negative, got %d", o.MinColorDistance)
	}
	if o.EdgeFillSpan < 0 {
		return fmt.Errorf("edge_fill_span must not be negative, got %d", o.EdgeFillSpan)
	}
	if o.SplitEntryThreshold < 1 {
		return fmt.Errorf("split_entry_threshold must be at least 1, got %d", o.SplitEntryThreshold)
	}
	if o.NearBlackLuminance < 0 || o.NearBlackLuminance >= 1 {
		return fmt.Errorf("near_black_luminance must be in [0, 1), got %g", o.NearBlackLuminance)
	}
	if o.RenderWidth < 1 {
		return fmt.Errorf("render_width must be positive, got %d", o.RenderWidth)
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}

	o.validated = true
	return nil
}

// SimplifyOptions returns the palette acceptance options.
func (o *Options) SimplifyOptions() palette.SimplifyOptions {
	return palette.SimplifyOptions{
		MaxColors:   o.MaxPaletteColors,
		MinDistance: o.MinColorDistance,
	}
}

// StackOptions returns the packing options with the given forceTop set.
func (o *Options) StackOptions(forceTop map[palette.Color]bool) stack.Options {
	return stack.Options{
		TargetLayers:        o.TargetLayers,
		SplitEntryThreshold: o.SplitEntryThreshold,
		NearBlackLuminance:  o.NearBlackLuminance,
		ForceTop:            forceTop,
	}
}

// EngineFingerprint hashes every option that changes engine output. It is
// part of the cache key for encoded layers, so changing an engine knob
// invalidates previously cached artifacts.
func (o *Options) EngineFingerprint() string {
	fp := struct {
		TargetLayers        int     `json:"target_layers"`
		MaxPaletteColors    int     `json:"max_palette_colors"`
		MinColorDistance    int     `json:"min_color_distance"`
		EdgeFillSpan        int     `json:"edge_fill_span"`
		SplitEntryThreshold int     `json:"split_entry_threshold"`
		OpacityFloor        uint8   `json:"opacity_floor"`
		NearBlackLuminance  float64 `json:"near_black_luminance"`
		KMeans              bool    `json:"kmeans"`
		RenderWidth         int     `json:"render_width"`
	}{
		o.TargetLayers,
		o.MaxPaletteColors,
		o.MinColorDistance,
		o.EdgeFillSpan,
		o.SplitEntryThreshold,
		o.OpacityFloor,
		o.NearBlackLuminance,
		o.KMeans,
		o.RenderWidth,
	}
	data, _ := json.Marshal(fp)
	return cache.Hash(data)
}
