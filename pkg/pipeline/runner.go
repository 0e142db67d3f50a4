package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flagstack/flagstack/pkg/cache"
	"github.com/flagstack/flagstack/pkg/errors"
	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/observability"
	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/render"
	"github.com/flagstack/flagstack/pkg/segment"
	"github.com/flagstack/flagstack/pkg/stack"
	"github.com/flagstack/flagstack/pkg/vector"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// ProcessImage runs the complete render → palette → segment → pack →
// encode pipeline for one source image and writes its layer stack under
// the output directory. Skippable conditions (no opaque pixels, no
// palette) come back as coded errors that errors.IsSkip recognizes.
func (r *Runner) ProcessImage(ctx context.Context, src vector.Source, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	start := time.Now()
	observability.Pipeline().OnImageStart(ctx, src.Key)

	result, err := r.processImage(ctx, src, opts)
	if err != nil {
		if errors.IsSkip(err) {
			observability.Pipeline().OnImageSkipped(ctx, src.Key, errors.UserMessage(err))
		}
		observability.Pipeline().OnImageComplete(ctx, src.Key, 0, time.Since(start), err)
		return nil, err
	}

	observability.Pipeline().OnImageComplete(ctx, src.Key, result.Stats.Layers, time.Since(start), nil)
	opts.Logger.Info("built image",
		"key", src.Key,
		"layers", result.Stats.Layers,
		"regions", result.Stats.Regions,
		"palette", result.Stats.PaletteSize,
		"duration", time.Since(start))
	return result, nil
}

func (r *Runner) processImage(ctx context.Context, src vector.Source, opts Options) (*Result, error) {
	result := &Result{Key: src.Key}
	meta := opts.Atlas[src.Key]

	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", src.Path)
	}

	// Stage 1: Render
	renderStart := time.Now()
	source, rasterHit, err := r.RenderWithCacheInfo(ctx, src, data, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.RenderTime = time.Since(renderStart)
	result.Stats.Width = source.Width()
	result.Stats.Height = source.Height()
	result.CacheInfo.RasterHit = rasterHit
	observability.Pipeline().OnRenderComplete(ctx, src.Key, source.Width(), source.Height(), result.Stats.RenderTime)
	opts.Logger.Debug("rendered source",
		"key", src.Key,
		"width", source.Width(),
		"height", source.Height(),
		"cache_hit", rasterHit,
		"duration", result.Stats.RenderTime)

	if source.OpaqueCount(opts.OpacityFloor) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyRaster, "%s has no opaque pixels", src.Key)
	}

	// Stage 2: Palette, quantization, edge repair
	paletteStart := time.Now()
	var markup []byte
	if src.SVG {
		markup = data
	}
	pal, defs, err := BuildPalette(markup, source, opts)
	if err != nil {
		return nil, err
	}
	forceTop := ForceTopColors(pal, defs, meta.ForceTop)
	quantized := source.Quantize(pal, opts.OpacityFloor)
	quantized.ExtendEdges(opts.EdgeFillSpan)
	result.Stats.PaletteTime = time.Since(paletteStart)
	result.Stats.PaletteSize = pal.Len()
	observability.Pipeline().OnPaletteComplete(ctx, src.Key, pal.Len(), result.Stats.PaletteTime)
	opts.Logger.Debug("quantized raster",
		"key", src.Key,
		"palette", pal.Len(),
		"force_top", len(forceTop),
		"duration", result.Stats.PaletteTime)

	// Stage 3: Segment
	segmentStart := time.Now()
	regions := segment.Regions(quantized)
	result.Stats.SegmentTime = time.Since(segmentStart)
	result.Stats.Regions = len(regions)
	observability.Pipeline().OnSegmentComplete(ctx, src.Key, len(regions), result.Stats.SegmentTime)
	opts.Logger.Debug("segmented regions",
		"key", src.Key,
		"regions", len(regions),
		"duration", result.Stats.SegmentTime)

	// Stage 4: Pack
	packStart := time.Now()
	plans := stack.Pack(regions, quantized.Width(), opts.StackOptions(forceTop))
	result.Stats.PackTime = time.Since(packStart)
	result.Stats.Layers = len(plans)
	observability.Pipeline().OnPackComplete(ctx, src.Key, len(plans), result.Stats.PackTime)
	opts.Logger.Debug("packed layers",
		"key", src.Key,
		"layers", len(plans),
		"duration", result.Stats.PackTime)

	// Stage 5: Encode and write
	encodeStart := time.Now()
	entry, files, layersHit, err := r.encodeStack(ctx, src, data, source, quantized, plans, meta, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.EncodeTime = time.Since(encodeStart)
	result.CacheInfo.LayersHit = layersHit
	result.Entry = entry
	result.Files = files
	observability.Pipeline().OnEncodeComplete(ctx, src.Key, len(files), result.Stats.EncodeTime)
	opts.Logger.Debug("encoded stack",
		"key", src.Key,
		"files", len(files),
		"cache_hit", layersHit,
		"duration", result.Stats.EncodeTime)

	return result, nil
}

// RenderWithCacheInfo loads the source raster with caching and reports
// whether it came from cache. PNG sources decode directly and are never
// cached; SVG sources go through rsvg-convert, which is the expensive
// stage the raster cache exists for.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, src vector.Source, data []byte, opts Options) (*raster.Raster, bool, error) {
	if !src.SVG {
		decoded, err := raster.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, false, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s", src.Path)
		}
		return decoded, false, nil
	}

	key := r.Keyer.RasterKey(cache.Hash(data), cache.RasterKeyOpts{Width: opts.RenderWidth})

	if !opts.Refresh {
		if png, ok := r.cacheGet(ctx, key, "raster"); ok {
			if decoded, err := raster.Decode(bytes.NewReader(png)); err == nil {
				return decoded, true, nil
			}
			// Undecodable cache entries fall through to recompute.
		}
	}

	width, height := opts.RenderWidth, 0
	if w, h, err := vector.Dimensions(data); err == nil {
		width, height = vector.TargetSize(w, h, opts.RenderWidth)
	}
	rendered, err := vector.Rasterize(ctx, data, width, height)
	if err != nil {
		return nil, false, err
	}

	if !opts.Refresh {
		var buf bytes.Buffer
		if err := rendered.EncodePNG(&buf); err == nil {
			r.cacheSet(ctx, key, buf.Bytes(), cache.TTLRaster, "raster")
		}
	}
	return rendered, false, nil
}

// encodeStack writes the layer PNGs and the full image under the image's
// own output subdirectory and assembles the manifest entry. Encoded
// layers are cached by source bytes plus engine fingerprint; a hit skips
// the encode but the files are always written.
func (r *Runner) encodeStack(ctx context.Context, src vector.Source, data []byte, source, quantized *raster.Raster, plans []stack.Layer, meta ImageMeta, opts Options) (manifest.Entry, []string, bool, error) {
	dir := filepath.Join(opts.OutDir, src.Key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return manifest.Entry{}, nil, false, errors.Wrap(errors.ErrCodeStore, err, "create %s", dir)
	}

	hash := buildHash(data, opts.EngineFingerprint(), meta)
	entry := manifest.Entry{
		Key:      src.Key,
		Full:     manifest.FullFile(src.Key),
		Dominant: source.Dominant().Hex(),
		Width:    quantized.Width(),
		Height:   quantized.Height(),
		Anchor:   meta.Anchor,
		BuiltAt:  time.Now().UTC(),
	}

	var files []string
	allHit := len(plans) > 0
	for i, plan := range plans {
		hex := plan.Dominant.Hex()
		fileHex := hex
		if plan.Mixed {
			fileHex = ""
		}
		name := manifest.LayerFile(src.Key, i, fileHex)

		key := r.Keyer.ArtifactKey(hash, cache.ArtifactKeyOpts{Index: i, Hex: hex})
		var png []byte
		if !opts.Refresh {
			if cached, ok := r.cacheGet(ctx, key, "artifact"); ok {
				png = cached
			}
		}
		if png == nil {
			allHit = false
			encoded, err := render.EncodePNG(render.Layer(quantized, plan))
			if err != nil {
				return manifest.Entry{}, nil, false, errors.Wrap(errors.ErrCodeInternal, err, "encode layer %d of %s", i, src.Key)
			}
			png = encoded
			if !opts.Refresh {
				r.cacheSet(ctx, key, png, cache.TTLArtifact, "artifact")
			}
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return manifest.Entry{}, nil, false, errors.Wrap(errors.ErrCodeStore, err, "write %s", path)
		}
		files = append(files, path)
		entry.Files = append(entry.Files, name)
		entry.Colors = append(entry.Colors, hex)
		entry.ZOrder = append(entry.ZOrder, plan.Z)
	}

	full := data
	if src.SVG {
		var buf bytes.Buffer
		if err := source.EncodePNG(&buf); err != nil {
			return manifest.Entry{}, nil, false, errors.Wrap(errors.ErrCodeInternal, err, "encode %s full image", src.Key)
		}
		full = buf.Bytes()
	}
	fullPath := filepath.Join(dir, entry.Full)
	if err := os.WriteFile(fullPath, full, 0o644); err != nil {
		return manifest.Entry{}, nil, false, errors.Wrap(errors.ErrCodeStore, err, "write %s", fullPath)
	}
	files = append(files, fullPath)

	return entry, files, allHit, nil
}

// Run processes all sources concurrently with per-image failure
// isolation: a skipped or failed image is recorded and the batch moves
// on. The returned error is non-nil only when the context was canceled.
func (r *Runner) Run(ctx context.Context, sources []vector.Source, opts Options) (*BatchResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	batch := &BatchResult{BuildID: uuid.NewString()}
	start := time.Now()
	opts.Logger.Info("building stack layers",
		"images", len(sources),
		"build", batch.BuildID,
		"concurrency", opts.Concurrency)

	results := make([]*Result, len(sources))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			res, err := r.ProcessImage(gctx, src, opts)
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				if errors.IsSkip(err) {
					opts.Logger.Warn("skipping image", "key", src.Key, "reason", errors.UserMessage(err))
					batch.Skips = append(batch.Skips, Skip{Key: src.Key, Reason: errors.UserMessage(err)})
				} else {
					opts.Logger.Error("image failed", "key", src.Key, "error", err)
					batch.Failures = append(batch.Failures, Failure{Key: src.Key, Err: err})
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // workers report through batch, never through the group

	for _, res := range results {
		if res != nil {
			batch.Results = append(batch.Results, res)
		}
	}
	batch.Duration = time.Since(start)
	opts.Logger.Info("batch complete",
		"ok", len(batch.Results),
		"skipped", len(batch.Skips),
		"failed", len(batch.Failures),
		"duration", batch.Duration)
	return batch, ctx.Err()
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func (r *Runner) cacheGet(ctx context.Context, key, keyType string) ([]byte, bool) {
	data, ok, err := r.Cache.Get(ctx, key)
	if err != nil || !ok {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return data, true
}

func (r *Runner) cacheSet(ctx context.Context, key string, data []byte, ttl time.Duration, keyType string) {
	if err := r.Cache.Set(ctx, key, data, ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, keyType, len(data))
	}
}

// buildHash keys cached artifacts on the source bytes, the engine
// fingerprint, and the per-image overlay overrides, the only inputs that
// change what the engine emits.
func buildHash(data []byte, fingerprint string, meta ImageMeta) string {
	h := make([]byte, 0, len(data)+len(fingerprint))
	h = append(h, data...)
	h = append(h, fingerprint...)
	tops := slices.Clone(meta.ForceTop)
	slices.Sort(tops)
	for _, hex := range tops {
		h = append(h, hex...)
	}
	return cache.Hash(h)
}
