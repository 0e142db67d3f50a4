package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/pipeline"
	"github.com/flagstack/flagstack/pkg/vector"
)

// manifestFile is the index written next to the layer directories.
const manifestFile = "manifest.json"

// buildFlags holds the command-line flags for the build command. Flags
// override flagstack.toml only when explicitly set.
type buildFlags struct {
	out         string // output directory
	atlas       string // atlas.toml path
	layers      int    // target layer count
	colors      int    // max palette colors
	width       int    // render width for SVG sources
	concurrency int    // parallel image workers
	kmeans      bool   // cluster palette candidates for raster sources
	refresh     bool   // recompute even on cache hit
	noCache     bool   // disable the cache entirely
}

// buildCommand creates the build command that runs the full pipeline.
func (c *CLI) buildCommand() *cobra.Command {
	flags := buildFlags{}

	cmd := &cobra.Command{
		Use:   "build [inputs...]",
		Short: "Segment images into reveal layers and write the manifest",
		Long: `Build layer stacks from flag images.

Each input is an SVG or PNG file, or a directory scanned for them. Every
image is rendered, quantized against its simplified palette, segmented
into color regions, and packed into a fixed number of non-overlapping
transparent layers written under <out>/<key>/. A manifest.json indexing
all stacks is merged into the output directory.

Images that produce no opaque pixels or no palette are skipped with a
diagnostic; a skipped or failed image never aborts the batch.

Examples:
  flagstack build flags/                    # every SVG/PNG in flags/
  flagstack build flags/fr.svg flags/jp.svg
  flagstack build flags/ -o public/layers --layers 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd, args, &flags)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output directory (default layers/)")
	cmd.Flags().StringVar(&flags.atlas, "atlas", "", "atlas.toml with per-image names, anchors, and force-top colors")
	cmd.Flags().IntVar(&flags.layers, "layers", 0, "target layer count per image")
	cmd.Flags().IntVar(&flags.colors, "colors", 0, "maximum palette size")
	cmd.Flags().IntVar(&flags.width, "width", 0, "render width for SVG sources")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", 0, "images processed in parallel")
	cmd.Flags().BoolVar(&flags.kmeans, "kmeans", false, "cluster palette candidates for raster-only sources")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "bypass cache")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")

	return cmd
}

// runBuild resolves sources, runs the batch, and writes the manifest.
func (c *CLI) runBuild(cmd *cobra.Command, args []string, flags *buildFlags) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	opts := cfg.Options()
	applyBuildFlags(&opts, cmd, flags)
	opts.Logger = c.Logger

	atlasPath := flags.atlas
	if atlasPath == "" {
		atlasPath = cfg.Atlas
	}
	if atlasPath != "" {
		if opts.Atlas, err = LoadAtlas(atlasPath); err != nil {
			return err
		}
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	sources, err := resolveSources(args)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	batch, err := runner.Run(ctx, sources, opts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Built %d of %d images", len(batch.Results), len(sources)))

	if len(batch.Results) > 0 {
		if err := c.writeManifest(ctx, cfg, opts.OutDir, batch); err != nil {
			return err
		}
	}

	printBuildSummary(opts.OutDir, batch)
	return nil
}

// applyBuildFlags overrides config-derived options with explicitly set
// flags.
func applyBuildFlags(opts *pipeline.Options, cmd *cobra.Command, flags *buildFlags) {
	set := cmd.Flags().Changed
	if set("out") {
		opts.OutDir = flags.out
	}
	if set("layers") {
		opts.TargetLayers = flags.layers
	}
	if set("colors") {
		opts.MaxPaletteColors = flags.colors
	}
	if set("width") {
		opts.RenderWidth = flags.width
	}
	if set("concurrency") {
		opts.Concurrency = flags.concurrency
	}
	if set("kmeans") {
		opts.KMeans = flags.kmeans
	}
	opts.Refresh = flags.refresh
}

// resolveSources expands each argument into image sources. Directories
// are scanned one level deep; files must be SVG or PNG. Duplicate keys
// keep the first occurrence.
func resolveSources(args []string) ([]vector.Source, error) {
	var sources []vector.Source
	seen := make(map[string]bool)

	add := func(src vector.Source) {
		if !seen[src.Key] {
			seen[src.Key] = true
			sources = append(sources, src)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}
		if info.IsDir() {
			found, err := vector.Discover(arg)
			if err != nil {
				return nil, err
			}
			for _, src := range found {
				add(src)
			}
			continue
		}
		src, err := vector.Resolve(arg)
		if err != nil {
			return nil, err
		}
		add(src)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no SVG or PNG sources found in %v", args)
	}
	return sources, nil
}

// writeManifest merges the batch entries into <out>/manifest.json and,
// when configured, publishes them to MongoDB.
func (c *CLI) writeManifest(ctx context.Context, cfg *Config, outDir string, batch *pipeline.BatchResult) error {
	entries := batch.Entries()

	store := manifest.NewFileStore(filepath.Join(outDir, manifestFile))
	if err := store.Upsert(ctx, entries...); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if cfg.Manifest.MongoURI != "" {
		mongo, err := manifest.NewMongoStore(ctx, cfg.Manifest.MongoURI, cfg.Manifest.MongoDatabase, cfg.Manifest.MongoCollection)
		if err != nil {
			return fmt.Errorf("connect manifest store: %w", err)
		}
		defer mongo.Close(ctx)
		if err := mongo.Upsert(ctx, entries...); err != nil {
			return fmt.Errorf("publish manifest: %w", err)
		}
		c.Logger.Info("published manifest", "images", len(entries), "database", cfg.Manifest.MongoDatabase)
	}
	return nil
}

// printBuildSummary renders the per-image outcome of a batch.
func printBuildSummary(outDir string, batch *pipeline.BatchResult) {
	for _, res := range batch.Results {
		printSuccess("%s", res.Key)
		printStats(res.Stats.Regions, res.Stats.Layers, res.CacheInfo.LayersHit)
	}
	for _, skip := range batch.Skips {
		printWarning("%s skipped: %s", skip.Key, skip.Reason)
	}
	for _, fail := range batch.Failures {
		printError("%s failed: %v", fail.Key, fail.Err)
	}

	printNewline()
	if len(batch.Results) > 0 {
		printInfo("%d stacks in %s", len(batch.Results), batch.Duration.Round(time.Millisecond))
		printFile(filepath.Join(outDir, manifestFile))
		printNewline()
		printNextStep("Preview", fmt.Sprintf("flagstack preview %s --dir %s", batch.Results[0].Key, outDir))
		printNextStep("Verify", "flagstack verify "+outDir)
		printNextStep("Serve", "flagstack serve "+outDir)
	} else {
		printWarning("No stacks were built")
	}
}
