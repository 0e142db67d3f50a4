package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/flagstack/flagstack/pkg/pipeline"
	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/render"
	"github.com/flagstack/flagstack/pkg/segment"
	"github.com/flagstack/flagstack/pkg/stack"
	"github.com/flagstack/flagstack/pkg/vector"
)

// inspectFlags holds the command-line flags for the inspect command.
type inspectFlags struct {
	out      string // artifact directory (default: input's directory)
	dot      bool   // write the packing graph as SVG
	overlay  bool   // write a region/clip-window overlay SVG
	sheet    bool   // write a contact sheet of all layers
	detailed bool   // verbose packing-graph labels
	layers   int
	colors   int
	width    int
	kmeans   bool
}

// inspectCommand creates the inspect command for analyzing a single input.
func (c *CLI) inspectCommand() *cobra.Command {
	flags := inspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Show how an image would be segmented and packed",
		Long: `Inspect one SVG or PNG input without writing layers.

The command runs the palette, segmentation, and packing stages and
prints the simplified palette, region statistics, and the final layer
plans in reveal order. Optional artifacts visualize the packing:

  --dot      packing decision graph rendered to SVG
  --overlay  region bounds and clip windows traced over the raster
  --sheet    all layers side by side on one contact sheet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd, args[0], &flags)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "artifact directory (default: next to the input)")
	cmd.Flags().BoolVar(&flags.dot, "dot", false, "write <key>_graph.svg with the packing graph")
	cmd.Flags().BoolVar(&flags.overlay, "overlay", false, "write <key>_overlay.svg with region bounds")
	cmd.Flags().BoolVar(&flags.sheet, "sheet", false, "write <key>_sheet.png with all layers")
	cmd.Flags().BoolVar(&flags.detailed, "detailed", false, "include area and clip detail in the packing graph")
	cmd.Flags().IntVar(&flags.layers, "layers", 0, "target layer count")
	cmd.Flags().IntVar(&flags.colors, "colors", 0, "maximum palette size")
	cmd.Flags().IntVar(&flags.width, "width", 0, "render width for SVG sources")
	cmd.Flags().BoolVar(&flags.kmeans, "kmeans", false, "cluster palette candidates for raster-only sources")

	return cmd
}

// runInspect executes the engine stages in-process and reports them.
func (c *CLI) runInspect(cmd *cobra.Command, input string, flags *inspectFlags) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	opts := cfg.Options()
	set := cmd.Flags().Changed
	if set("layers") {
		opts.TargetLayers = flags.layers
	}
	if set("colors") {
		opts.MaxPaletteColors = flags.colors
	}
	if set("width") {
		opts.RenderWidth = flags.width
	}
	if set("kmeans") {
		opts.KMeans = flags.kmeans
	}
	opts.Logger = c.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	src, err := vector.Resolve(input)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Analyzing %s...", src.Key))
	spinner.Start()
	analysis, err := analyze(ctx, src, opts)
	if err != nil {
		spinner.StopWithError("Analysis failed")
		return err
	}
	spinner.Stop()

	printInspectReport(src, analysis)
	return c.writeInspectArtifacts(src, analysis, flags)
}

// analysis carries every intermediate the inspect report needs.
type analysis struct {
	quantized *raster.Raster
	hist      []pipelineWeight
	regions   []*segment.Region
	plans     []stack.Layer
}

// pipelineWeight is one palette row: a quantized color and its share.
type pipelineWeight struct {
	hex   string
	count int
	share float64
}

// analyze runs render, palette, segmentation, and packing for one source.
func analyze(ctx context.Context, src vector.Source, opts pipeline.Options) (*analysis, error) {
	source, markup, err := vector.Render(ctx, src, opts.RenderWidth)
	if err != nil {
		return nil, err
	}

	pal, defs, err := pipeline.BuildPalette(markup, source, opts)
	if err != nil {
		return nil, err
	}
	forceTop := pipeline.ForceTopColors(pal, defs, nil)

	quantized := source.Quantize(pal, opts.OpacityFloor)
	quantized.ExtendEdges(opts.EdgeFillSpan)

	regions := segment.Regions(quantized)
	plans := stack.Pack(regions, quantized.Width(), opts.StackOptions(forceTop))

	opaque := quantized.OpaqueCount(opts.OpacityFloor)
	var hist []pipelineWeight
	for _, w := range quantized.Histogram(opts.OpacityFloor) {
		share := 0.0
		if opaque > 0 {
			share = float64(w.Count) / float64(opaque)
		}
		hist = append(hist, pipelineWeight{hex: w.Color.Hex(), count: w.Count, share: share})
	}

	return &analysis{quantized: quantized, hist: hist, regions: regions, plans: plans}, nil
}

// printInspectReport renders the palette and layer-plan tables.
func printInspectReport(src vector.Source, a *analysis) {
	fmt.Println(StyleTitle.Render(src.Key))
	printKeyValue("Source", src.Path)
	printKeyValue("Size", fmt.Sprintf("%dx%d", a.quantized.Width(), a.quantized.Height()))
	printKeyValue("Palette", fmt.Sprintf("%d colors", len(a.hist)))
	printKeyValue("Regions", fmt.Sprintf("%d", len(a.regions)))
	printKeyValue("Layers", fmt.Sprintf("%d", len(a.plans)))
	printNewline()

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(colorWhite).PaddingLeft(1).PaddingRight(1)
	styler := func(row, col int) lipgloss.Style {
		if row == -1 {
			return headerStyle.PaddingLeft(1).PaddingRight(1)
		}
		return cellStyle
	}

	paletteRows := make([][]string, 0, len(a.hist))
	for _, w := range a.hist {
		paletteRows = append(paletteRows, []string{
			swatch(w.hex), w.hex, fmt.Sprintf("%d", w.count), fmt.Sprintf("%.1f%%", w.share*100),
		})
	}
	paletteTable := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Color", "Pixels", "Share").
		StyleFunc(styler).
		Rows(paletteRows...)
	fmt.Println(paletteTable.Render())
	printNewline()

	planRows := make([][]string, 0, len(a.plans))
	for i, l := range a.plans {
		planRows = append(planRows, []string{
			fmt.Sprintf("%02d", i),
			swatch(l.Dominant.Hex()) + " " + l.Dominant.Hex(),
			fmt.Sprintf("%d", l.Area),
			fmt.Sprintf("%d", len(l.Fragments)),
			fmt.Sprintf("%d", l.Z),
			planFlags(l),
		})
	}
	planTable := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Layer", "Dominant", "Area", "Frags", "Z", "Notes").
		StyleFunc(styler).
		Rows(planRows...)
	fmt.Println(planTable.Render())
}

// planFlags summarizes a plan's packing provenance.
func planFlags(l stack.Layer) string {
	var notes []string
	if l.Mixed {
		notes = append(notes, "mixed")
	}
	if l.ForceTop {
		notes = append(notes, "top")
	}
	if l.Clip != nil {
		notes = append(notes, fmt.Sprintf("clip %dx%d", l.Clip.Dx(), l.Clip.Dy()))
	}
	return strings.Join(notes, " ")
}

// writeInspectArtifacts emits the optional SVG/PNG diagnostics.
func (c *CLI) writeInspectArtifacts(src vector.Source, a *analysis, flags *inspectFlags) error {
	if !flags.dot && !flags.overlay && !flags.sheet {
		return nil
	}

	dir := flags.out
	if dir == "" {
		dir = filepath.Dir(src.Path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	if flags.dot {
		dot := render.ToDOT(a.plans, render.DOTOptions{Detailed: flags.detailed})
		svg, err := render.RenderDOTSVG(dot)
		if err != nil {
			return fmt.Errorf("render packing graph: %w", err)
		}
		path := filepath.Join(dir, src.Key+"_graph.svg")
		if err := os.WriteFile(path, svg, 0o644); err != nil {
			return err
		}
		printFile(path)
	}

	if flags.overlay {
		path := filepath.Join(dir, src.Key+"_overlay.svg")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := render.Overlay(f, a.quantized, a.plans); err != nil {
			f.Close()
			return fmt.Errorf("render overlay: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		printFile(path)
	}

	if flags.sheet {
		images := make([]*image.NRGBA, 0, len(a.plans))
		for _, l := range a.plans {
			images = append(images, render.Layer(a.quantized, l))
		}
		sheet, err := render.Sheet(images, render.SheetOptions{Padding: 8, CellWidth: 320})
		if err != nil {
			return fmt.Errorf("render contact sheet: %w", err)
		}
		path := filepath.Join(dir, src.Key+"_sheet.png")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := render.WritePNG(f, sheet); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		printFile(path)
	}

	return nil
}
