package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/render"
)

// defaultMinDiff is the smallest acceptable canvas difference between
// consecutive layers: pairs changing less than 1% of pixels add no
// visible reveal step.
const defaultMinDiff = 0.01

// ErrVerification marks quality-gate failures. main distinguishes it
// from fatal errors and exits with status 2.
var ErrVerification = stderrors.New("verification failed")

// verifyFlags holds the command-line flags for the verify command.
type verifyFlags struct {
	minDiff float64
}

// violation records one consecutive layer pair below the threshold,
// or a manifest entry whose files cannot be checked at all.
type violation struct {
	key    string
	detail string
}

// verifyCommand creates the verify command, the post-build quality gate.
func (c *CLI) verifyCommand() *cobra.Command {
	flags := verifyFlags{}

	cmd := &cobra.Command{
		Use:   "verify [dir]",
		Short: "Check that consecutive layers differ enough visually",
		Long: `Verify a built output directory against its manifest.

For every manifest entry the command decodes consecutive layer pairs and
computes their difference ratio: the fraction of canvas pixels whose
value changes between the two. Layers are disjoint by construction, so a
low ratio means a reveal step that adds almost nothing visible.

Entries with manifest/file disagreements (missing layers, mismatched
array lengths) count as violations too. The command exits with status 2
when any violation is found, leaving status 1 for operational failures.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return c.runVerify(cmd.Context(), dir, &flags)
		},
	}

	cmd.Flags().Float64Var(&flags.minDiff, "min-diff", defaultMinDiff, "minimum difference ratio between consecutive layers")

	return cmd
}

// runVerify loads the manifest and checks every stack under dir.
func (c *CLI) runVerify(ctx context.Context, dir string, flags *verifyFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.OutDir()
	}

	store := manifest.NewFileStore(filepath.Join(dir, manifestFile))
	m, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	if len(m.Entries) == 0 {
		return fmt.Errorf("manifest in %s has no entries", dir)
	}

	var ratios []float64
	var violations []violation

	for _, key := range m.Keys() {
		entry := m.Entries[key]
		pairRatios, bad, err := verifyEntry(dir, entry, flags.minDiff)
		if err != nil {
			return err
		}
		ratios = append(ratios, pairRatios...)
		violations = append(violations, bad...)

		if len(bad) == 0 {
			printSuccess("%s", key)
		} else {
			for _, v := range bad {
				printError("%s: %s", v.key, v.detail)
			}
		}
	}

	printNewline()
	printDiffStats(ratios)

	if len(violations) > 0 {
		printNewline()
		printError("%d violations across %d stacks", len(violations), len(m.Entries))
		return fmt.Errorf("%w: %d low-difference or broken layer pairs", ErrVerification, len(violations))
	}

	printNewline()
	printSuccess("All %d stacks pass", len(m.Entries))
	return nil
}

// verifyEntry checks one stack: manifest arrays, file presence, and the
// difference ratio of each consecutive layer pair. Dimension mismatches
// are contract breaks and propagate as hard errors.
func verifyEntry(dir string, entry manifest.Entry, minDiff float64) ([]float64, []violation, error) {
	if err := entry.Validate(); err != nil {
		return nil, []violation{{key: entry.Key, detail: err.Error()}}, nil
	}

	layers := make([]*raster.Raster, 0, len(entry.Files))
	for _, file := range entry.Files {
		r, err := raster.Load(filepath.Join(dir, entry.Key, file))
		if err != nil {
			return nil, []violation{{key: entry.Key, detail: fmt.Sprintf("layer %s unreadable: %v", file, err)}}, nil
		}
		layers = append(layers, r)
	}

	var ratios []float64
	var bad []violation
	for i := 0; i+1 < len(layers); i++ {
		ratio, err := render.DiffRatio(layers[i], layers[i+1])
		if err != nil {
			return nil, nil, err
		}
		ratios = append(ratios, ratio)
		if ratio < minDiff {
			bad = append(bad, violation{
				key:    entry.Key,
				detail: fmt.Sprintf("layers %02d/%02d differ by %.2f%%, need %.2f%%", i, i+1, ratio*100, minDiff*100),
			})
		}
	}
	return ratios, bad, nil
}

// printDiffStats summarizes the pair ratios across the whole run.
func printDiffStats(ratios []float64) {
	if len(ratios) == 0 {
		printDetail("no consecutive pairs to compare")
		return
	}
	mean := stat.Mean(ratios, nil)
	sd := 0.0
	if len(ratios) > 1 {
		sd = stat.StdDev(ratios, nil)
	}
	printKeyValue("Pairs", fmt.Sprintf("%d", len(ratios)))
	printKeyValue("Mean diff", fmt.Sprintf("%.2f%%", mean*100))
	printKeyValue("Min diff", fmt.Sprintf("%.2f%%", floats.Min(ratios)*100))
	printKeyValue("Stddev", fmt.Sprintf("%.2f%%", sd*100))
}
