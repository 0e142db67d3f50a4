package cli

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/render"
)

// previewFlags holds the command-line flags for the preview command.
type previewFlags struct {
	dir string
}

// previewCommand creates the preview command, a terminal reveal player.
func (c *CLI) previewCommand() *cobra.Command {
	flags := previewFlags{}

	cmd := &cobra.Command{
		Use:   "preview <key>",
		Short: "Step through a built stack's reveal order in the terminal",
		Long: `Preview the progressive reveal of one built stack.

Layers are composited step by step in reveal order and painted with
half-block cells, so each terminal row carries two pixel rows. Use
space or the right arrow to reveal the next layer, the left arrow to
go back, and q to quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], &flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "output directory (default layers/)")

	return cmd
}

// runPreview loads the stack for key and hands it to the TUI.
func (c *CLI) runPreview(ctx context.Context, key string, flags *previewFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	dir := flags.dir
	if dir == "" {
		dir = cfg.OutDir()
	}

	store := manifest.NewFileStore(filepath.Join(dir, manifestFile))
	m, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	entry, ok := m.Entries[key]
	if !ok {
		return fmt.Errorf("no stack %q in %s (known: %s)", key, dir, strings.Join(m.Keys(), ", "))
	}

	steps, err := loadRevealSteps(dir, entry)
	if err != nil {
		return err
	}

	model := newPreviewModel(entry, steps)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// loadRevealSteps decodes every layer and composites the cumulative
// reveal states: steps[i] shows layers 0..i stacked.
func loadRevealSteps(dir string, entry manifest.Entry) ([]*image.NRGBA, error) {
	steps := make([]*image.NRGBA, 0, len(entry.Files))
	var sofar []*image.NRGBA
	for _, file := range entry.Files {
		r, err := raster.Load(filepath.Join(dir, entry.Key, file))
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", file, err)
		}
		sofar = append(sofar, r.NRGBA())
		steps = append(steps, render.Composite(entry.Width, entry.Height, sofar...))
	}
	return steps, nil
}

// =============================================================================
// previewModel - bubbletea reveal stepper
// =============================================================================

// previewModel is the bubbletea model for the reveal preview.
type previewModel struct {
	entry  manifest.Entry
	steps  []*image.NRGBA
	step   int
	width  int
	height int
}

func newPreviewModel(entry manifest.Entry, steps []*image.NRGBA) previewModel {
	return previewModel{entry: entry, steps: steps, width: 80, height: 24}
}

func (m previewModel) Init() tea.Cmd {
	return nil
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", " ", "l", "enter":
			if m.step < len(m.steps)-1 {
				m.step++
			}
		case "left", "h":
			if m.step > 0 {
				m.step--
			}
		case "home", "0":
			m.step = 0
		case "end":
			m.step = len(m.steps) - 1
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m previewModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.entry.Key))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  layer %d/%d", m.step+1, len(m.steps))))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("space/→ reveal  ← back  q quit"))
	b.WriteString("\n\n")

	// Reserve rows for the header, swatch strip, and help line; every
	// remaining terminal row paints two pixel rows.
	cols := max(m.width-4, 8)
	rows := max(m.height-7, 4)
	fitted := imaging.Fit(m.steps[m.step], cols, rows*2, imaging.NearestNeighbor)
	b.WriteString(halfBlocks(fitted))
	b.WriteString("\n")

	for i, hex := range m.entry.Colors {
		marker := swatch(hex)
		if i == m.step {
			marker = lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("··")
		}
		b.WriteString(marker)
		if i < len(m.entry.Colors)-1 {
			b.WriteString(" ")
		}
	}
	b.WriteString(StyleDim.Render("  " + m.entry.Colors[m.step]))

	return b.String()
}

// halfBlocks paints an image with "▀" cells: the foreground carries the
// upper pixel, the background the lower one. Transparent pixels fall
// back to the terminal's own background.
func halfBlocks(img *image.NRGBA) string {
	bounds := img.Bounds()
	var b strings.Builder
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			upper, upOK := cellColor(img, x, y)
			lower, lowOK := cellColor(img, x, y+1)
			switch {
			case upOK && lowOK:
				b.WriteString(lipgloss.NewStyle().Foreground(upper).Background(lower).Render("▀"))
			case upOK:
				b.WriteString(lipgloss.NewStyle().Foreground(upper).Render("▀"))
			case lowOK:
				b.WriteString(lipgloss.NewStyle().Foreground(lower).Render("▄"))
			default:
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// cellColor reads one pixel as a lipgloss color, reporting opacity.
func cellColor(img *image.NRGBA, x, y int) (lipgloss.Color, bool) {
	if y >= img.Bounds().Max.Y {
		return "", false
	}
	c := img.NRGBAAt(x, y)
	if c.A == 0 {
		return "", false
	}
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)), true
}
