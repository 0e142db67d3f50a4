package cli

import (
	"image"
	"image/color"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/flagstack/flagstack/pkg/manifest"
)

func nrgba(r, g, b, a uint8) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

func opaquePixels(img *image.NRGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return n
}

func TestLoadRevealSteps(t *testing.T) {
	dir := t.TempDir()
	entry := stackDir(t, dir, "pair", 8, 8, [][][2]int{
		column(0, 8),
		column(7, 8),
	})

	steps, err := loadRevealSteps(dir, entry)
	if err != nil {
		t.Fatalf("loadRevealSteps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}

	// Each step composites all layers up to and including its own.
	if got := opaquePixels(steps[0]); got != 8 {
		t.Errorf("step 0 opaque pixels = %d, want 8", got)
	}
	if got := opaquePixels(steps[1]); got != 16 {
		t.Errorf("step 1 opaque pixels = %d, want 16", got)
	}
}

func TestLoadRevealStepsMissingLayer(t *testing.T) {
	dir := t.TempDir()
	entry := stackDir(t, dir, "pair", 8, 8, [][][2]int{column(0, 8)})
	entry.Files = append(entry.Files, "pair__01_0000ff.png")

	if _, err := loadRevealSteps(dir, entry); err == nil {
		t.Fatal("missing layer file should fail")
	}
}

func TestHalfBlocks(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, nrgba(255, 0, 0, 255)) // upper left
	img.SetNRGBA(1, 1, nrgba(0, 0, 255, 255)) // lower right

	out := halfBlocks(img)
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("2 pixel rows should paint 1 text row, got %q", out)
	}
	if !strings.Contains(out, "▀") {
		t.Errorf("upper-only cell should paint ▀, got %q", out)
	}
	if !strings.Contains(out, "▄") {
		t.Errorf("lower-only cell should paint ▄, got %q", out)
	}
}

func TestHalfBlocksTransparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	if out := halfBlocks(img); out != "  \n" {
		t.Errorf("transparent image should paint spaces, got %q", out)
	}
}

func TestCellColor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, nrgba(255, 0, 0, 255))

	c, ok := cellColor(img, 0, 0)
	if !ok || string(c) != "#ff0000" {
		t.Errorf("cellColor = %q, %v; want #ff0000, true", c, ok)
	}
	if _, ok := cellColor(img, 1, 0); ok {
		t.Error("transparent pixel should not report a color")
	}
	if _, ok := cellColor(img, 0, 5); ok {
		t.Error("out-of-bounds row should not report a color")
	}
}

func TestPreviewModelUpdate(t *testing.T) {
	steps := []*image.NRGBA{
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
	}
	m := newPreviewModel(manifest.Entry{Key: "pair"}, steps)

	press := func(m previewModel, key tea.KeyType) previewModel {
		next, _ := m.Update(tea.KeyMsg{Type: key})
		return next.(previewModel)
	}

	m = press(m, tea.KeyRight)
	m = press(m, tea.KeyRight)
	if m.step != 2 {
		t.Errorf("step = %d after two advances, want 2", m.step)
	}
	m = press(m, tea.KeyRight)
	if m.step != 2 {
		t.Errorf("step = %d, advance should clamp at the last layer", m.step)
	}
	m = press(m, tea.KeyLeft)
	if m.step != 1 {
		t.Errorf("step = %d after back, want 1", m.step)
	}
	m = press(m, tea.KeyHome)
	if m.step != 0 {
		t.Errorf("step = %d after home, want 0", m.step)
	}
	m = press(m, tea.KeyEnd)
	if m.step != 2 {
		t.Errorf("step = %d after end, want 2", m.step)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce a quit message")
	}
}

func TestPreviewModelView(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(0, 0, nrgba(255, 0, 0, 255))
	entry := manifest.Entry{
		Key:    "fr",
		Files:  []string{"fr__00_ff0000.png"},
		Colors: []string{"#ff0000"},
		ZOrder: []int{0},
	}

	m := newPreviewModel(entry, []*image.NRGBA{img})
	view := m.View()
	if !strings.Contains(view, "fr") {
		t.Errorf("view should name the image, got %q", view)
	}
	if !strings.Contains(view, "layer 1/1") {
		t.Errorf("view should show the step counter, got %q", view)
	}
	if !strings.Contains(view, "#ff0000") {
		t.Errorf("view should show the current layer color, got %q", view)
	}
}
