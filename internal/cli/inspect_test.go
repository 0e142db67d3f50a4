package cli

import (
	"context"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/flagstack/flagstack/pkg/palette"
	"github.com/flagstack/flagstack/pkg/pipeline"
	"github.com/flagstack/flagstack/pkg/stack"
	"github.com/flagstack/flagstack/pkg/vector"
)

func TestPlanFlags(t *testing.T) {
	clip := image.Rect(0, 0, 4, 2)
	tests := []struct {
		name  string
		layer stack.Layer
		want  string
	}{
		{"plain", stack.Layer{}, ""},
		{"mixed", stack.Layer{Mixed: true}, "mixed"},
		{"force top", stack.Layer{ForceTop: true}, "top"},
		{"clipped", stack.Layer{Clip: &clip}, "clip 4x2"},
		{"everything", stack.Layer{Mixed: true, ForceTop: true, Clip: &clip}, "mixed top clip 4x2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := planFlags(tt.layer); got != tt.want {
				t.Errorf("planFlags() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzeStripes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stripes.png")
	stripes := []palette.Color{palette.RGB(255, 0, 0), palette.RGB(255, 255, 255), palette.RGB(0, 0, 255)}
	writeImagePNG(t, path, 9, 6, func(x, y int) palette.Color {
		return stripes[x/3]
	})

	src, err := vector.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	opts := pipeline.Options{OutDir: t.TempDir()}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	a, err := analyze(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if a.quantized.Width() != 9 || a.quantized.Height() != 6 {
		t.Errorf("quantized size = %dx%d, want 9x6", a.quantized.Width(), a.quantized.Height())
	}
	if len(a.regions) != 3 {
		t.Errorf("regions = %d, want 3", len(a.regions))
	}
	if len(a.plans) != pipeline.DefaultTargetLayers {
		t.Errorf("plans = %d, want %d", len(a.plans), pipeline.DefaultTargetLayers)
	}
	if len(a.hist) != 3 {
		t.Fatalf("palette rows = %d, want 3", len(a.hist))
	}

	total := 0.0
	for _, w := range a.hist {
		total += w.share
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("shares sum to %g, want 1.0", total)
	}
}

func TestInspectCommandArtifacts(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "banner.png")
	writeImagePNG(t, input, 8, 8, halves(palette.RGB(255, 0, 0), palette.RGB(0, 0, 255), 8))
	out := t.TempDir()

	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"inspect", input, "--overlay", "--sheet", "--out", out})
	if err := root.Execute(); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}

	for _, name := range []string{"banner_overlay.svg", "banner_sheet.png"} {
		info, err := os.Stat(filepath.Join(out, name))
		if err != nil {
			t.Errorf("expected %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
