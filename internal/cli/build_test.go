package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/palette"
	"github.com/flagstack/flagstack/pkg/raster"
)

// writeImagePNG writes a w x h PNG whose pixel colors come from pick.
func writeImagePNG(t *testing.T, path string, w, h int, pick func(x, y int) palette.Color) {
	t.Helper()
	r := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := pick(x, y)
			r.SetPixel(y*w+x, c.R, c.G, c.B, 255)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := r.EncodePNG(f); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func halves(left, right palette.Color, w int) func(x, y int) palette.Color {
	return func(x, y int) palette.Color {
		if x < w/2 {
			return left
		}
		return right
	}
}

func TestResolveSourcesDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"fr.svg", "jp.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := resolveSources([]string{dir})
	if err != nil {
		t.Fatalf("resolveSources failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Key != "fr" || !sources[0].SVG {
		t.Errorf("sources[0] = %+v, want fr.svg", sources[0])
	}
	if sources[1].Key != "jp" || sources[1].SVG {
		t.Errorf("sources[1] = %+v, want jp.png", sources[1])
	}
}

func TestResolveSourcesDedup(t *testing.T) {
	dir := t.TempDir()
	svg := filepath.Join(dir, "fr.svg")
	if err := os.WriteFile(svg, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Directory scan and an explicit path to the same key count once.
	sources, err := resolveSources([]string{dir, svg})
	if err != nil {
		t.Fatalf("resolveSources failed: %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("expected 1 source after dedup, got %d", len(sources))
	}
}

func TestResolveSourcesErrors(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{filepath.Join(dir, "absent.svg")}},
		{"unsupported file", []string{txt}},
		{"empty directory", []string{t.TempDir()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolveSources(tt.args); err == nil {
				t.Errorf("resolveSources(%v) should fail", tt.args)
			}
		})
	}
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "banner.png")
	writeImagePNG(t, input, 8, 8, halves(palette.RGB(255, 0, 0), palette.RGB(0, 0, 255), 8))

	out := filepath.Join(dir, "out")
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"build", input, "-o", out, "--layers", "2", "--no-cache"})
	if err := root.Execute(); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	store := manifest.NewFileStore(filepath.Join(out, manifestFile))
	m, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	entry, ok := m.Entries["banner"]
	if !ok {
		t.Fatalf("manifest missing banner, has %v", m.Keys())
	}
	if len(entry.Files) != 2 {
		t.Fatalf("expected 2 layers, got %v", entry.Files)
	}
	if entry.Width != 8 || entry.Height != 8 {
		t.Errorf("entry size = %dx%d, want 8x8", entry.Width, entry.Height)
	}
	for _, name := range append(entry.Files, entry.Full) {
		if _, err := os.Stat(filepath.Join(out, "banner", name)); err != nil {
			t.Errorf("expected %s on disk: %v", name, err)
		}
	}
}

func TestBuildCommandInvalidLayers(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "banner.png")
	writeImagePNG(t, input, 4, 4, halves(palette.RGB(255, 0, 0), palette.RGB(0, 0, 255), 4))

	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"build", input, "-o", filepath.Join(dir, "out"), "--layers", "-3", "--no-cache"})
	err := root.Execute()
	if err == nil {
		t.Fatal("negative layer count should fail")
	}
	if !strings.Contains(err.Error(), "target_layers") {
		t.Errorf("unexpected error: %v", err)
	}
}
