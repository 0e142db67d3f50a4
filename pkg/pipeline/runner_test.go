package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flagstack/flagstack/pkg/cache"
	"github.com/flagstack/flagstack/pkg/errors"
	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/palette"
	"github.com/flagstack/flagstack/pkg/raster"
	"github.com/flagstack/flagstack/pkg/vector"
)

func solidRaster(w, h int, c palette.Color) *raster.Raster {
	r := raster.New(w, h)
	for i := 0; i < w*h; i++ {
		r.SetPixel(i, c.R, c.G, c.B, 255)
	}
	return r
}

func writeRasterPNG(t *testing.T, path string, r *raster.Raster) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := r.EncodePNG(f); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{OutDir: filepath.Join(t.TempDir(), "out")}
}

func TestProcessImageSolidColor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blue.png")
	writeRasterPNG(t, path, solidRaster(8, 6, palette.RGB(0, 0, 255)))

	src, err := vector.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	runner := NewRunner(nil, nil, nil)
	opts := testOptions(t)
	res, err := runner.ProcessImage(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}

	if res.Stats.Regions != 1 {
		t.Errorf("expected 1 region, got %d", res.Stats.Regions)
	}
	if res.Stats.Layers != 1 {
		t.Errorf("expected 1 layer, got %d", res.Stats.Layers)
	}
	if len(res.Entry.Files) != 1 || res.Entry.Files[0] != "blue__00_0000ff.png" {
		t.Errorf("unexpected files: %v", res.Entry.Files)
	}
	if len(res.Entry.Colors) != 1 || res.Entry.Colors[0] != "#0000ff" {
		t.Errorf("unexpected colors: %v", res.Entry.Colors)
	}
	if len(res.Entry.ZOrder) != 1 || res.Entry.ZOrder[0] != 0 {
		t.Errorf("unexpected z order: %v", res.Entry.ZOrder)
	}
	if res.Entry.Full != "blue__full.png" {
		t.Errorf("unexpected full name: %s", res.Entry.Full)
	}
	if res.Entry.Width != 8 || res.Entry.Height != 6 {
		t.Errorf("unexpected dimensions: %dx%d", res.Entry.Width, res.Entry.Height)
	}
	if res.Entry.Dominant != "#0000ff" {
		t.Errorf("unexpected dominant color: %s", res.Entry.Dominant)
	}

	for _, p := range res.Files {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s on disk: %v", p, err)
		}
	}

	// Layers live under the image's own subdirectory.
	layer := filepath.Join(opts.OutDir, "blue", "blue__00_0000ff.png")
	decoded, err := raster.Load(layer)
	if err != nil {
		t.Fatalf("load layer: %v", err)
	}
	if got := decoded.OpaqueCount(1); got != 48 {
		t.Errorf("layer should cover all 48 pixels, got %d", got)
	}
}

func TestProcessImageStripes(t *testing.T) {
	r := raster.New(9, 6)
	colors := []palette.Color{palette.RGB(255, 0, 0), palette.RGB(255, 255, 255), palette.RGB(0, 0, 255)}
	for y := 0; y < 6; y++ {
		for x := 0; x < 9; x++ {
			c := colors[x/3]
			r.SetPixel(y*9+x, c.R, c.G, c.B, 255)
		}
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "stripes.png")
	writeRasterPNG(t, path, r)

	src, err := vector.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	runner := NewRunner(nil, nil, nil)
	opts := testOptions(t)
	res, err := runner.ProcessImage(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}

	if res.Stats.Regions != 3 {
		t.Errorf("expected 3 regions, got %d", res.Stats.Regions)
	}
	if res.Stats.PaletteSize != 3 {
		t.Errorf("expected 3 palette colors, got %d", res.Stats.PaletteSize)
	}
	if res.Stats.Layers != DefaultTargetLayers {
		t.Errorf("expected %d layers, got %d", DefaultTargetLayers, res.Stats.Layers)
	}

	if res.Entry.Colors[0] != "#ff0000" {
		t.Errorf("red should reveal first, got %s", res.Entry.Colors[0])
	}
	if last := res.Entry.Colors[len(res.Entry.Colors)-1]; last != "#ffffff" {
		t.Errorf("white should reveal last, got %s", last)
	}

	// The layers partition the opaque pixels: every pixel appears in
	// exactly one layer file.
	seen := make([]bool, 9*6)
	total := 0
	for _, name := range res.Entry.Files {
		layer, err := raster.Load(filepath.Join(opts.OutDir, "stripes", name))
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		for i := 0; i < layer.Len(); i++ {
			if !layer.Opaque(i, 1) {
				continue
			}
			if seen[i] {
				t.Fatalf("pixel %d appears in more than one layer", i)
			}
			seen[i] = true
			total++
		}
	}
	if total != 9*6 {
		t.Errorf("layers should cover all %d pixels, got %d", 9*6, total)
	}
}

func TestProcessImageSkipsTransparent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.png")
	writeRasterPNG(t, path, raster.New(4, 4))

	src, err := vector.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	runner := NewRunner(nil, nil, nil)
	opts := testOptions(t)
	_, err = runner.ProcessImage(context.Background(), src, opts)
	if err == nil {
		t.Fatal("expected a skip error")
	}
	if !errors.IsSkip(err) {
		t.Errorf("expected a skip condition, got %v", err)
	}
	if errors.GetCode(err) != errors.ErrCodeEmptyRaster {
		t.Errorf("expected EMPTY_RASTER, got %s", errors.GetCode(err))
	}

	if _, statErr := os.Stat(filepath.Join(opts.OutDir, "blank")); !os.IsNotExist(statErr) {
		t.Error("skipped image should write nothing")
	}
}

func TestProcessImageDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fr.png")
	r := raster.New(6, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			c := []palette.Color{palette.RGB(0, 36, 125), palette.RGB(255, 255, 255), palette.RGB(206, 17, 38)}[x/2]
			r.SetPixel(y*6+x, c.R, c.G, c.B, 255)
		}
	}
	writeRasterPNG(t, path, r)

	src, err := vector.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	runner := NewRunner(nil, nil, nil)
	first := testOptions(t)
	second := testOptions(t)

	resA, err := runner.ProcessImage(context.Background(), src, first)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	resB, err := runner.ProcessImage(context.Background(), src, second)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if len(resA.Entry.Files) != len(resB.Entry.Files) {
		t.Fatalf("runs disagree on layer count: %d vs %d", len(resA.Entry.Files), len(resB.Entry.Files))
	}
	for i, name := range resA.Entry.Files {
		if name != resB.Entry.Files[i] {
			t.Fatalf("runs disagree on file %d: %s vs %s", i, name, resB.Entry.Files[i])
		}
		a, err := os.ReadFile(filepath.Join(first.OutDir, "fr", name))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(second.OutDir, "fr", name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("layer %s differs between runs", name)
		}
	}
}

func TestProcessImageArtifactCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jp.png")
	writeRasterPNG(t, path, solidRaster(8, 8, palette.RGB(188, 0, 45)))

	src, err := vector.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	c, err := cache.NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileCache failed: %v", err)
	}
	runner := NewRunner(c, nil, nil)
	defer runner.Close()

	opts := testOptions(t)
	first, err := runner.ProcessImage(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.CacheInfo.LayersHit {
		t.Error("first run should not hit the layer cache")
	}

	second, err := runner.ProcessImage(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !second.CacheInfo.LayersHit {
		t.Error("second run should restore layers from cache")
	}

	a, err := os.ReadFile(filepath.Join(opts.OutDir, "jp", first.Entry.Files[0]))
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(opts.OutDir, "jp", second.Entry.Files[0]))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("cached layer should be byte-identical to the computed one")
	}
}

func TestProcessImageAnchor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ch.png")
	writeRasterPNG(t, path, solidRaster(4, 4, palette.RGB(255, 0, 0)))

	src, err := vector.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	runner := NewRunner(nil, nil, nil)
	opts := testOptions(t)
	opts.Atlas = map[string]ImageMeta{
		"ch": {Name: "Switzerland", Anchor: &manifest.Anchor{Lat: 46.8, Lon: 8.2}},
	}

	res, err := runner.ProcessImage(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if res.Entry.Anchor == nil || res.Entry.Anchor.Lat != 46.8 || res.Entry.Anchor.Lon != 8.2 {
		t.Errorf("anchor should flow into the entry, got %+v", res.Entry.Anchor)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writeRasterPNG(t, good, solidRaster(4, 4, palette.RGB(0, 128, 0)))
	blank := filepath.Join(dir, "blank.png")
	writeRasterPNG(t, blank, raster.New(4, 4))

	sources := []vector.Source{
		{Key: "good", Path: good},
		{Key: "blank", Path: blank},
		{Key: "missing", Path: filepath.Join(dir, "missing.png")},
	}

	runner := NewRunner(nil, nil, nil)
	opts := testOptions(t)
	batch, err := runner.Run(context.Background(), sources, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if batch.BuildID == "" {
		t.Error("batch should carry a build id")
	}
	if len(batch.Results) != 1 || batch.Results[0].Key != "good" {
		t.Errorf("expected one successful result, got %+v", batch.Results)
	}
	if len(batch.Skips) != 1 || batch.Skips[0].Key != "blank" {
		t.Errorf("expected blank to be skipped, got %+v", batch.Skips)
	}
	if len(batch.Failures) != 1 || batch.Failures[0].Key != "missing" {
		t.Errorf("expected missing to fail, got %+v", batch.Failures)
	}
	if !errors.Is(batch.Failures[0].Err, errors.ErrCodeFileNotFound) {
		t.Errorf("expected FILE_NOT_FOUND, got %v", batch.Failures[0].Err)
	}

	entries := batch.Entries()
	if len(entries) != 1 || entries[0].Key != "good" {
		t.Errorf("Entries should collect successful results, got %+v", entries)
	}
}
