package pipeline

import (
	"testing"

	"github.com/flagstack/flagstack/pkg/palette"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Empty options should pass: %v", err)
	}

	if opts.TargetLayers != DefaultTargetLayers {
		t.Errorf("TargetLayers should be %d, got %d", DefaultTargetLayers, opts.TargetLayers)
	}
	if opts.MaxPaletteColors != DefaultMaxPaletteColors {
		t.Errorf("MaxPaletteColors should be %d, got %d", DefaultMaxPaletteColors, opts.MaxPaletteColors)
	}
	if opts.MinColorDistance != DefaultMinColorDistance {
		t.Errorf("MinColorDistance should be %d, got %d", DefaultMinColorDistance, opts.MinColorDistance)
	}
	if opts.EdgeFillSpan != DefaultEdgeFillSpan {
		t.Errorf("EdgeFillSpan should be %d, got %d", DefaultEdgeFillSpan, opts.EdgeFillSpan)
	}
	if opts.SplitEntryThreshold != DefaultSplitEntryThreshold {
		t.Errorf("SplitEntryThreshold should be %d, got %d", DefaultSplitEntryThreshold, opts.SplitEntryThreshold)
	}
	if opts.OpacityFloor != DefaultOpacityFloor {
		t.Errorf("OpacityFloor should be %d, got %d", DefaultOpacityFloor, opts.OpacityFloor)
	}
	if opts.NearBlackLuminance != DefaultNearBlackLuminance {
		t.Errorf("NearBlackLuminance should be %g, got %g", DefaultNearBlackLuminance, opts.NearBlackLuminance)
	}
	if opts.RenderWidth != DefaultRenderWidth {
		t.Errorf("RenderWidth should be %d, got %d", DefaultRenderWidth, opts.RenderWidth)
	}
	if opts.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency should be %d, got %d", DefaultConcurrency, opts.Concurrency)
	}
	if opts.OutDir != DefaultOutDir {
		t.Errorf("OutDir should be %q, got %q", DefaultOutDir, opts.OutDir)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative target layers", Options{TargetLayers: -1}},
		{"negative palette cap", Options{MaxPaletteColors: -3}},
		{"negative color distance", Options{MinColorDistance: -1}},
		{"negative edge span", Options{EdgeFillSpan: -2}},
		{"negative split threshold", Options{SplitEntryThreshold: -8}},
		{"luminance out of range", Options{NearBlackLuminance: 1.5}},
		{"negative render width", Options{RenderWidth: -640}},
		{"negative concurrency", Options{Concurrency: -4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); err == nil {
				t.Error("Invalid options should fail")
			}
		})
	}
}

func TestOptionsValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{TargetLayers: 4}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("First validation failed: %v", err)
	}

	originalLayers := opts.TargetLayers
	originalWidth := opts.RenderWidth

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Second validation failed: %v", err)
	}

	if opts.TargetLayers != originalLayers {
		t.Error("TargetLayers changed on second call")
	}
	if opts.RenderWidth != originalWidth {
		t.Error("RenderWidth changed on second call")
	}
}

func TestOptionsBuilders(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults failed: %v", err)
	}

	so := opts.SimplifyOptions()
	if so.MaxColors != DefaultMaxPaletteColors || so.MinDistance != DefaultMinColorDistance {
		t.Errorf("unexpected simplify options: %+v", so)
	}

	forceTop := map[palette.Color]bool{palette.RGB(255, 0, 0): true}
	sto := opts.StackOptions(forceTop)
	if sto.TargetLayers != DefaultTargetLayers {
		t.Errorf("TargetLayers should be %d, got %d", DefaultTargetLayers, sto.TargetLayers)
	}
	if sto.SplitEntryThreshold != DefaultSplitEntryThreshold {
		t.Errorf("SplitEntryThreshold should be %d, got %d", DefaultSplitEntryThreshold, sto.SplitEntryThreshold)
	}
	if !sto.ForceTop[palette.RGB(255, 0, 0)] {
		t.Error("ForceTop set should pass through")
	}
}

func TestEngineFingerprint(t *testing.T) {
	a := Options{}
	b := Options{}
	if err := a.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if err := b.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	if a.EngineFingerprint() != b.EngineFingerprint() {
		t.Error("Identical options should fingerprint identically")
	}

	c := Options{TargetLayers: 3}
	if err := c.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if a.EngineFingerprint() == c.EngineFingerprint() {
		t.Error("Changing an engine knob should change the fingerprint")
	}

	// Output location does not affect engine output.
	d := Options{OutDir: "elsewhere"}
	if err := d.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if a.EngineFingerprint() != d.EngineFingerprint() {
		t.Error("OutDir should not affect the fingerprint")
	}
}

func TestBuildHash(t *testing.T) {
	data := []byte("source bytes")
	fp := "fingerprint"

	base := buildHash(data, fp, ImageMeta{})
	if base != buildHash(data, fp, ImageMeta{}) {
		t.Error("Same inputs should hash identically")
	}
	if base == buildHash([]byte("other"), fp, ImageMeta{}) {
		t.Error("Different source bytes should hash differently")
	}
	if base == buildHash(data, "other", ImageMeta{}) {
		t.Error("Different fingerprints should hash differently")
	}
	if base == buildHash(data, fp, ImageMeta{ForceTop: []string{"#ffd700"}}) {
		t.Error("ForceTop overrides should change the hash")
	}

	// Override order is canonicalized.
	ab := buildHash(data, fp, ImageMeta{ForceTop: []string{"#aa0000", "#bb0000"}})
	ba := buildHash(data, fp, ImageMeta{ForceTop: []string{"#bb0000", "#aa0000"}})
	if ab != ba {
		t.Error("ForceTop order should not affect the hash")
	}
}

func TestForceTopColors(t *testing.T) {
	red := palette.RGB(255, 0, 0)
	blue := palette.RGB(0, 0, 255)
	pal := palette.New([]palette.Color{red, blue})

	defs := map[palette.Color]bool{palette.RGB(254, 1, 0): true}
	top := ForceTopColors(pal, defs, []string{"#0000ff", "not-a-color"})

	if len(top) != 2 {
		t.Fatalf("expected 2 forceTop colors, got %d", len(top))
	}
	if !top[red] {
		t.Error("near-red defs color should snap onto the red palette entry")
	}
	if !top[blue] {
		t.Error("override should land on the blue palette entry")
	}
}
