package vector

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"

	"github.com/flagstack/flagstack/pkg/errors"
	"github.com/flagstack/flagstack/pkg/raster"
)

// Rasterize renders SVG markup to an RGBA raster at the given pixel
// width using rsvg-convert. Height zero keeps the intrinsic aspect
// ratio. Requires librsvg: brew install librsvg (macOS), apt install
// librsvg2-bin (Linux).
func Rasterize(ctx context.Context, markup []byte, width, height int) (*raster.Raster, error) {
	if _, err := exec.LookPath("rsvg-convert"); err != nil {
		return nil, errors.New(errors.ErrCodeRasterizer,
			"rasterizing requires librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin")
	}

	args := []string{"-f", "png", "-w", strconv.Itoa(width)}
	if height > 0 {
		args = append(args, "-h", strconv.Itoa(height))
	}
	cmd := exec.CommandContext(ctx, "rsvg-convert", args...)
	cmd.Stdin = bytes.NewReader(markup)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRasterizer, err, "rsvg-convert: %s", errBuf.String())
	}
	return raster.Decode(&out)
}

// Render loads a source image as a raster: SVGs are rasterized at
// renderWidth with their intrinsic aspect ratio, PNGs are decoded
// as-is. The returned markup is nil for PNG sources.
func Render(ctx context.Context, src Source, renderWidth int) (*raster.Raster, []byte, error) {
	if !src.SVG {
		r, err := raster.Load(src.Path)
		return r, nil, err
	}

	markup, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", src.Path)
	}

	width, height := renderWidth, 0
	if w, h, err := Dimensions(markup); err == nil {
		width, height = TargetSize(w, h, renderWidth)
	}

	r, err := Rasterize(ctx, markup, width, height)
	if err != nil {
		return nil, nil, err
	}
	return r, markup, nil
}
