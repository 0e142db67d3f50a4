package vector

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/flagstack/flagstack/pkg/errors"
)

// Source is one resolvable input image: an SVG to rasterize or an
// already-rendered PNG. Key is the base name without extension and
// names the per-image output directory and manifest entry.
type Source struct {
	Key  string
	Path string
	SVG  bool
}

// Resolve checks that path exists and derives the image key from its
// base name. Only .svg and .png sources are supported, and the key must
// be safe to reuse as an output directory and URL path segment.
func Resolve(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Source{}, errors.New(errors.ErrCodeFileNotFound, "source image not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := errors.ValidateKey(key); err != nil {
		return Source{}, err
	}
	switch ext {
	case ".svg":
		return Source{Key: key, Path: path, SVG: true}, nil
	case ".png":
		return Source{Key: key, Path: path}, nil
	}
	return Source{}, errors.New(errors.ErrCodeUnsupported, "unsupported source format %q", ext)
}

// ResolveKey looks a key up under dir, preferring key.svg over key.png.
func ResolveKey(dir, key string) (Source, error) {
	for _, ext := range []string{".svg", ".png"} {
		p := filepath.Join(dir, key+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return Resolve(p)
		}
	}
	return Source{}, errors.New(errors.ErrCodeFileNotFound, "no source for key %q under %s", key, dir)
}

// Discover lists every resolvable source directly under dir, one per
// key with SVG preferred, sorted by key.
func Discover(dir string) ([]Source, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read source directory %s", dir)
	}

	byKey := make(map[string]Source)
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		src, err := Resolve(filepath.Join(dir, de.Name()))
		if err != nil {
			continue
		}
		if prev, ok := byKey[src.Key]; ok && prev.SVG {
			continue
		}
		byKey[src.Key] = src
	}

	out := make([]Source, 0, len(byKey))
	for _, k := range slices.Sorted(maps.Keys(byKey)) {
		out = append(out, byKey[k])
	}
	return out, nil
}
