// Package cache provides byte caching for the expensive pipeline
// stages: rendered rasters keyed by source content and encoded layer
// artifacts keyed by the quantized stack. Keys are content-addressed,
// so a stale hit is impossible and TTLs only bound disk growth.
package cache

import (
	"context"
	"time"
)

// TTLs per cached stage.
const (
	// TTLRaster bounds cached rsvg-convert output.
	TTLRaster = 7 * 24 * time.Hour
	// TTLArtifact bounds cached per-layer PNG encodes.
	TTLArtifact = 7 * 24 * time.Hour
	// TTLHTTP bounds cached composite responses served over HTTP.
	TTLHTTP = time.Hour
)

// Cache stores raw bytes under string keys.
type Cache interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any backing resources.
	Close() error
}

// RasterKeyOpts distinguishes rendered rasters of one source.
type RasterKeyOpts struct {
	Width  int
	Height int
}

// ArtifactKeyOpts distinguishes encoded layers of one stack.
type ArtifactKeyOpts struct {
	Index int
	Hex   string
}

// Keyer builds cache keys for the pipeline stages.
type Keyer interface {
	// HTTPKey generates a key for HTTP response caching.
	HTTPKey(namespace, key string) string
	// RasterKey generates a key for a rendered raster from the source
	// content hash and render size.
	RasterKey(sourceHash string, opts RasterKeyOpts) string
	// ArtifactKey generates a key for one encoded layer from the
	// quantized stack hash, layer index, and color.
	ArtifactKey(stackHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes structured key parts into stable prefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// HTTPKey generates a key for HTTP response caching.
func (k *DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// RasterKey generates a key for a rendered raster.
func (k *DefaultKeyer) RasterKey(sourceHash string, opts RasterKeyOpts) string {
	return hashKey("raster", sourceHash, opts)
}

// ArtifactKey generates a key for one encoded layer.
func (k *DefaultKeyer) ArtifactKey(stackHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", stackHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
