package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// This is useful when several atlases share one cache backend and
// their keys must not collide.
//
// Example usage:
//
//	// Keys for one atlas on a shared Redis
//	atlasKeyer := NewScopedKeyer(NewDefaultKeyer(), "atlas:europe:")
//
//	// Unscoped keys for local builds
//	localKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// RasterKey generates a prefixed key for rendered raster caching.
func (k *ScopedKeyer) RasterKey(sourceHash string, opts RasterKeyOpts) string {
	return k.prefix + k.inner.RasterKey(sourceHash, opts)
}

// ArtifactKey generates a prefixed key for encoded layer caching.
func (k *ScopedKeyer) ArtifactKey(stackHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(stackHash, opts)
}
