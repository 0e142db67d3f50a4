package cli

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/flagstack/flagstack/pkg/errors"
	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/pipeline"
)

// defaultConfigFile is looked up in the working directory when --config
// is not given. A missing default file is not an error.
const defaultConfigFile = "flagstack.toml"

// Config mirrors flagstack.toml. Zero values defer to the pipeline
// defaults, so a partial file only pins what it names.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Output   OutputConfig   `toml:"output"`
	Cache    CacheConfig    `toml:"cache"`
	Manifest ManifestConfig `toml:"manifest"`

	// Atlas points at a per-image metadata file (see LoadAtlas).
	Atlas string `toml:"atlas"`
}

// EngineConfig holds the packing knobs.
type EngineConfig struct {
	TargetLayers        int     `toml:"target_layers"`
	MaxPaletteColors    int     `toml:"max_palette_colors"`
	MinColorDistance    int     `toml:"min_color_distance"`
	EdgeFillSpan        int     `toml:"edge_fill_span"`
	SplitEntryThreshold int     `toml:"split_entry_threshold"`
	OpacityFloor        int     `toml:"opacity_floor"`
	NearBlackLuminance  float64 `toml:"near_black_luminance"`
	KMeans              bool    `toml:"kmeans"`
}

// OutputConfig holds rasterization and output placement.
type OutputConfig struct {
	Dir         string `toml:"dir"`
	RenderWidth int    `toml:"render_width"`
	Concurrency int    `toml:"concurrency"`
}

// CacheConfig selects the cache backend. Backend is one of "file"
// (default), "redis", or "none". Namespace prefixes every cache key,
// so several projects can share one backend without colliding.
type CacheConfig struct {
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	Namespace string `toml:"namespace"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// ManifestConfig optionally publishes entries to MongoDB in addition to
// the manifest.json the build always writes.
type ManifestConfig struct {
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// atlasFile mirrors atlas.toml: one [images.<key>] table per image.
type atlasFile struct {
	Images map[string]atlasEntry `toml:"images"`
}

type atlasEntry struct {
	Name     string   `toml:"name"`
	Lat      *float64 `toml:"lat"`
	Lon      *float64 `toml:"lon"`
	ForceTop []string `toml:"force_top"`
}

// LoadConfig reads a flagstack.toml. With an empty path it tries the
// default file name and returns an empty Config when that is absent;
// an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return cfg, nil
}

// LoadAtlas reads an atlas.toml into per-image pipeline metadata.
func LoadAtlas(path string) (map[string]pipeline.ImageMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read atlas %s", path)
	}

	var file atlasFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse atlas %s", path)
	}

	atlas := make(map[string]pipeline.ImageMeta, len(file.Images))
	for key, e := range file.Images {
		if err := errors.ValidateKey(key); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "atlas %s", path)
		}
		for _, hex := range e.ForceTop {
			if err := errors.ValidateHexColor(hex); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "atlas %s, image %s", path, key)
			}
		}
		meta := pipeline.ImageMeta{Name: e.Name, ForceTop: e.ForceTop}
		if e.Lat != nil && e.Lon != nil {
			meta.Anchor = &manifest.Anchor{Lat: *e.Lat, Lon: *e.Lon}
		}
		atlas[key] = meta
	}
	return atlas, nil
}

// Options folds the config into pipeline options. Only non-zero config
// values are applied; ValidateAndSetDefaults fills the rest.
func (c *Config) Options() pipeline.Options {
	opts := pipeline.Options{
		TargetLayers:        c.Engine.TargetLayers,
		MaxPaletteColors:    c.Engine.MaxPaletteColors,
		MinColorDistance:    c.Engine.MinColorDistance,
		EdgeFillSpan:        c.Engine.EdgeFillSpan,
		SplitEntryThreshold: c.Engine.SplitEntryThreshold,
		NearBlackLuminance:  c.Engine.NearBlackLuminance,
		KMeans:              c.Engine.KMeans,
		OutDir:              c.Output.Dir,
		RenderWidth:         c.Output.RenderWidth,
		Concurrency:         c.Output.Concurrency,
	}
	if c.Engine.OpacityFloor > 0 && c.Engine.OpacityFloor <= 255 {
		opts.OpacityFloor = uint8(c.Engine.OpacityFloor)
	}
	return opts
}

// OutDir returns the configured output directory or the pipeline
// default.
func (c *Config) OutDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return pipeline.DefaultOutDir
}
