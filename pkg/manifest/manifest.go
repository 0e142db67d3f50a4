// Package manifest models the per-image output index consumed by the
// reveal client: ordered layer files, their colors, a parallel z-order
// array, and the full image, keyed by image key. Images that yield no
// layers are simply absent; readers must tolerate missing keys.
package manifest

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/flagstack/flagstack/pkg/errors"
)

// Version is written into every manifest for forward compatibility.
const Version = 1

// Anchor is an optional geographic point attached to an entry, used by
// map-driven clients.
type Anchor struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// Entry indexes one image's layer stack. Files, Colors, and ZOrder are
// parallel arrays in reveal order.
type Entry struct {
	Key      string    `json:"key" bson:"key"`
	Files    []string  `json:"files" bson:"files"`
	Colors   []string  `json:"colors" bson:"colors"`
	ZOrder   []int     `json:"z_order" bson:"z_order"`
	Full     string    `json:"full" bson:"full"`
	Dominant string    `json:"dominant,omitempty" bson:"dominant,omitempty"`
	Width    int       `json:"width" bson:"width"`
	Height   int       `json:"height" bson:"height"`
	Anchor   *Anchor   `json:"anchor,omitempty" bson:"anchor,omitempty"`
	BuiltAt  time.Time `json:"built_at" bson:"built_at"`
}

// Validate checks the parallel-array contract (one color and one z
// value per layer file) and that key and file names are safe to join
// onto the output directory.
func (e Entry) Validate() error {
	if err := errors.ValidateKey(e.Key); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "bad entry key")
	}
	if len(e.Files) == 0 {
		return errors.New(errors.ErrCodeInvalidManifest, "entry %s has no layer files", e.Key)
	}
	if len(e.Colors) != len(e.Files) || len(e.ZOrder) != len(e.Files) {
		return errors.New(errors.ErrCodeInvalidManifest,
			"entry %s arrays disagree: %d files, %d colors, %d z values",
			e.Key, len(e.Files), len(e.Colors), len(e.ZOrder))
	}
	for _, name := range e.Files {
		if err := errors.ValidateLayerFile(name); err != nil {
			return err
		}
	}
	return nil
}

// Manifest is the full output index. Map keys marshal sorted, so
// encoding is deterministic.
type Manifest struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// New returns an empty manifest at the current version.
func New() *Manifest {
	return &Manifest{Version: Version, Entries: make(map[string]Entry)}
}

// Keys returns the entry keys sorted.
func (m *Manifest) Keys() []string {
	return slices.Sorted(maps.Keys(m.Entries))
}

// Set validates e and stores it under its key, replacing any previous
// entry.
func (m *Manifest) Set(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	m.Entries[e.Key] = e
	return nil
}

// Merge folds other into m, other winning per key.
func (m *Manifest) Merge(other *Manifest) {
	if other == nil {
		return
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	for k, e := range other.Entries {
		m.Entries[k] = e
	}
}

// LayerFile names one layer artifact: <key>__<index>_<hex>.png with a
// two-digit index. Mixed layers pass an empty hex and drop the color
// suffix.
func LayerFile(key string, index int, hex string) string {
	suffix := ""
	if hex != "" {
		suffix = "_" + strings.TrimPrefix(hex, "#")
	}
	return fmt.Sprintf("%s__%02d%s.png", key, index, suffix)
}

// FullFile names the untouched full-image artifact.
func FullFile(key string) string {
	return key + "__full.png"
}
