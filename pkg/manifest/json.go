package manifest

import (
	"encoding/json"
	"io"

	"github.com/flagstack/flagstack/pkg/errors"
)

// WriteJSON encodes a manifest as indented JSON and writes it to w.
// The output can be re-read with [ReadJSON].
func WriteJSON(m *Manifest, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "encode manifest")
	}
	return nil
}

// ReadJSON decodes a manifest from r and validates every entry,
// including that each entry sits under its own key.
func ReadJSON(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode manifest")
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	for k, e := range m.Entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if e.Key != k {
			return nil, errors.New(errors.ErrCodeInvalidManifest,
				"entry %s filed under key %s", e.Key, k)
		}
	}
	return &m, nil
}
