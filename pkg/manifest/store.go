package manifest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/flagstack/flagstack/pkg/errors"
)

// Store persists manifests. Implementations must keep concurrent
// Upsert calls from different builds safe against each other.
type Store interface {
	Load(ctx context.Context) (*Manifest, error)
	Save(ctx context.Context, m *Manifest) error
	Upsert(ctx context.Context, entries ...Entry) error
	Close(ctx context.Context) error
}

// FileStore keeps the manifest as one JSON file next to the output
// layers. Saves go through a temp file and rename, so readers never
// observe a half-written manifest.
type FileStore struct {
	Path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the manifest, returning an empty one when the file does
// not exist yet.
func (s *FileStore) Load(ctx context.Context) (*Manifest, error) {
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "open manifest %s", s.Path)
	}
	defer f.Close()
	return ReadJSON(f)
}

// Save writes the manifest atomically.
func (s *FileStore) Save(ctx context.Context, m *Manifest) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "temp manifest")
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(m, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "close temp manifest")
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "replace manifest %s", s.Path)
	}
	return nil
}

// Upsert loads, merges the given entries in, and saves.
func (s *FileStore) Upsert(ctx context.Context, entries ...Entry) error {
	m, err := s.Load(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := m.Set(e); err != nil {
			return err
		}
	}
	return s.Save(ctx, m)
}

// Close is a no-op for file stores.
func (s *FileStore) Close(ctx context.Context) error { return nil }
