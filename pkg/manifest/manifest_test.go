package manifest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/flagstack/flagstack/pkg/errors"
)

func validEntry(key string) Entry {
	return Entry{
		Key:     key,
		Files:   []string{LayerFile(key, 0, "#b22234"), LayerFile(key, 1, "")},
		Colors:  []string{"#b22234", "#3c3b6e"},
		ZOrder:  []int{0, 1},
		Full:    FullFile(key),
		Width:   640,
		Height:  480,
		BuiltAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLayerFileNaming(t *testing.T) {
	tests := []struct {
		key   string
		index int
		hex   string
		want  string
	}{
		{"us", 0, "#b22234", "us__00_b22234.png"},
		{"us", 3, "b22234", "us__03_b22234.png"},
		{"jp", 11, "", "jp__11.png"},
	}

	for _, tt := range tests {
		if got := LayerFile(tt.key, tt.index, tt.hex); got != tt.want {
			t.Errorf("LayerFile(%q, %d, %q) = %q, want %q", tt.key, tt.index, tt.hex, got, tt.want)
		}
	}

	if got := FullFile("us"); got != "us__full.png" {
		t.Errorf("FullFile = %q, want us__full.png", got)
	}
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Entry)
		ok     bool
	}{
		{"valid", func(e *Entry) {}, true},
		{"no key", func(e *Entry) { e.Key = "" }, false},
		{"no files", func(e *Entry) { e.Files = nil }, false},
		{"colors off", func(e *Entry) { e.Colors = e.Colors[:1] }, false},
		{"z order off", func(e *Entry) { e.ZOrder = append(e.ZOrder, 2) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry("us")
			tt.mutate(&e)
			err := e.Validate()
			if tt.ok != (err == nil) {
				t.Fatalf("err = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && errors.GetCode(err) != errors.ErrCodeInvalidManifest {
				t.Fatalf("want invalid manifest code, got %v", err)
			}
		})
	}
}

func TestManifestSetAndKeys(t *testing.T) {
	m := New()
	for _, key := range []string{"us", "br"} {
		if err := m.Set(validEntry(key)); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}

	if got := m.Keys(); !reflect.DeepEqual(got, []string{"br", "us"}) {
		t.Fatalf("Keys = %v", got)
	}

	if err := m.Set(Entry{}); err == nil {
		t.Fatal("Set should reject an invalid entry")
	}
	if len(m.Entries) != 2 {
		t.Fatalf("invalid Set must not store, have %d entries", len(m.Entries))
	}
}

func TestManifestMerge(t *testing.T) {
	base := New()
	if err := base.Set(validEntry("us")); err != nil {
		t.Fatal(err)
	}

	newer := validEntry("us")
	newer.Width = 999
	other := New()
	if err := other.Set(newer); err != nil {
		t.Fatal(err)
	}
	if err := other.Set(validEntry("jp")); err != nil {
		t.Fatal(err)
	}

	base.Merge(other)

	if len(base.Entries) != 2 {
		t.Fatalf("merged manifest has %d entries, want 2", len(base.Entries))
	}
	if got := base.Entries["us"].Width; got != 999 {
		t.Fatalf("merge should prefer the other side, width = %d", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m := New()
	for _, key := range []string{"us", "br"} {
		if err := m.Set(validEntry(key)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := WriteJSON(m, &buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	out := buf.String()
	if strings.Index(out, `"br"`) > strings.Index(out, `"us"`) {
		t.Error("entries should encode in sorted key order")
	}

	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if !reflect.DeepEqual(got.Entries, m.Entries) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got.Entries, m.Entries)
	}
}

func TestReadJSONKeyMismatch(t *testing.T) {
	raw := `{"version":1,"entries":{"aa":{"key":"bb","files":["x"],"colors":["#000000"],"z_order":[0],"full":"f"}}}`
	_, err := ReadJSON(strings.NewReader(raw))
	if errors.GetCode(err) != errors.ErrCodeInvalidManifest {
		t.Fatalf("want invalid manifest error, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "out", "manifest.json"))

	m, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}
	if len(m.Entries) != 0 {
		t.Fatalf("missing file should load empty, got %d entries", len(m.Entries))
	}

	if err := s.Upsert(ctx, validEntry("us")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, validEntry("br")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	m, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"br", "us"}) {
		t.Fatalf("Keys = %v", got)
	}

	des, err := os.ReadDir(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	if len(des) != 1 || des[0].Name() != "manifest.json" {
		t.Fatalf("save must not leave temp files behind: %v", des)
	}
}
