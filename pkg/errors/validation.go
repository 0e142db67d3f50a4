package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// keyRegex matches safe image keys: they become output directory names,
// manifest map keys, and URL path segments under /layers/.
var keyRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateKey validates an image key derived from a source file name.
// It rejects keys that could escape the output directory or break the
// serving routes.
//
// The validation rules are intentionally conservative:
//   - No empty keys
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 64 characters
func ValidateKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidInput, "image key cannot be empty")
	}

	if len(key) > 64 {
		return New(ErrCodeInvalidInput, "image key too long (max 64 characters): %q", key)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "image key contains control characters: %q", key)
		}
	}

	if strings.Contains(key, "..") {
		return New(ErrCodeInvalidInput, "image key cannot contain traversal sequences: %q", key)
	}

	if !keyRegex.MatchString(key) {
		return New(ErrCodeInvalidInput, "invalid image key: %q", key)
	}

	return nil
}

// hexColorRegex matches canonical colors: lowercase #rrggbb.
var hexColorRegex = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// ValidateHexColor validates a canonical color string as written into
// manifests and accepted from atlas force_top lists.
func ValidateHexColor(s string) error {
	if s == "" {
		return New(ErrCodeInvalidInput, "color cannot be empty")
	}
	if !hexColorRegex.MatchString(s) {
		return New(ErrCodeInvalidInput, "color must be lowercase #rrggbb, got %q", s)
	}
	return nil
}

// ValidateLayerFile validates a layer file name from a manifest entry.
// Manifests can be hand-edited, so names are checked before they are
// joined onto the output directory.
func ValidateLayerFile(name string) error {
	if name == "" {
		return New(ErrCodeInvalidManifest, "layer file name cannot be empty")
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidManifest, "layer file name cannot contain path separators: %q", name)
	}

	if strings.HasPrefix(name, ".") {
		return New(ErrCodeInvalidManifest, "layer file name cannot be hidden: %q", name)
	}

	if !strings.HasSuffix(name, ".png") {
		return New(ErrCodeInvalidManifest, "layer file name must end in .png: %q", name)
	}

	return nil
}
