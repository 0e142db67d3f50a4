package errors

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "fr", false},
		{"valid with dash", "new-zealand", false},
		{"valid with underscore", "flag_2024", false},
		{"valid with dot", "us.state", false},
		{"valid uppercase", "US", false},
		{"valid digits", "47", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 65), true},
		{"leading dot", ".hidden", true},
		{"path traversal", "a..b", true},
		{"slash", "a/b", true},
		{"backslash", "a\\b", true},
		{"space", "new zealand", true},
		{"null byte", "a\x00b", true},
		{"control char", "a\x01b", true},
		{"newline", "a\nb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateKeyErrorCode(t *testing.T) {
	err := ValidateKey("a/b")
	if !Is(err, ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", GetCode(err))
	}
}

func TestValidateHexColor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid black", "#000000", false},
		{"valid white", "#ffffff", false},
		{"valid mixed", "#ce1126", false},

		{"empty", "", true},
		{"no hash", "ffffff", true},
		{"uppercase", "#FFFFFF", true},
		{"short form", "#fff", true},
		{"too long", "#ffffff00", true},
		{"named color", "red", true},
		{"bad digit", "#gg0000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHexColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHexColor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLayerFile(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid layer", "fr__00_ce1126.png", false},
		{"valid mixed layer", "fr__03.png", false},
		{"valid full", "fr__full.png", false},

		{"empty", "", true},
		{"with path", "fr/fr__00.png", true},
		{"with backslash", "fr\\fr__00.png", true},
		{"hidden", ".fr__00.png", true},
		{"wrong extension", "fr__00.svg", true},
		{"no extension", "fr__00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayerFile(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLayerFile(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
