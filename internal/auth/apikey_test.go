package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	t.Run("returns three non-empty values", func(t *testing.T) {
		key, hash, prefix, err := GenerateAPIKey("iam")
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if key == "" {
			t.Error("GenerateAPIKey() returned empty key")
		}
		if hash == "" {
			t.Error("GenerateAPIKey() returned empty hash")
		}
		if prefix == "" {
			t.Error("GenerateAPIKey() returned empty displayPrefix")
		}
	})

	t.Run("key starts with prefix_", func(t *testing.T) {
		key, _, _, err := GenerateAPIKey("iam")
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if !strings.HasPrefix(key, "iam_") {
			t.Errorf("GenerateAPIKey() key = %q, want prefix %q", key, "iam_")
		}
	})

	t.Run("display prefix matches key start", func(t *testing.T) {
		key, _, displayPrefix, err := GenerateAPIKey("iam")
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if !strings.HasPrefix(key, displayPrefix) {
			t.Errorf("key %q does not start with displayPrefix %q", key, displayPrefix)
		}
	})

	t.Run("display prefix length is capped at DisplayPrefixLength", func(t *testing.T) {
		_, _, displayPrefix, err := GenerateAPIKey("iam")
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if len(displayPrefix) > DisplayPrefixLength {
			t.Errorf("len(displayPrefix) = %d, want <= %d", len(displayPrefix), DisplayPrefixLength)
		}
	})

	t.Run("successive keys are unique", func(t *testing.T) {
		k1, _, _, err := GenerateAPIKey("iam")
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		k2, _, _, err := GenerateAPIKey("iam")
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if k1 == k2 {
			t.Error("GenerateAPIKey() produced the same key twice")
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	key, hash, _, err := GenerateAPIKey("iam")
	if err != nil {
		t.Fatalf("GenerateAPIKey() error: %v", err)
	}

	if !ValidateAPIKey(key, hash) {
		t.Error("ValidateAPIKey() rejected the key it was generated with")
	}
	if ValidateAPIKey(key+"x", hash) {
		t.Error("ValidateAPIKey() accepted a tampered key")
	}
	if ValidateAPIKey("", hash) {
		t.Error("ValidateAPIKey() accepted an empty key")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer iam_abc123", "iam_abc123", false},
		{"valid with surrounding space", "Bearer   iam_abc123  ", "iam_abc123", false},
		{"empty header", "", "", true},
		{"missing bearer prefix", "iam_abc123", "", true},
		{"bearer with empty credential", "Bearer   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractBearerToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
