package features

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCodecLayout(t *testing.T) {
	codec, err := DefaultCodec()
	if err != nil {
		t.Fatalf("default codec: %v", err)
	}

	if codec.Version() != "v1" {
		t.Fatalf("version = %s, want v1", codec.Version())
	}
	if codec.VectorLength() != 93 {
		t.Fatalf("vector length = %d, want 93", codec.VectorLength())
	}

	numeric := codec.NumericOrder()
	if len(numeric) != 64 {
		t.Fatalf("numeric fields = %d, want 64", len(numeric))
	}
	if numeric[0] != "Vibration_X" || numeric[63] != "Edge_Processing_Time" {
		t.Fatalf("numeric order corrupted: first=%s last=%s", numeric[0], numeric[63])
	}

	categorical := codec.CategoricalLayout()
	if len(categorical) != 13 {
		t.Fatalf("categorical fields = %d, want 13", len(categorical))
	}
	if categorical[0].Field != "Machine_ID" || categorical[0].Values[0] != "M001" {
		t.Fatalf("Machine_ID reference category corrupted: %+v", categorical[0])
	}

	slots := 0
	for _, cat := range categorical {
		slots += len(cat.Values) - 1
	}
	if len(numeric)+slots != codec.VectorLength() {
		t.Fatalf("layout implies %d values, declared %d", len(numeric)+slots, codec.VectorLength())
	}
}

func TestCodecAccessorsReturnCopies(t *testing.T) {
	codec, err := DefaultCodec()
	if err != nil {
		t.Fatalf("default codec: %v", err)
	}

	codec.NumericOrder()[0] = "tampered"
	if codec.NumericOrder()[0] != "Vibration_X" {
		t.Fatal("numeric order is not insulated from callers")
	}

	codec.CategoricalLayout()[0].Values[0] = "tampered"
	if codec.CategoricalLayout()[0].Values[0] != "M001" {
		t.Fatal("categorical layout is not insulated from callers")
	}
}

func TestParseCodecRejectsInconsistentArtifacts(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "declared length off by one",
			yaml:    "version: v2\nvector_length: 4\nnumeric: [a, b]\ncategorical:\n  - field: c\n    values: [x, y]",
			wantErr: "does not match layout length",
		},
		{
			name:    "missing version",
			yaml:    "vector_length: 1\nnumeric: [a]",
			wantErr: "missing version",
		},
		{
			name:    "vocabulary too small",
			yaml:    "version: v2\nvector_length: 1\nnumeric: [a]\ncategorical:\n  - field: c\n    values: [only]",
			wantErr: "reference category",
		},
		{
			name:    "duplicate field",
			yaml:    "version: v2\nvector_length: 3\nnumeric: [a, b]\ncategorical:\n  - field: a\n    values: [x, y]",
			wantErr: "duplicate field",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCodec([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadCodecFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codec.yaml")
	if err := os.WriteFile(path, embeddedArtifact, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	codec, err := LoadCodec(path)
	if err != nil {
		t.Fatalf("load codec: %v", err)
	}
	if codec.VectorLength() != 93 {
		t.Fatalf("vector length = %d, want 93", codec.VectorLength())
	}

	if _, err := LoadCodec(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}
