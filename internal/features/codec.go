package features

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// The v1 artifact ships with the binary, mirroring how the model file is
// packaged with the deployment. A newer artifact can be loaded from disk via
// LoadCodec, but codec and model must always be upgraded together.
//
//go:embed codec_v1.yaml
var embeddedArtifact []byte

// CategoricalField is one categorical column with its ordered vocabulary.
// The first value is the reference category: it never gets a one-hot slot of
// its own (drop-first encoding, matching the trained model's column basis).
type CategoricalField struct {
	Field  string   `yaml:"field"`
	Values []string `yaml:"values"`
}

type codecArtifact struct {
	Version      string             `yaml:"version"`
	VectorLength int                `yaml:"vector_length"`
	Numeric      []string           `yaml:"numeric"`
	Categorical  []CategoricalField `yaml:"categorical"`
}

// Codec is the single source of truth for the feature-vector layout. It is
// immutable after load; the vocabulary and field order are part of the
// model's deployment artifact, not runtime state.
type Codec struct {
	version      string
	vectorLength int
	numeric      []string
	categorical  []CategoricalField
}

// DefaultCodec parses the embedded v1 artifact.
func DefaultCodec() (*Codec, error) {
	return ParseCodec(embeddedArtifact)
}

// LoadCodec reads a codec artifact from disk.
func LoadCodec(path string) (*Codec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feature codec: read %s: %w", path, err)
	}
	return ParseCodec(data)
}

// ParseCodec parses and validates a YAML codec artifact. The declared
// vector_length must match the length implied by the layout; a mismatch means
// the artifact is inconsistent with itself and is rejected outright.
func ParseCodec(data []byte) (*Codec, error) {
	var artifact codecArtifact
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("feature codec: parse: %w", err)
	}
	if artifact.Version == "" {
		return nil, errors.New("feature codec: missing version")
	}
	if len(artifact.Numeric) == 0 {
		return nil, errors.New("feature codec: empty numeric field list")
	}

	seen := make(map[string]bool, len(artifact.Numeric)+len(artifact.Categorical))
	for _, field := range artifact.Numeric {
		if field == "" {
			return nil, errors.New("feature codec: empty numeric field name")
		}
		if seen[field] {
			return nil, fmt.Errorf("feature codec: duplicate field %s", field)
		}
		seen[field] = true
	}

	length := len(artifact.Numeric)
	for _, cat := range artifact.Categorical {
		if cat.Field == "" {
			return nil, errors.New("feature codec: empty categorical field name")
		}
		if seen[cat.Field] {
			return nil, fmt.Errorf("feature codec: duplicate field %s", cat.Field)
		}
		seen[cat.Field] = true
		if len(cat.Values) < 2 {
			return nil, fmt.Errorf("feature codec: field %s needs a reference category plus at least one encoded value", cat.Field)
		}
		length += len(cat.Values) - 1
	}

	if artifact.VectorLength != length {
		return nil, fmt.Errorf("feature codec: declared vector_length %d does not match layout length %d", artifact.VectorLength, length)
	}

	return &Codec{
		version:      artifact.Version,
		vectorLength: length,
		numeric:      artifact.Numeric,
		categorical:  artifact.Categorical,
	}, nil
}

// Version returns the artifact version.
func (c *Codec) Version() string { return c.version }

// VectorLength returns the fixed encoded vector length.
func (c *Codec) VectorLength() int { return c.vectorLength }

// NumericOrder returns the numeric field names in model input order.
func (c *Codec) NumericOrder() []string {
	out := make([]string, len(c.numeric))
	copy(out, c.numeric)
	return out
}

// CategoricalLayout returns the categorical fields in model input order,
// each with its ordered vocabulary.
func (c *Codec) CategoricalLayout() []CategoricalField {
	out := make([]CategoricalField, len(c.categorical))
	for i, cat := range c.categorical {
		values := make([]string, len(cat.Values))
		copy(values, cat.Values)
		out[i] = CategoricalField{Field: cat.Field, Values: values}
	}
	return out
}
