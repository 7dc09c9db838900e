package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrVectorLength marks a codec/model configuration mismatch. It is not a
// per-record error: encountering it means the deployed codec is out of sync
// with the model and processing must stop.
var ErrVectorLength = errors.New("feature encoder: vector length mismatch")

// Encoder turns a raw named-field record into the fixed-length numeric vector
// the model was trained on. Encoding is pure: same codec, same input, same
// vector.
type Encoder struct {
	codec *Codec
}

// NewEncoder constructs an encoder over a codec.
func NewEncoder(codec *Codec) (*Encoder, error) {
	if codec == nil {
		return nil, errors.New("feature encoder: nil codec")
	}
	return &Encoder{codec: codec}, nil
}

// Encode builds the feature vector: numeric fields first in codec order, then
// drop-first one-hot slots per categorical field. Missing numeric fields
// default to 0.0 and missing categorical fields to the empty string; a raw
// value outside a field's vocabulary leaves all of that field's slots at 0.0.
func (e *Encoder) Encode(raw map[string]any) ([]float64, error) {
	vector := make([]float64, 0, e.codec.vectorLength)

	for _, field := range e.codec.numeric {
		vector = append(vector, NumericValue(raw[field]))
	}

	for _, cat := range e.codec.categorical {
		value := TextValue(raw[cat.Field])
		for i := 1; i < len(cat.Values); i++ {
			if cat.Values[i] == value {
				vector = append(vector, 1.0)
			} else {
				vector = append(vector, 0.0)
			}
		}
	}

	if len(vector) != e.codec.vectorLength {
		return nil, fmt.Errorf("%w: built %d values, codec %s declares %d",
			ErrVectorLength, len(vector), e.codec.version, e.codec.vectorLength)
	}
	return vector, nil
}

// NumericValue coerces a raw field value to float64. Missing (nil) and
// unparsable values default to 0.0. The ingestion mapper uses the same
// coercion so persisted fields and encoded features never disagree.
func NumericValue(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0.0
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0.0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0.0
		}
		return parsed
	default:
		return 0.0
	}
}

// TextValue coerces a raw field value to its textual form; missing values
// become the empty string.
func TextValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
