package model

import (
	"errors"
	"fmt"
)

const (
	noFailureClass int64 = 0
	failureClass   int64 = 1
)

// ErrUnsupportedOutput is returned when the session's probability structure
// matches none of the supported shapes.
var ErrUnsupportedOutput = errors.New("model: unsupported probabilities format")

// Outputs carries the classifier's two named outputs: the integer class
// labels and a per-class probability structure whose concrete shape depends
// on the inference backend and model export.
type Outputs struct {
	Labels        []int64
	Probabilities any
}

// failureProbability extracts p(failure) from a probability structure. The
// supported shapes are tried in fixed priority order: a direct
// class→probability map, a list-wrapped map, and a 2-D probability array.
// Within a map, the failure-class entry is preferred; when only the
// no-failure class is present, p(failure) is derived as its complement.
func failureProbability(probabilities any) (float64, error) {
	switch p := probabilities.(type) {
	case map[int64]float64:
		return probabilityFromClassMap(p)
	case []map[int64]float64:
		if len(p) == 0 {
			return 0, fmt.Errorf("%w: empty map list", ErrUnsupportedOutput)
		}
		return probabilityFromClassMap(p[0])
	case [][]float64:
		if len(p) == 0 || len(p[0]) < 2 {
			return 0, fmt.Errorf("%w: probability array smaller than two classes", ErrUnsupportedOutput)
		}
		return p[0][failureClass], nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedOutput, probabilities)
	}
}

func probabilityFromClassMap(classes map[int64]float64) (float64, error) {
	if p, ok := classes[failureClass]; ok {
		return p, nil
	}
	if p, ok := classes[noFailureClass]; ok {
		return 1 - p, nil
	}
	return 0, fmt.Errorf("%w: map holds neither class key", ErrUnsupportedOutput)
}
