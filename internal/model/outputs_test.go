package model

import (
	"errors"
	"math"
	"testing"
)

func TestFailureProbabilityShapes(t *testing.T) {
	tests := []struct {
		name          string
		probabilities any
		want          float64
	}{
		{"direct class map", map[int64]float64{0: 0.3, 1: 0.7}, 0.7},
		{"direct map failure key only", map[int64]float64{1: 0.9}, 0.9},
		{"direct map complement of no-failure", map[int64]float64{0: 0.25}, 0.75},
		{"list-wrapped map", []map[int64]float64{{0: 0.6, 1: 0.4}}, 0.4},
		{"two-dimensional array", [][]float64{{0.1, 0.9}}, 0.9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := failureProbability(tc.probabilities)
			if err != nil {
				t.Fatalf("failureProbability: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("probability = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFailureProbabilityUnsupported(t *testing.T) {
	tests := []struct {
		name          string
		probabilities any
	}{
		{"nil", nil},
		{"string", "0.9"},
		{"empty map list", []map[int64]float64{}},
		{"map without class keys", map[int64]float64{7: 0.9}},
		{"array with one class", [][]float64{{0.9}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := failureProbability(tc.probabilities); !errors.Is(err, ErrUnsupportedOutput) {
				t.Fatalf("err = %v, want ErrUnsupportedOutput", err)
			}
		})
	}
}
