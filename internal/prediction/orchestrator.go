package prediction

import (
	"errors"
	"log"
	"math"
	"time"

	"maintenance-cloud/internal/features"
	"maintenance-cloud/internal/model"
	readings "maintenance-cloud/internal/readings/domain"
)

// ModelRuntime is the slice of the model runtime the orchestrator needs.
type ModelRuntime interface {
	IsReady() bool
	Version() string
	Infer(vector []float64) (model.Inference, error)
}

// Encoder turns a raw record into a feature vector.
type Encoder interface {
	Encode(raw map[string]any) ([]float64, error)
}

// Result is the outcome of one prediction. Error is empty on success; when a
// prediction degrades, Inference holds the failure-result placeholder and
// Error describes what went wrong. Either way Inference is fully populated,
// so the caller can always attach it to the reading.
type Result struct {
	Inference readings.Inference
	Error     string
}

// Failed reports whether the prediction degraded to a failure result.
func (r Result) Failed() bool { return r.Error != "" }

// Orchestrator composes the feature encoder and the model runtime into the
// predictFailure operation: readiness check, encoding, timed inference,
// confidence bucketing. Nothing escapes to the caller: every failure is
// converted into a failure result, except the codec/model vector-length
// mismatch, which is systemic misconfiguration and goes to the fatal
// handler.
type Orchestrator struct {
	encoder Encoder
	runtime ModelRuntime
	logger  *log.Logger
	fatalf  func(format string, args ...any)
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFatalHandler overrides what happens on a codec/model mismatch. The
// default logger.Fatalf halts the process.
func WithFatalHandler(fatalf func(format string, args ...any)) Option {
	return func(o *Orchestrator) {
		if fatalf != nil {
			o.fatalf = fatalf
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator constructs an orchestrator.
func NewOrchestrator(encoder Encoder, runtime ModelRuntime, logger *log.Logger, opts ...Option) (*Orchestrator, error) {
	if encoder == nil {
		return nil, errors.New("prediction: nil encoder")
	}
	if runtime == nil {
		return nil, errors.New("prediction: nil model runtime")
	}
	if logger == nil {
		logger = log.Default()
	}
	o := &Orchestrator{
		encoder: encoder,
		runtime: runtime,
		logger:  logger,
		fatalf:  logger.Fatalf,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// PredictFailure runs the full prediction pipeline over one raw record.
func (o *Orchestrator) PredictFailure(raw map[string]any) Result {
	start := o.now()

	if !o.runtime.IsReady() {
		return o.failureResult(start, errors.New("model is not loaded"))
	}

	vector, err := o.encoder.Encode(raw)
	if err != nil {
		if errors.Is(err, features.ErrVectorLength) {
			o.fatalf("prediction: feature pipeline out of sync with model, halting: %v", err)
		}
		return o.failureResult(start, err)
	}

	inferStart := o.now()
	inference, err := o.runtime.Infer(vector)
	latency := o.now().Sub(inferStart)
	if err != nil {
		return o.failureResult(start, err)
	}

	return Result{
		Inference: readings.Inference{
			FailureProbability:  inference.FailureProbability,
			PredictedFailure:    inference.PredictedFailure,
			ModelVersion:        o.runtime.Version(),
			ConfidenceLevel:     ConfidenceFor(inference.FailureProbability),
			PredictionLatencyMs: int(latency.Milliseconds()),
			PredictedAt:         start,
		},
	}
}

func (o *Orchestrator) failureResult(start time.Time, cause error) Result {
	return Result{
		Inference: readings.Inference{
			FailureProbability:  0.0,
			PredictedFailure:    false,
			ModelVersion:        "error",
			ConfidenceLevel:     readings.ConfidenceLow,
			PredictionLatencyMs: int(o.now().Sub(start).Milliseconds()),
			PredictedAt:         start,
		},
		Error: cause.Error(),
	}
}

// ConfidenceFor buckets a failure probability by its distance from 0.5.
func ConfidenceFor(probability float64) readings.ConfidenceLevel {
	distance := math.Abs(probability - 0.5)
	switch {
	case distance > 0.3:
		return readings.ConfidenceVeryHigh
	case distance > 0.2:
		return readings.ConfidenceHigh
	case distance > 0.1:
		return readings.ConfidenceMedium
	default:
		return readings.ConfidenceLow
	}
}
