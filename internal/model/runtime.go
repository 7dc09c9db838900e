package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dmitryikh/leaves"
)

var (
	// ErrModelLoad wraps any failure to read or parse the model artifact.
	ErrModelLoad = errors.New("model: load failed")
	// ErrNotReady is returned by Infer before a successful Load.
	ErrNotReady = errors.New("model: not loaded")
)

// Session runs one inference over an encoded feature vector and returns the
// model's named outputs. Implementations must be safe for concurrent use.
type Session interface {
	Run(features []float64) (Outputs, error)
	NumFeatures() int
}

// Inference is the decoded verdict of a single model invocation.
type Inference struct {
	PredictedFailure   bool
	FailureProbability float64
}

// Runtime owns the loaded model for the process lifetime. The loaded
// ensemble is immutable after Load and safe for concurrent read-only
// inference; the mutex serializes only the load/close transitions
// (single-writer/many-reader).
type Runtime struct {
	path    string
	version string

	mu      sync.RWMutex
	session Session
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithSession installs a pre-built session, bypassing Load. Used by tests
// and by deployments that bring their own inference backend.
func WithSession(session Session) Option {
	return func(r *Runtime) {
		r.session = session
	}
}

// NewRuntime constructs a runtime for the model artifact at path.
func NewRuntime(path, version string, opts ...Option) (*Runtime, error) {
	if path == "" {
		return nil, errors.New("model: empty artifact path")
	}
	if version == "" {
		return nil, errors.New("model: empty model version")
	}
	r := &Runtime{path: path, version: version}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Load reads the LightGBM artifact from disk and swaps it in. Called once at
// startup; a failure leaves the runtime not-ready rather than crashing, so
// ingestion can continue with degraded (failure-result) predictions.
func (r *Runtime) Load() error {
	ensemble, err := leaves.LGEnsembleFromFile(r.path, true)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModelLoad, r.path, err)
	}

	r.mu.Lock()
	r.session = lightgbmSession{ensemble: ensemble}
	r.mu.Unlock()
	return nil
}

// Close releases the session. Infer returns ErrNotReady afterwards.
func (r *Runtime) Close() {
	r.mu.Lock()
	r.session = nil
	r.mu.Unlock()
}

// IsReady reports whether a model is loaded.
func (r *Runtime) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session != nil
}

// Version returns the deployed model version string.
func (r *Runtime) Version() string { return r.version }

// NumFeatures returns the input width the loaded model expects, or 0 when
// not loaded. Startup wiring compares this against the codec's vector length
// and treats a mismatch as fatal misconfiguration.
func (r *Runtime) NumFeatures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil {
		return 0
	}
	return r.session.NumFeatures()
}

// Infer runs the model over one encoded vector and decodes the failure
// probability through the output accessor contract.
func (r *Runtime) Infer(features []float64) (Inference, error) {
	r.mu.RLock()
	session := r.session
	r.mu.RUnlock()

	if session == nil {
		return Inference{}, ErrNotReady
	}

	outputs, err := session.Run(features)
	if err != nil {
		return Inference{}, err
	}
	probability, err := failureProbability(outputs.Probabilities)
	if err != nil {
		return Inference{}, err
	}
	predicted := len(outputs.Labels) > 0 && outputs.Labels[0] == failureClass
	return Inference{PredictedFailure: predicted, FailureProbability: probability}, nil
}

// lightgbmSession adapts a leaves ensemble to the Session contract. The
// classifier was exported with its sigmoid transformation, so PredictSingle
// yields p(failure) directly; the session republishes it as the per-class
// probability map the accessor contract expects.
type lightgbmSession struct {
	ensemble *leaves.Ensemble
}

func (s lightgbmSession) NumFeatures() int { return s.ensemble.NFeatures() }

func (s lightgbmSession) Run(features []float64) (Outputs, error) {
	if len(features) != s.ensemble.NFeatures() {
		return Outputs{}, fmt.Errorf("model: input width %d, model expects %d", len(features), s.ensemble.NFeatures())
	}

	p := s.ensemble.PredictSingle(features, 0)
	label := noFailureClass
	if p >= 0.5 {
		label = failureClass
	}
	return Outputs{
		Labels:        []int64{label},
		Probabilities: map[int64]float64{noFailureClass: 1 - p, failureClass: p},
	}, nil
}
