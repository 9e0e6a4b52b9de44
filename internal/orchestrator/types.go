package orchestrator

import (
	"context"
	"time"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// State is a state of the corrective loop.
type State string

const (
	StatePlanning   State = "planning"
	StateExecuting  State = "executing"
	StateValidating State = "validating"
	StateScoring    State = "scoring"
	StateAccepted   State = "accepted"
	StateCorrecting State = "correcting"
	StateExhausted  State = "exhausted"
)

// Terminal reports whether the loop ends in s.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateExhausted
}

// Warnings attached to a best-effort answer.
const (
	WarningMaxIterations = "max iterations reached"
	WarningLowConfidence = "confidence below threshold"
)

// NoDataSummary is the summary of the substitute response used when the
// output step produced nothing usable.
const NoDataSummary = "no data"

// Defaults.
const (
	DefaultMaxIterations    = 3
	DefaultMaxParallelSteps = 8
	DefaultStepTimeout      = 20 * time.Second
)

// Config tunes execution.
type Config struct {
	// MaxParallelSteps bounds the concurrent steps of one phase.
	MaxParallelSteps int
	// StepTimeout is the deadline of a single step.
	StepTimeout time.Duration
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		MaxParallelSteps: DefaultMaxParallelSteps,
		StepTimeout:      DefaultStepTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxParallelSteps <= 0 {
		c.MaxParallelSteps = DefaultMaxParallelSteps
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	return c
}

// Progress reports a state transition.
type Progress struct {
	Iteration int    `json:"iteration"`
	State     State  `json:"state"`
	Message   string `json:"message"`
}

// ProgressCallback receives progress updates during a run.
type ProgressCallback func(progress Progress)

// Enricher derives a corrected plan from a correction reason.
type Enricher interface {
	EnrichPlan(p plan.Plan, reason string) (plan.Plan, error)
}

// CorrectionRecorder is told about every correction reason.
type CorrectionRecorder interface {
	RecordCorrection(ctx context.Context, query string, iteration int, reason string) error
}
