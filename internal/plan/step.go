package plan

import (
	"context"
	"fmt"
)

// SupplementalSuffix separates a step's base name from the counter the
// planner appends when it re-adds a lookup as a supplemental phase.
const SupplementalSuffix = "#s"

// Step is one unit of work inside a phase.
type Step interface {
	// Name is unique within a plan and is the memory key of the result.
	Name() string
	// Description is a short human-readable label.
	Description() string
	// Optional steps may fail without being reported as a warning by the
	// aggregation that consumes them.
	Optional() bool
	// Run performs the work. Returning an error marks only this step as
	// failed; sibling steps are unaffected.
	Run(ctx context.Context, ec *ExecContext) (any, error)
}

// Phase is a set of steps that run concurrently.
type Phase []Step

// StepFunc is the body of a step.
type StepFunc func(ctx context.Context, ec *ExecContext) (any, error)

// StepOption configures a step built with NewStep.
type StepOption func(*funcStep)

// AsOptional marks the step optional.
func AsOptional() StepOption {
	return func(s *funcStep) { s.optional = true }
}

// WithDescription sets the step description.
func WithDescription(d string) StepOption {
	return func(s *funcStep) { s.description = d }
}

type funcStep struct {
	name        string
	description string
	optional    bool
	fn          StepFunc
}

// NewStep builds a Step from a function.
func NewStep(name string, fn StepFunc, opts ...StepOption) Step {
	s := &funcStep{name: name, description: name, fn: fn}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *funcStep) Name() string        { return s.name }
func (s *funcStep) Description() string { return s.description }
func (s *funcStep) Optional() bool      { return s.optional }

func (s *funcStep) Run(ctx context.Context, ec *ExecContext) (any, error) {
	if s.fn == nil {
		return nil, fmt.Errorf("step %q has no body", s.name)
	}
	return s.fn(ctx, ec)
}

type renamedStep struct {
	Step
	name string
}

func (r renamedStep) Name() string { return r.name }

// Renamed returns s under a different name. The body is shared.
func Renamed(s Step, name string) Step {
	if rs, ok := s.(renamedStep); ok {
		return renamedStep{Step: rs.Step, name: name}
	}
	return renamedStep{Step: s, name: name}
}

// StepFailure is stored in memory in place of a result when a step returns
// an error, panics or exceeds its deadline.
type StepFailure struct {
	Step     string `json:"step"`
	Message  string `json:"message"`
	TimedOut bool   `json:"timed_out"`
}

func (f StepFailure) Error() string {
	if f.TimedOut {
		return fmt.Sprintf("step %s timed out", f.Step)
	}
	return fmt.Sprintf("step %s failed: %s", f.Step, f.Message)
}
