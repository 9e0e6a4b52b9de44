package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPlan is returned when a plan violates its structural
// invariants. Construction fails fast; a malformed plan is never executed.
var ErrMalformedPlan = errors.New("malformed plan")

// Defaults applied when a plan does not say otherwise.
const (
	DefaultConfidenceThreshold = 0.75
	DefaultMaxRetries          = 3
)

// RuleInput is what a validation rule inspects.
type RuleInput struct {
	Query    string
	Response Response
	Sources  []string
	// Memory is the step results of the iteration that produced Response.
	// Rules must tolerate a nil map.
	Memory map[string]any
}

// Rule is a named predicate over an Outcome.
type Rule interface {
	Name() string
	Check(ctx context.Context, in RuleInput) CheckResult
}

// Plan is an immutable execution plan. Derivation methods return new plans
// and never modify the receiver.
type Plan struct {
	query      string
	phases     []Phase
	outputStep string
	rules      []Rule
	threshold  float64
	maxRetries int
	metadata   Metadata
}

// Option configures a plan at construction.
type Option func(*Plan)

// WithConfidenceThreshold sets the acceptance threshold.
func WithConfidenceThreshold(t float64) Option {
	return func(p *Plan) { p.threshold = t }
}

// WithMaxRetries sets the retry budget advertised by the plan.
func WithMaxRetries(n int) Option {
	return func(p *Plan) { p.maxRetries = n }
}

// WithMetadata merges md into the plan metadata.
func WithMetadata(md Metadata) Option {
	return func(p *Plan) {
		for k, v := range md {
			p.metadata[k] = v
		}
	}
}

// New builds and validates a plan. outputStep must be a step of the last
// phase; its result is the plan's answer.
func New(query string, phases []Phase, outputStep string, rules []Rule, opts ...Option) (Plan, error) {
	p := Plan{
		query:      strings.TrimSpace(query),
		phases:     clonePhases(phases),
		outputStep: outputStep,
		rules:      append([]Rule(nil), rules...),
		threshold:  DefaultConfidenceThreshold,
		maxRetries: DefaultMaxRetries,
		metadata:   Metadata{},
	}
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func (p Plan) validate() error {
	if p.query == "" {
		return fmt.Errorf("%w: empty query", ErrMalformedPlan)
	}
	if len(p.phases) == 0 {
		return fmt.Errorf("%w: no phases", ErrMalformedPlan)
	}
	if len(p.rules) == 0 {
		return fmt.Errorf("%w: no validation rules", ErrMalformedPlan)
	}
	if p.threshold < 0 || p.threshold > 1 {
		return fmt.Errorf("%w: confidence threshold %.2f outside [0,1]", ErrMalformedPlan, p.threshold)
	}

	seen := make(map[string]struct{})
	for i, phase := range p.phases {
		if len(phase) == 0 {
			return fmt.Errorf("%w: phase %d is empty", ErrMalformedPlan, i)
		}
		for _, s := range phase {
			if s == nil || s.Name() == "" {
				return fmt.Errorf("%w: phase %d has an unnamed step", ErrMalformedPlan, i)
			}
			if _, dup := seen[s.Name()]; dup {
				return fmt.Errorf("%w: duplicate step name %q", ErrMalformedPlan, s.Name())
			}
			seen[s.Name()] = struct{}{}
		}
	}

	last := p.phases[len(p.phases)-1]
	for _, s := range last {
		if s.Name() == p.outputStep {
			return nil
		}
	}
	return fmt.Errorf("%w: output step %q is not in the last phase", ErrMalformedPlan, p.outputStep)
}

// Query returns the natural-language query the plan answers.
func (p Plan) Query() string { return p.query }

// Phases returns a copy of the phases.
func (p Plan) Phases() []Phase { return clonePhases(p.phases) }

// OutputStep returns the name of the step whose result is the answer.
func (p Plan) OutputStep() string { return p.outputStep }

// Rules returns the validation rules.
func (p Plan) Rules() []Rule { return append([]Rule(nil), p.rules...) }

// ConfidenceThreshold returns the acceptance threshold.
func (p Plan) ConfidenceThreshold() float64 { return p.threshold }

// MaxRetries returns the retry budget.
func (p Plan) MaxRetries() int { return p.maxRetries }

// Metadata returns a copy of the metadata.
func (p Plan) Metadata() Metadata { return p.metadata.Clone() }

// Intent returns the metadata intent, if any.
func (p Plan) Intent() string { return p.metadata.String("intent") }

// IsZero reports whether p is the zero Plan.
func (p Plan) IsZero() bool { return len(p.phases) == 0 }

// StepNames lists every step name in execution order.
func (p Plan) StepNames() []string {
	var names []string
	for _, phase := range p.phases {
		for _, s := range phase {
			names = append(names, s.Name())
		}
	}
	return names
}

// WithPhaseBeforeOutput returns a copy with phase inserted just before the
// final output phase.
func (p Plan) WithPhaseBeforeOutput(phase Phase) (Plan, error) {
	n := len(p.phases)
	if n == 0 {
		return Plan{}, fmt.Errorf("%w: cannot extend an empty plan", ErrMalformedPlan)
	}
	phases := make([]Phase, 0, n+1)
	phases = append(phases, p.phases[:n-1]...)
	phases = append(phases, phase)
	phases = append(phases, p.phases[n-1])
	return p.derive(phases, p.metadata)
}

// WithAppendedPhase returns a copy with phase appended as the new terminal
// phase; outputStep must name one of its steps.
func (p Plan) WithAppendedPhase(phase Phase, outputStep string) (Plan, error) {
	phases := append(clonePhases(p.phases), phase)
	out := p
	out.outputStep = outputStep
	return out.derive(phases, p.metadata)
}

// WithMetadata returns a copy whose metadata has md merged over it.
func (p Plan) WithMetadata(md Metadata) Plan {
	merged := p.metadata.Clone()
	for k, v := range md {
		merged[k] = v
	}
	out := p
	out.metadata = merged
	return out
}

// WithConfidenceThreshold returns a copy with a different threshold,
// clamped to [0,1].
func (p Plan) WithConfidenceThreshold(t float64) Plan {
	out := p
	out.threshold = min(max(t, 0), 1)
	return out
}

func (p Plan) derive(phases []Phase, md Metadata) (Plan, error) {
	out := p
	out.phases = clonePhases(phases)
	out.metadata = md.Clone()
	if err := out.validate(); err != nil {
		return Plan{}, err
	}
	return out, nil
}

func clonePhases(phases []Phase) []Phase {
	out := make([]Phase, len(phases))
	for i, phase := range phases {
		out[i] = append(Phase(nil), phase...)
	}
	return out
}
