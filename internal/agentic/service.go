// Package agentic is the caller-facing entry point: it routes a query,
// runs the corrective loop, optionally reflects once, and reports the
// outcome.
package agentic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/events"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/orchestrator"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/reflection"
	"github.com/DanielJandric/embeddingsall-sub000/internal/router"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
)

// Defaults applied to requests that leave a field unset.
type Defaults struct {
	ConfidenceThreshold float64
	MaxIterations       int
	EnableReflection    bool
}

// DefaultDefaults returns threshold 0.75, 3 iterations, reflection on.
func DefaultDefaults() Defaults {
	return Defaults{
		ConfidenceThreshold: plan.DefaultConfidenceThreshold,
		MaxIterations:       orchestrator.DefaultMaxIterations,
		EnableReflection:    true,
	}
}

// Service answers agentic queries.
type Service struct {
	router       *router.Router
	orchestrator *orchestrator.Orchestrator
	runner       plan.ToolRunner
	reflector    *reflection.Agent
	publisher    events.Publisher
	logger       *logging.Logger
	defaults     Defaults
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPublisher sets where outcome events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDefaults replaces the request defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// NewService wires a Service. runner performs every tool call.
func NewService(r *router.Router, o *orchestrator.Orchestrator, runner plan.ToolRunner, opts ...Option) *Service {
	s := &Service{
		router:       r,
		orchestrator: o,
		runner:       runner,
		reflector:    reflection.NewAgent(),
		publisher:    events.Nop{},
		logger:       logging.NewNop(),
		defaults:     DefaultDefaults(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("agentic")
	return s
}

// settings is a request with defaults applied.
type settings struct {
	threshold     float64
	override      bool
	maxIterations int
	reflect       bool
	intent        strategy.Intent
}

func (s *Service) settle(req Request) (settings, error) {
	if strings.TrimSpace(req.Query) == "" {
		return settings{}, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	st := settings{
		threshold:     s.defaults.ConfidenceThreshold,
		maxIterations: s.defaults.MaxIterations,
		reflect:       s.defaults.EnableReflection,
	}
	if req.ConfidenceThreshold != nil {
		t := *req.ConfidenceThreshold
		if t < 0 || t > 1 {
			return settings{}, fmt.Errorf("%w: confidence_threshold %.3f outside [0,1]", ErrInvalidRequest, t)
		}
		st.threshold, st.override = t, true
	}
	if req.MaxIterations < 0 {
		return settings{}, fmt.Errorf("%w: max_iterations must be positive", ErrInvalidRequest)
	}
	if req.MaxIterations > 0 {
		st.maxIterations = req.MaxIterations
	}
	if req.EnableReflection != nil {
		st.reflect = *req.EnableReflection
	}
	if req.Intent != "" {
		intent, ok := strategy.ParseIntent(req.Intent)
		if !ok {
			return settings{}, fmt.Errorf("%w: unknown intent %q", ErrInvalidRequest, req.Intent)
		}
		st.intent = intent
	}
	return st, nil
}

// Query answers req. Errors are limited to invalid requests, malformed
// plans and caller cancellation; a low-confidence answer is a successful
// call with warnings.
func (s *Service) Query(ctx context.Context, req Request) (*Result, error) {
	st, err := s.settle(req)
	if err != nil {
		return nil, err
	}
	start := s.now()

	id := uuid.NewString()
	ctx = logging.WithQuery(ctx, logging.QueryInfo{ID: id})
	p, err := s.router.Route(ctx, req.Query, router.RouteOptions{Intent: st.intent})
	if err != nil {
		return nil, err
	}
	ctx = logging.WithQuery(ctx, logging.QueryInfo{ID: id, Intent: p.Intent()})
	if st.override {
		p = p.WithConfidenceThreshold(st.threshold)
	}

	resp, err := s.orchestrator.Run(ctx, p, s.runner, st.maxIterations)
	if err != nil {
		return nil, fmt.Errorf("run %s plan: %w", p.Intent(), err)
	}

	var critique *plan.Reflection
	if st.reflect && resp.Confidence < st.threshold {
		resp, critique, err = s.reflect(ctx, p, resp, st)
		if err != nil {
			return nil, err
		}
	}

	result := s.result(req.Query, p.Intent(), resp, critique)
	s.logger.Info(ctx, "query answered",
		zap.String("intent", p.Intent()),
		zap.Bool("success", result.Success),
		zap.Float64("confidence", resp.Confidence),
		zap.Int("iterations", resp.Iterations),
		zap.Bool("reflected", critique != nil),
		zap.Duration("duration", s.now().Sub(start)),
	)
	s.publish(ctx, id, req.Query, p.Intent(), resp, result.Success)
	return result, nil
}

// reflect critiques first and, when the critique asks for it, runs one more
// corrected pass on a replanned query. The better answer is kept. The
// iterations of both passes are counted but never exceed the caller's
// budget; plan metadata records that the extra pass ran.
// MetadataReflectionPass marks plan metadata of answers that went through
// the reflection pass.
const MetadataReflectionPass = "reflection_pass"

func (s *Service) reflect(ctx context.Context, p plan.Plan, first plan.CorrectedResponse, st settings) (plan.CorrectedResponse, *plan.Reflection, error) {
	critique := s.reflector.Reflect(p.Query(), first.Data, first.Sources)
	if !critique.ShouldContinue {
		return first, &critique, nil
	}

	replanned, err := s.router.ReplanFromReflection(ctx, p, critique, "")
	if err != nil {
		return plan.CorrectedResponse{}, nil, err
	}
	if st.override {
		replanned = replanned.WithConfidenceThreshold(st.threshold)
	}

	second, err := s.orchestrator.Run(ctx, replanned, s.runner, 1)
	if err != nil {
		return plan.CorrectedResponse{}, nil, fmt.Errorf("run reflection pass: %w", err)
	}

	best := first
	if second.Confidence > first.Confidence {
		best = second
		best.CorrectionsApplied = append(append([]string{}, first.CorrectionsApplied...), second.CorrectionsApplied...)
	}
	best.Iterations = min(first.Iterations+second.Iterations, st.maxIterations)
	best.PlanMetadata = best.PlanMetadata.Clone()
	best.PlanMetadata[MetadataReflectionPass] = true
	s.logger.Debug(ctx, "reflection pass finished",
		zap.Float64("before", first.Confidence),
		zap.Float64("after", second.Confidence),
		zap.Float64("reflection_confidence", critique.Confidence),
	)
	return best, &critique, nil
}

func (s *Service) result(query, intent string, resp plan.CorrectedResponse, critique *plan.Reflection) *Result {
	md := resp.PlanMetadata
	if md == nil {
		md = plan.Metadata{}
	}
	return &Result{
		Success: resp.Validation.Passed,
		Data: &Answer{
			Answer:              resp.Data,
			Confidence:          resp.Confidence,
			Sources:             nonNil(resp.Sources),
			Iterations:          resp.Iterations,
			Warnings:            nonNil(resp.Warnings),
			CorrectionsApplied:  nonNil(resp.CorrectionsApplied),
			ConfidenceBreakdown: resp.ConfidenceScore.Factors,
			ConfidenceFlags:     nonNil(resp.ConfidenceScore.Flags),
			Validation:          resp.Validation,
			Reflection:          critique,
		},
		Metadata: ResultMetadata{Query: query, Intent: intent, PlanMetadata: md},
	}
}

func (s *Service) publish(ctx context.Context, id, query, intent string, resp plan.CorrectedResponse, success bool) {
	ev := events.QueryCompleted{
		ID:         id,
		Query:      query,
		Intent:     intent,
		Success:    success,
		Confidence: resp.Confidence,
		Iterations: resp.Iterations,
		Warnings:   nonNil(resp.Warnings),
		At:         s.now().UTC(),
	}
	if err := s.publisher.PublishQueryCompleted(ctx, ev); err != nil {
		s.logger.Warn(ctx, "failed to publish query outcome", zap.String("intent", intent), zap.Error(err))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
