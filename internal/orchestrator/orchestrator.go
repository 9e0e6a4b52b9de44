package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/confidence"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/validation"
)

const instrumentationName = "github.com/DanielJandric/embeddingsall-sub000/internal/orchestrator"

// Orchestrator is the corrective execution loop.
type Orchestrator struct {
	cfg      Config
	enricher Enricher
	recorder CorrectionRecorder
	progress ProgressCallback
	logger   *logging.Logger
	chain    *validation.Chain
	scorer   *confidence.Scorer

	tracer     trace.Tracer
	iterations metric.Int64Counter
	outcomes   metric.Int64Counter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the execution config.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRecorder sets the correction recorder.
func WithRecorder(r CorrectionRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// OnProgress sets the progress callback.
func OnProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) { o.progress = cb }
}

// WithValidationChain replaces the validation chain.
func WithValidationChain(c *validation.Chain) Option {
	return func(o *Orchestrator) { o.chain = c }
}

// New creates an orchestrator that corrects plans with enricher.
func New(enricher Enricher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      DefaultConfig(),
		enricher: enricher,
		logger:   logging.NewNop(),
		chain:    validation.NewChain(),
		scorer:   confidence.NewScorer(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.cfg = o.cfg.withDefaults()
	o.logger = o.logger.Named("orchestrator")
	o.initMetrics()
	return o
}

func (o *Orchestrator) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error
	o.iterations, err = meter.Int64Counter(
		"propertyrag.orchestrator.iterations_total",
		metric.WithDescription("Total number of corrective iterations executed"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		o.logger.Warn(context.Background(), "failed to create iterations counter", zap.Error(err))
	}
	o.outcomes, err = meter.Int64Counter(
		"propertyrag.orchestrator.outcomes_total",
		metric.WithDescription("Total number of runs by terminal state"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		o.logger.Warn(context.Background(), "failed to create outcomes counter", zap.Error(err))
	}
}

// iteration is what one pass over the plan produced.
type iteration struct {
	outcome    plan.Outcome
	validation plan.ValidationResult
	score      plan.ConfidenceScore
}

// Run executes p, correcting it until it is accepted or maxIterations
// passes have run. maxIterations below 1 means DefaultMaxIterations. The
// only error is the caller's context error.
func (o *Orchestrator) Run(ctx context.Context, p plan.Plan, runner plan.ToolRunner, maxIterations int) (plan.CorrectedResponse, error) {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("intent", p.Intent()),
		attribute.Int("max_iterations", maxIterations),
		attribute.Float64("confidence_threshold", p.ConfidenceThreshold()),
	)

	current := p
	var (
		last     iteration
		executed plan.Plan
		history  []string
	)
	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return plan.CorrectedResponse{}, err
		}

		it, err := o.iterate(ctx, current, runner, i)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return plan.CorrectedResponse{}, err
		}
		last, executed = it, current

		if it.validation.Passed && it.score.Overall >= current.ConfidenceThreshold() {
			o.report(i, StateAccepted, fmt.Sprintf("confidence %.3f", it.score.Overall))
			o.countOutcome(ctx, StateAccepted)
			span.SetAttributes(attribute.Int("iterations", i+1), attribute.String("state", string(StateAccepted)))
			return o.respond(current, it, i+1, history, nil), nil
		}

		o.report(i, StateCorrecting, fmt.Sprintf("%d contradictions", len(it.validation.Contradictions)))
		var reasons []string
		for _, c := range it.validation.Contradictions {
			reasons = append(reasons, correctionReason(c))
		}
		history = append(history, reasons...)
		for _, reason := range reasons {
			o.record(ctx, current.Query(), i, reason)
		}
		if len(reasons) > 0 && o.enricher != nil {
			enriched, err := o.enricher.EnrichPlan(current, joinReasons(reasons))
			if err != nil {
				o.logger.Warn(ctx, "plan enrichment failed", zap.Int("iteration", i), zap.Error(err))
			} else {
				current = enriched
			}
		}

		if !it.validation.RequiresRequery {
			break
		}
	}

	// Best effort: the last outcome, judged again, with explicit warnings.
	last.validation = o.validate(ctx, executed, last.outcome)
	last.score = o.scorer.Score(last.outcome.Data, last.outcome.Sources, last.validation)

	o.report(maxIterations-1, StateExhausted, fmt.Sprintf("confidence %.3f", last.score.Overall))
	o.countOutcome(ctx, StateExhausted)
	span.SetAttributes(attribute.Int("iterations", maxIterations), attribute.String("state", string(StateExhausted)))
	o.logger.Info(ctx, "correction budget exhausted",
		zap.String("intent", p.Intent()),
		zap.Int("iterations", maxIterations),
		zap.Float64("confidence", last.score.Overall),
		zap.Int("corrections", len(history)),
	)
	return o.respond(executed, last, maxIterations, history, []string{WarningMaxIterations, WarningLowConfidence}), nil
}

func (o *Orchestrator) iterate(ctx context.Context, p plan.Plan, runner plan.ToolRunner, i int) (iteration, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.iteration")
	defer span.End()
	span.SetAttributes(attribute.Int("iteration", i), attribute.Int("phases", len(p.Phases())))
	if o.iterations != nil {
		o.iterations.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", p.Intent())))
	}

	o.report(i, StatePlanning, fmt.Sprintf("%d phases", len(p.Phases())))
	md := p.Metadata()
	md["iteration"] = i
	ec := plan.NewExecContext(p.Query(), runner, md)

	o.report(i, StateExecuting, "")
	if err := NewExecutor(o.cfg, o.logger).Execute(ctx, p, ec); err != nil {
		return iteration{}, err
	}

	out := outcomeOf(p, ec)
	o.report(i, StateValidating, "")
	v := o.validate(ctx, p, out)

	o.report(i, StateScoring, "")
	score := o.scorer.Score(out.Data, out.Sources, v)

	span.SetAttributes(
		attribute.Bool("validation.passed", v.Passed),
		attribute.Float64("confidence", score.Overall),
	)
	o.logger.Debug(ctx, "iteration scored",
		zap.Int("iteration", i),
		zap.Bool("passed", v.Passed),
		zap.Bool("requires_requery", v.RequiresRequery),
		zap.Float64("confidence", score.Overall),
		zap.Strings("flags", score.Flags),
	)
	return iteration{outcome: out, validation: v, score: score}, nil
}

func (o *Orchestrator) validate(ctx context.Context, p plan.Plan, out plan.Outcome) plan.ValidationResult {
	return o.chain.Validate(ctx, p.Rules(), validation.Input{
		Query:    out.Query,
		Response: out.Data,
		Sources:  out.Sources,
		Memory:   out.RawResults,
	})
}

func (o *Orchestrator) respond(p plan.Plan, it iteration, iterations int, history, warnings []string) plan.CorrectedResponse {
	return plan.CorrectedResponse{
		Data:               it.outcome.Data,
		Confidence:         it.score.Overall,
		Iterations:         iterations,
		Sources:            it.outcome.Sources,
		Contradictions:     it.validation.Contradictions,
		Validation:         it.validation,
		ConfidenceScore:    it.score,
		Warnings:           append([]string{}, warnings...),
		CorrectionsApplied: append([]string{}, history...),
		PlanMetadata:       p.Metadata(),
	}
}

func (o *Orchestrator) report(i int, state State, msg string) {
	if o.progress != nil {
		o.progress(Progress{Iteration: i + 1, State: state, Message: msg})
	}
}

func (o *Orchestrator) record(ctx context.Context, query string, i int, reason string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordCorrection(ctx, query, i+1, reason); err != nil {
		o.logger.Warn(ctx, "failed to record correction", zap.Error(err))
	}
}

func (o *Orchestrator) countOutcome(ctx context.Context, state State) {
	if o.outcomes != nil {
		o.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
	}
}
