// Package router classifies queries into intents and builds the matching
// plan. It can also rebuild a plan after a reflection pass.
package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
)

// Metadata keys written by the router.
const (
	MetaReflection = "reflection"
	ModeReflection = "reflection"
)

// RouteOptions overrides classification.
type RouteOptions struct {
	// Intent, when set, bypasses classification.
	Intent strategy.Intent
	// Metadata is merged into the plan metadata.
	Metadata plan.Metadata
}

// Router selects a strategy for each query.
type Router struct {
	registry *strategy.Registry
	logger   *logging.Logger
}

// New creates a Router.
func New(registry *strategy.Registry, logger *logging.Logger) *Router {
	return &Router{registry: registry, logger: logger.Named("router")}
}

// Classify maps a query to an intent.
func (r *Router) Classify(query string) strategy.Intent {
	return Classify(query)
}

// Route builds the plan for query. An unknown explicit intent falls back to
// the default strategy.
func (r *Router) Route(ctx context.Context, query string, opts RouteOptions) (plan.Plan, error) {
	intent := opts.Intent
	source := "explicit"
	if intent == "" {
		intent = r.Classify(query)
		source = "classified"
	}
	if _, ok := r.registry.Get(intent); !ok {
		r.logger.Warn(ctx, "unknown intent, using default strategy", zap.String("intent", string(intent)))
		intent = strategy.DefaultIntent
	}

	p, err := r.registry.BuildPlan(intent, query, strategy.Options{Metadata: opts.Metadata})
	if err != nil {
		return plan.Plan{}, fmt.Errorf("route %s: %w", intent, err)
	}
	r.logger.Debug(ctx, "query routed",
		zap.String("intent", string(intent)),
		zap.String("source", source),
		zap.Int("phases", len(p.Phases())),
	)
	return p, nil
}

// ReplanFromReflection rebuilds p for the same query. An override wins;
// otherwise a reflection that asks to continue gets the synthesis strategy
// and any other verdict gets the default one. The improvement actions are
// recorded in the plan metadata.
func (r *Router) ReplanFromReflection(ctx context.Context, p plan.Plan, reflection plan.Reflection, override strategy.Intent) (plan.Plan, error) {
	target := strategy.DefaultIntent
	switch {
	case override != "":
		if _, ok := r.registry.Get(override); ok {
			target = override
		}
	case reflection.ShouldContinue:
		target = strategy.IntentSynthesis
	}

	replanned, err := r.registry.BuildPlan(target, p.Query(), strategy.Options{Mode: ModeReflection})
	if err != nil {
		return plan.Plan{}, fmt.Errorf("replan %s: %w", target, err)
	}

	md := p.Metadata()
	for k, v := range replanned.Metadata() {
		md[k] = v
	}
	md[MetaReflection] = append([]string{}, reflection.ImprovementActions...)

	r.logger.Info(ctx, "replanned from reflection",
		zap.String("from", p.Intent()),
		zap.String("to", string(target)),
		zap.Float64("reflection_confidence", reflection.Confidence),
	)
	return replanned.WithMetadata(md), nil
}
