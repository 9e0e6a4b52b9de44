// Package strategy turns a query into an execution plan for one intent.
//
// Every strategy extracts domain terms from the query, issues one or two
// phases of concurrent lookups through the tool runner, and closes with a
// single aggregation step producing
// {summary, details, metrics, sources, source_timestamps?}.
package strategy

import (
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/validation"
)

// Strategy builds plans for one intent.
type Strategy interface {
	Intent() Intent
	BuildPlan(query string, opts Options) (plan.Plan, error)
}

// Config tunes every strategy of a registry.
type Config struct {
	// StrictValidation adds the cross-check rules to every plan.
	StrictValidation bool
	// SemanticSearch adds an optional passage search to factual plans.
	SemanticSearch bool
	// MaxRetries is advertised on each plan.
	MaxRetries int
	// VacancyThreshold is the vacancy rate above which a building is
	// reported by risk plans.
	VacancyThreshold float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SemanticSearch:   true,
		MaxRetries:       2,
		VacancyThreshold: 0.1,
	}
}

// Options carries per-call planning context.
type Options struct {
	// Mode is recorded in plan metadata ("supplemental", "reflection"...).
	Mode string
	// Metadata is merged into the plan metadata.
	Metadata plan.Metadata
}

type base struct {
	intent    Intent
	threshold float64
	cfg       Config
}

func (b base) Intent() Intent { return b.intent }

func (b base) newPlan(query string, opts Options, phases []plan.Phase, output string) (plan.Plan, error) {
	md := plan.Metadata{
		"intent":   string(b.intent),
		"strategy": string(b.intent),
	}
	if opts.Mode != "" {
		md["mode"] = opts.Mode
	}
	for k, v := range opts.Metadata {
		md[k] = v
	}
	maxRetries := b.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultConfig().MaxRetries
	}
	return plan.New(query, phases, output, validation.RulesFor(b.cfg.StrictValidation),
		plan.WithConfidenceThreshold(b.threshold),
		plan.WithMaxRetries(maxRetries),
		plan.WithMetadata(md),
	)
}

// termsDetails exposes the extracted terms in response details.
func termsDetails(t Terms) map[string]any {
	return map[string]any{
		"address":       t.Address,
		"street_number": t.StreetNumber,
		"commune":       t.Commune,
		"property_slug": t.PropertySlug,
	}
}
