// Package planner derives new plans from existing ones: supplemental
// enrichment after a failed iteration, and composite multi-domain plans.
package planner

import (
	"fmt"
	"strings"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
)

// Metadata keys written by the planner.
const (
	MetaMode            = "mode"
	MetaEnrichmentNotes = "enrichment_notes"
	MetaEnrichments     = "enrichments"
	MetaComposed        = "composed"
	MetaComposedOf      = "composed_of"

	ModeSupplemental = "supplemental"
)

// composedIntents are merged by PlanComplexQuery. The first one provides
// the output phase.
var composedIntents = []strategy.Intent{
	strategy.IntentFactual,
	strategy.IntentFinancial,
	strategy.IntentComparative,
	strategy.IntentLandRegistry,
	strategy.IntentStakeholder,
}

// Planner builds derived plans from the strategies of a registry.
type Planner struct {
	registry *strategy.Registry
}

// New returns a Planner over registry.
func New(registry *strategy.Registry) *Planner {
	return &Planner{registry: registry}
}

// EnrichPlan inserts a supplemental lookup phase before the output phase of
// p. The lookups are chosen from reason; existing phases are kept.
func (pl *Planner) EnrichPlan(p plan.Plan, reason string) (plan.Plan, error) {
	if p.IsZero() {
		return plan.Plan{}, fmt.Errorf("%w: cannot enrich an empty plan", plan.ErrMalformedPlan)
	}
	md := p.Metadata()
	n := enrichmentCount(md) + 1

	source, err := pl.registry.BuildPlan(SupplementFor(reason), p.Query(), strategy.Options{Mode: ModeSupplemental})
	if err != nil {
		return plan.Plan{}, fmt.Errorf("build supplemental lookups: %w", err)
	}
	lookups := source.Phases()[0]
	phase := make(plan.Phase, 0, len(lookups))
	for _, step := range lookups {
		phase = append(phase, plan.Renamed(step, fmt.Sprintf("%s%s%d", step.Name(), plan.SupplementalSuffix, n)))
	}

	enriched, err := p.WithPhaseBeforeOutput(phase)
	if err != nil {
		return plan.Plan{}, err
	}
	notes := append(plan.Strings(md[MetaEnrichmentNotes]), reason)
	return enriched.WithMetadata(plan.Metadata{
		MetaMode:            ModeSupplemental,
		MetaEnrichmentNotes: notes,
		MetaEnrichments:     n,
	}), nil
}

// SupplementFor picks the intent whose lookups best address reason.
func SupplementFor(reason string) strategy.Intent {
	r := strategy.Normalize(reason)
	switch {
	case strings.Contains(r, "stakeholder"):
		return strategy.IntentStakeholder
	case strings.Contains(r, "registre"), strings.Contains(r, "foncier"), strings.Contains(r, "land"):
		return strategy.IntentLandRegistry
	default:
		return strategy.IntentFactual
	}
}

// PlanComplexQuery merges the lookup phases of the factual, financial,
// comparative, land-registry and stakeholder plans and keeps the factual
// output phase.
func (pl *Planner) PlanComplexQuery(query string) (plan.Plan, error) {
	var (
		lookups   []plan.Phase
		output    plan.Phase
		outStep   string
		threshold float64
		rules     []plan.Rule
		retries   int
		names     []string
	)
	for i, intent := range composedIntents {
		p, err := pl.registry.BuildPlan(intent, query, strategy.Options{})
		if err != nil {
			return plan.Plan{}, fmt.Errorf("compose %s: %w", intent, err)
		}
		phases := p.Phases()
		for j, phase := range phases[:len(phases)-1] {
			if j == len(lookups) {
				lookups = append(lookups, nil)
			}
			lookups[j] = append(lookups[j], phase...)
		}
		if i == 0 {
			output = phases[len(phases)-1]
			outStep = p.OutputStep()
			rules = p.Rules()
			retries = p.MaxRetries()
		}
		threshold = max(threshold, p.ConfidenceThreshold())
		names = append(names, string(intent))
	}

	return plan.New(query, append(lookups, output), outStep, rules,
		plan.WithConfidenceThreshold(threshold),
		plan.WithMaxRetries(retries),
		plan.WithMetadata(plan.Metadata{
			"intent":       string(composedIntents[0]),
			"strategy":     "composite",
			MetaComposed:   true,
			MetaComposedOf: names,
		}),
	)
}

func enrichmentCount(md plan.Metadata) int {
	n, ok := plan.Float(md[MetaEnrichments])
	if !ok {
		return 0
	}
	return int(n)
}
