package strategy

import (
	"strings"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

const StepSynthesisSummary = "synthesis_summary"

type synthesis struct {
	base
	constituents []Strategy
}

func newSynthesis(cfg Config, constituents ...Strategy) *synthesis {
	threshold := 0.0
	for _, c := range constituents {
		t, ok := c.(interface{ confidenceThreshold() float64 })
		if ok && t.confidenceThreshold() > threshold {
			threshold = t.confidenceThreshold()
		}
	}
	return &synthesis{
		base:         base{intent: IntentSynthesis, threshold: threshold, cfg: cfg},
		constituents: constituents,
	}
}

func (s *synthesis) BuildPlan(query string, opts Options) (plan.Plan, error) {
	var phases []plan.Phase
	type part struct {
		intent Intent
		output string
	}
	parts := make([]part, 0, len(s.constituents))
	for _, c := range s.constituents {
		p, err := c.BuildPlan(query, Options{})
		if err != nil {
			return plan.Plan{}, err
		}
		phases = append(phases, p.Phases()...)
		parts = append(parts, part{intent: c.Intent(), output: p.OutputStep()})
	}

	summary := aggregateStep(StepSynthesisSummary, func(ec *plan.ExecContext) plan.Response {
		var (
			summaries []string
			sources   []string
			metrics   []float64
			stamps    []string
			warnings  []string
		)
		sections := make(map[string]any, len(parts))
		for _, pt := range parts {
			v, ok := ec.Load(pt.output)
			if !ok {
				warnings = append(warnings, pt.output+" produced no result")
				continue
			}
			resp, ok := v.(plan.Response)
			if !ok {
				if f, isFailure := v.(plan.StepFailure); isFailure {
					warnings = append(warnings, f.Error())
				}
				continue
			}
			if s := resp.Summary(); s != "" {
				summaries = append(summaries, s)
			}
			sources = append(sources, resp.Sources()...)
			metrics = append(metrics, resp.Metrics()...)
			stamps = append(stamps, resp.Timestamps()...)
			warnings = append(warnings, resp.Warnings()...)
			sections[string(pt.intent)] = resp.Details()
		}

		details := map[string]any{"sections": sections}
		if len(warnings) > 0 {
			details[plan.KeyWarnings] = warnings
		}
		return newResponse(strings.Join(summaries, "\n"), details, metrics, sources, mergeStrings(stamps))
	})
	phases = append(phases, plan.Phase{summary})

	return s.newPlan(query, opts, phases, StepSynthesisSummary)
}

func (b base) confidenceThreshold() float64 { return b.threshold }
