package orchestrator

import (
	"fmt"
	"strings"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// noData is substituted when the output step produced no structured map.
func noData() plan.Response {
	return plan.Response{
		plan.KeySummary: NoDataSummary,
		plan.KeyDetails: map[string]any{},
		plan.KeySources: []string{},
		plan.KeyMetrics: []float64{},
	}
}

// outcomeOf reads the output step of an executed iteration. Sources are the
// response sources followed by any provenance found in successful tool
// envelopes.
func outcomeOf(p plan.Plan, ec *plan.ExecContext) plan.Outcome {
	memory := ec.Memory()

	data := noData()
	if v, ok := memory[p.OutputStep()]; ok {
		if m, ok := plan.AsMap(v); ok {
			data = plan.Response(m)
		}
	}

	seen := make(map[string]struct{})
	sources := []string{}
	add := func(list []string) {
		for _, s := range list {
			if _, dup := seen[s]; dup || s == "" {
				continue
			}
			seen[s] = struct{}{}
			sources = append(sources, s)
		}
	}
	add(data.Sources())
	for _, name := range p.StepNames() {
		if tr, ok := memory[name].(plan.ToolResult); ok && tr.Envelope.Success {
			if m, ok := plan.AsMap(tr.Envelope.Data); ok {
				add(plan.Strings(m[plan.KeySources]))
			}
		}
	}

	return plan.Outcome{
		Query:      p.Query(),
		Data:       data,
		Sources:    sources,
		RawResults: memory,
	}
}

func correctionReason(c plan.Contradiction) string {
	return fmt.Sprintf("%s: %s", c.Rule, c.Details)
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}
