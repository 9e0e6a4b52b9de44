package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

const (
	StepTenantRoll         = "tenant_roll"
	StepStakeholderSummary = "stakeholder_summary"
)

type stakeholder struct{ base }

func newStakeholder(cfg Config) *stakeholder {
	return &stakeholder{base{intent: IntentStakeholder, threshold: 0.70, cfg: cfg}}
}

func (s *stakeholder) BuildPlan(query string, opts Options) (plan.Plan, error) {
	terms := ExtractTerms(query)

	lookups := plan.Phase{
		toolStep(StepTenantRoll, "tenant roll by file name", QueryTableRequest{
			Table:   plan.TableEtatsLocatifs,
			Filters: map[string]any{"file_name": terms.FilePattern()},
			Select:  "locataire, immeuble_nom, loyer_annuel_effectif, taux_occupation_unites, file_name, updated_at",
			Limit:   100,
		}),
	}

	summary := aggregateStep(StepStakeholderSummary, func(ec *plan.ExecContext) plan.Response {
		roll := readLookup(ec, StepTenantRoll)

		seen := make(map[string]struct{})
		for _, row := range roll.rows {
			if name, ok := row["locataire"].(string); ok && strings.TrimSpace(name) != "" {
				seen[strings.TrimSpace(name)] = struct{}{}
			}
		}
		tenants := make([]string, 0, len(seen))
		for name := range seen {
			tenants = append(tenants, name)
		}
		sort.Strings(tenants)
		occupancy := numbers("taux_occupation_unites", roll.rows)

		details := map[string]any{
			"tenants":   tenants,
			"occupancy": mean(occupancy),
			"terms":     termsDetails(terms),
		}
		warnFailures(details, roll)

		metrics := []float64{float64(len(tenants))}
		if len(occupancy) > 0 {
			metrics = append(metrics, mean(occupancy))
		}
		metrics = append(metrics, harvestMetrics(roll.payloads...)...)

		return newResponse(
			fmt.Sprintf("Stakeholders for %q: %d distinct tenants.", query, len(tenants)),
			details,
			metrics,
			collectSources(roll.payloads...),
			timestamps("updated_at", roll.rows),
		)
	})

	return s.newPlan(query, opts, []plan.Phase{lookups, {summary}}, StepStakeholderSummary)
}
