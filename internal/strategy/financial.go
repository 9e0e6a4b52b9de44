package strategy

import (
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

const (
	StepFinancialOverview = "financial_overview"
	StepFinancialSummary  = "financial_summary"
)

const fieldRentTotal = "rent_total_chf"

type financial struct{ base }

func newFinancial(cfg Config) *financial {
	return &financial{base{intent: IntentFinancial, threshold: 0.75, cfg: cfg}}
}

func (s *financial) BuildPlan(query string, opts Options) (plan.Plan, error) {
	terms := ExtractTerms(query)

	lookups := plan.Phase{
		toolStep(StepFinancialOverview, "rent figures by property key", QueryTableRequest{
			Table:   plan.TablePropertyInsights,
			Filters: map[string]any{"property_key": terms.KeyPattern()},
			Select:  "property_key, rent_total_chf, rent_principal_chf, document_ids, updated_at",
			Limit:   10,
		}),
	}

	summary := aggregateStep(StepFinancialSummary, func(ec *plan.ExecContext) plan.Response {
		overview := readLookup(ec, StepFinancialOverview)
		rents := numbers(fieldRentTotal, overview.rows)

		details := map[string]any{
			"financials": orEmpty(overview.rows),
			"totals": map[string]any{
				"properties":       len(overview.rows),
				"rent_total_chf":   sum(rents),
				"average_rent_chf": mean(rents),
			},
			"terms": termsDetails(terms),
		}
		warnFailures(details, overview)

		metrics := append(append([]float64(nil), rents...), harvestMetrics(overview.payloads...)...)

		return newResponse(
			fmt.Sprintf("Financial overview for %q: %d properties, total rent %.0f CHF.", query, len(overview.rows), sum(rents)),
			details,
			metrics,
			collectSources(overview.payloads...),
			timestamps("updated_at", overview.rows),
		)
	})

	return s.newPlan(query, opts, []plan.Phase{lookups, {summary}}, StepFinancialSummary)
}
