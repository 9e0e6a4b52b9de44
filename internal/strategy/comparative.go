package strategy

import (
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

const (
	StepMarketSnapshot     = "market_snapshot"
	StepComparativeSummary = "comparative_summary"
)

type comparative struct{ base }

func newComparative(cfg Config) *comparative {
	return &comparative{base{intent: IntentComparative, threshold: 0.70, cfg: cfg}}
}

func (s *comparative) BuildPlan(query string, opts Options) (plan.Plan, error) {
	terms := ExtractTerms(query)

	// Without a commune the snapshot is an unfiltered market sample.
	filters := map[string]any{}
	if terms.Commune != "" {
		filters["immeuble_ville"] = terms.Commune
	}
	lookups := plan.Phase{
		toolStep(StepMarketSnapshot, "rent roll of the commune", QueryTableRequest{
			Table:   plan.TableEtatsLocatifs,
			Filters: filters,
			Select:  "immeuble_nom, immeuble_adresse, immeuble_ville, loyer_annuel_total, taux_occupation_unites, file_name, updated_at",
			Limit:   25,
		}),
	}

	summary := aggregateStep(StepComparativeSummary, func(ec *plan.ExecContext) plan.Response {
		market := readLookup(ec, StepMarketSnapshot)
		rents := numbers("loyer_annuel_total", market.rows)

		details := map[string]any{
			"market":                  orEmpty(market.rows),
			"commune":                 terms.Commune,
			"average_annual_rent_chf": mean(rents),
		}
		warnFailures(details, market)

		var metrics []float64
		if len(rents) > 0 {
			metrics = append(metrics, mean(rents))
		}
		metrics = append(metrics, harvestMetrics(market.payloads...)...)

		return newResponse(
			fmt.Sprintf("Market comparison for %q over %d buildings.", query, len(market.rows)),
			details,
			metrics,
			collectSources(market.payloads...),
			timestamps("updated_at", market.rows),
		)
	})

	return s.newPlan(query, opts, []plan.Phase{lookups, {summary}}, StepComparativeSummary)
}
