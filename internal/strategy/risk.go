package strategy

import (
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

const (
	StepRiskAlerts  = "risk_alerts"
	StepRiskSummary = "risk_summary"
)

type risk struct{ base }

func newRisk(cfg Config) *risk {
	return &risk{base{intent: IntentRisk, threshold: 0.75, cfg: cfg}}
}

func (s *risk) BuildPlan(query string, opts Options) (plan.Plan, error) {
	terms := ExtractTerms(query)
	threshold := s.cfg.VacancyThreshold
	if threshold <= 0 {
		threshold = DefaultConfig().VacancyThreshold
	}

	lookups := plan.Phase{
		toolStep(StepRiskAlerts, "vacancy alerts", VacancyAlertsRequest{
			Threshold: threshold,
			Commune:   terms.Commune,
			Limit:     20,
		}),
	}

	summary := aggregateStep(StepRiskSummary, func(ec *plan.ExecContext) plan.Response {
		alerts := readLookup(ec, StepRiskAlerts)

		details := map[string]any{
			"alerts":            orEmpty(alerts.rows),
			"vacancy_threshold": threshold,
			"commune":           terms.Commune,
		}
		warnFailures(details, alerts)

		metrics := []float64{float64(len(alerts.rows))}
		metrics = append(metrics, harvestMetrics(alerts.payloads...)...)

		return newResponse(
			fmt.Sprintf("Risk review for %q: %d buildings above %.0f%% vacancy.", query, len(alerts.rows), threshold*100),
			details,
			metrics,
			collectSources(alerts.payloads...),
			timestamps("updated_at", alerts.rows),
		)
	})

	return s.newPlan(query, opts, []plan.Phase{lookups, {summary}}, StepRiskSummary)
}
