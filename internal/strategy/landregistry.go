package strategy

import (
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

const (
	StepLandRegistryLookup  = "land_registry_lookup"
	StepServitudeLookup     = "servitude_lookup"
	StepLandRegistrySummary = "land_registry_summary"
)

type landRegistry struct{ base }

func newLandRegistry(cfg Config) *landRegistry {
	return &landRegistry{base{intent: IntentLandRegistry, threshold: 0.75, cfg: cfg}}
}

func (s *landRegistry) BuildPlan(query string, opts Options) (plan.Plan, error) {
	terms := ExtractTerms(query)

	registry := LandRegistryRequest{Commune: terms.Commune, Address: terms.Address}
	if registry.Commune == "" && registry.Address == "" {
		registry.Address = terms.PropertySlug
	}
	servitudeFilters := map[string]any{"file_name": terms.FilePattern()}
	if terms.Commune != "" {
		servitudeFilters = map[string]any{"commune": terms.Commune}
	}

	lookups := plan.Phase{
		toolStep(StepLandRegistryLookup, "land registry extracts", registry),
		toolStep(StepServitudeLookup, "servitudes and charges", QueryTableRequest{
			Table:   plan.TableRegistresFonciers,
			Filters: servitudeFilters,
			Select:  "no_parcelle, commune, servitudes, gages_immobiliers, file_name, updated_at",
			Limit:   50,
		}),
	}

	summary := aggregateStep(StepLandRegistrySummary, func(ec *plan.ExecContext) plan.Response {
		parcels := readLookup(ec, StepLandRegistryLookup)
		servitudes := readLookup(ec, StepServitudeLookup)

		distinct := make(map[string]struct{})
		for _, rows := range [][]map[string]any{parcels.rows, servitudes.rows} {
			for _, row := range rows {
				if id := fmt.Sprint(row["no_parcelle"]); row["no_parcelle"] != nil && id != "" {
					distinct[id] = struct{}{}
				}
			}
		}
		var entries []any
		var charges int
		for _, row := range servitudes.rows {
			entries = append(entries, jsonList(row["servitudes"])...)
			charges += len(jsonList(row["gages_immobiliers"]))
		}

		details := map[string]any{
			"parcels":    orEmpty(parcels.rows),
			"servitudes": orEmpty(entries),
			"charges":    charges,
			"terms":      termsDetails(terms),
		}
		warnFailures(details, parcels, servitudes)

		metrics := []float64{float64(len(distinct)), float64(len(entries)), float64(charges)}
		metrics = append(metrics, harvestMetrics(append(parcels.payloads, servitudes.payloads...)...)...)

		return newResponse(
			fmt.Sprintf("Land registry for %q: %d parcels, %d servitudes.", query, len(distinct), len(entries)),
			details,
			metrics,
			collectSources(append(parcels.payloads, servitudes.payloads...)...),
			timestamps("updated_at", parcels.rows, servitudes.rows),
		)
	})

	return s.newPlan(query, opts, []plan.Phase{lookups, {summary}}, StepLandRegistrySummary)
}
