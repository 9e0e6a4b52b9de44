package strategy

import (
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Step names of factual plans.
const (
	StepDocumentsLookup = "documents_lookup"
	StepPropertyLookup  = "property_lookup"
	StepDocumentSearch  = "document_search"
	StepFactualSummary  = "factual_summary"
)

type factual struct{ base }

func newFactual(cfg Config) *factual {
	return &factual{base{intent: IntentFactual, threshold: 0.70, cfg: cfg}}
}

func (s *factual) BuildPlan(query string, opts Options) (plan.Plan, error) {
	terms := ExtractTerms(query)

	lookups := plan.Phase{
		toolStep(StepDocumentsLookup, "documents by file name", QueryTableRequest{
			Table:   plan.TableDocuments,
			Filters: map[string]any{"file_name": terms.FilePattern()},
			Select:  "id, file_name, document_type, updated_at",
			Limit:   20,
		}),
		toolStep(StepPropertyLookup, "property insights by key", QueryTableRequest{
			Table:   plan.TablePropertyInsights,
			Filters: map[string]any{"property_key": terms.KeyPattern()},
			Limit:   10,
		}),
	}
	if s.cfg.SemanticSearch {
		lookups = append(lookups, toolStep(StepDocumentSearch, "semantic passage search",
			SemanticSearchRequest{Query: query, K: 5}, plan.AsOptional()))
	}

	summary := aggregateStep(StepFactualSummary, func(ec *plan.ExecContext) plan.Response {
		docs := readLookup(ec, StepDocumentsLookup)
		props := readLookup(ec, StepPropertyLookup)
		search := readLookup(ec, StepDocumentSearch)

		details := map[string]any{
			"documents":  orEmpty(docs.rows),
			"properties": orEmpty(props.rows),
			"passages":   orEmpty(search.rows),
			"terms":      termsDetails(terms),
		}
		warnFailures(details, docs, props)

		metrics := []float64{float64(len(props.rows)), float64(len(docs.rows))}
		metrics = append(metrics, harvestMetrics(append(docs.payloads, props.payloads...)...)...)
		metrics = append(metrics, harvestMetrics(search.payloads...)...)

		return newResponse(
			fmt.Sprintf("Factual lookup for %q: %d properties, %d documents.", query, len(props.rows), len(docs.rows)),
			details,
			metrics,
			collectSources(append(append(docs.payloads, props.payloads...), search.payloads...)...),
			timestamps("updated_at", props.rows),
		)
	})

	return s.newPlan(query, opts, []plan.Phase{lookups, {summary}}, StepFactualSummary)
}
