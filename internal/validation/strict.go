package validation

import (
	"context"
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Memory keys read by the strict rules.
const (
	memDocumentsLookup = "documents_lookup"
	memPropertyLookup  = "property_lookup"
	detailsFinancials  = "financials"
	fieldRentTotal     = "rent_total_chf"
)

// DocumentPropertyAlignment cross-checks that a factual lookup found both
// documents and property records. It is silent for plans without those
// lookups.
type DocumentPropertyAlignment struct{}

func (DocumentPropertyAlignment) Name() string { return RuleDocumentPropertyAlignment }

func (DocumentPropertyAlignment) Check(_ context.Context, in Input) plan.CheckResult {
	docs, haveDocs := rowCount(in.Memory, memDocumentsLookup)
	props, haveProps := rowCount(in.Memory, memPropertyLookup)
	if !haveDocs && !haveProps {
		return plan.CheckResult{
			Name:     RuleDocumentPropertyAlignment,
			Passed:   true,
			Details:  "no document or property lookups in this plan",
			Severity: plan.SeverityInfo,
			Score:    0.7,
		}
	}

	switch {
	case docs > 0 && props > 0:
		return plan.CheckResult{
			Name:     RuleDocumentPropertyAlignment,
			Passed:   true,
			Details:  fmt.Sprintf("%d documents align with %d property records", docs, props),
			Severity: plan.SeverityInfo,
			Score:    0.9,
		}
	case docs == 0 && props == 0:
		return plan.CheckResult{
			Name:            RuleDocumentPropertyAlignment,
			Passed:          false,
			Details:         "neither documents nor property records were found",
			Severity:        plan.SeverityError,
			RequiresRequery: true,
			Score:           0.2,
		}
	default:
		return plan.CheckResult{
			Name:     RuleDocumentPropertyAlignment,
			Passed:   false,
			Details:  fmt.Sprintf("unbalanced evidence: %d documents, %d property records", docs, props),
			Severity: plan.SeverityWarning,
			Score:    0.5,
		}
	}
}

func rowCount(memory map[string]any, step string) (int, bool) {
	v, ok := memory[step]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case plan.ToolResult:
		return len(t.Rows()), true
	case *plan.ToolResult:
		return len(t.Rows()), true
	case plan.StepFailure:
		return 0, true
	default:
		return len(plan.Rows(v)), true
	}
}

// FinancialConsistency checks that reported rent totals are positive.
type FinancialConsistency struct{}

func (FinancialConsistency) Name() string { return RuleFinancialConsistency }

func (FinancialConsistency) Check(_ context.Context, in Input) plan.CheckResult {
	rows := plan.Rows(in.Response.Details()[detailsFinancials])
	if len(rows) == 0 {
		return plan.CheckResult{
			Name:     RuleFinancialConsistency,
			Passed:   true,
			Details:  "no financial records to check",
			Severity: plan.SeverityInfo,
			Score:    0.75,
		}
	}

	var total float64
	for _, row := range rows {
		if f, ok := plan.Float(row[fieldRentTotal]); ok {
			total += f
		}
	}
	if total <= 0 {
		return plan.CheckResult{
			Name:     RuleFinancialConsistency,
			Passed:   false,
			Details:  fmt.Sprintf("total rent %.2f CHF is not positive", total),
			Severity: plan.SeverityWarning,
			Score:    0.3,
		}
	}
	return plan.CheckResult{
		Name:     RuleFinancialConsistency,
		Passed:   true,
		Details:  fmt.Sprintf("total rent %.2f CHF", total),
		Severity: plan.SeverityInfo,
		Score:    0.85,
	}
}
