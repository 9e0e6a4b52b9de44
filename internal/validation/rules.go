// Package validation checks aggregated responses for internal consistency
// before the orchestrator accepts them.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Rule names.
const (
	RuleSourceConsistency         = "source-consistency"
	RuleNumericalCoherence        = "numerical-coherence"
	RuleTemporalConsistency       = "temporal-consistency"
	RuleStructuralCompleteness    = "structural-completeness"
	RuleDocumentPropertyAlignment = "document-property-alignment"
	RuleFinancialConsistency      = "financial-consistency"
)

// staleAfter is how old the newest-looking timestamp may be before the data
// counts as stale.
const staleAfter = 5 * 365 * 24 * time.Hour

// Rule is re-exported so callers do not need to import plan for it.
type Rule = plan.Rule

// Input is re-exported so callers do not need to import plan for it.
type Input = plan.RuleInput

// DefaultRules returns the four baseline rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		SourceConsistency{},
		NumericalCoherence{},
		TemporalConsistency{},
		StructuralCompleteness{},
	}
}

// StrictRules returns the cross-checks that need step memory.
func StrictRules() []Rule {
	return []Rule{
		DocumentPropertyAlignment{},
		FinancialConsistency{},
	}
}

// RulesFor returns the default rules, plus the strict ones when asked.
func RulesFor(strict bool) []Rule {
	rules := DefaultRules()
	if strict {
		rules = append(rules, StrictRules()...)
	}
	return rules
}

// SourceConsistency requires at least one non-empty source. More distinct
// sources raise the score.
type SourceConsistency struct{}

func (SourceConsistency) Name() string { return RuleSourceConsistency }

func (SourceConsistency) Check(_ context.Context, in Input) plan.CheckResult {
	distinct := make(map[string]struct{})
	for _, s := range in.Sources {
		if s = strings.TrimSpace(s); s != "" {
			distinct[s] = struct{}{}
		}
	}
	n := len(distinct)
	if n == 0 {
		return plan.CheckResult{
			Name:            RuleSourceConsistency,
			Passed:          false,
			Details:         "no sources returned",
			Severity:        plan.SeverityWarning,
			RequiresRequery: true,
			Score:           0.2,
		}
	}
	return plan.CheckResult{
		Name:     RuleSourceConsistency,
		Passed:   true,
		Details:  fmt.Sprintf("%d distinct sources", n),
		Severity: plan.SeverityInfo,
		Score:    min(1.0, 0.5+0.1*float64(n)),
	}
}

// NumericalCoherence rejects negative metrics.
type NumericalCoherence struct{}

func (NumericalCoherence) Name() string { return RuleNumericalCoherence }

func (NumericalCoherence) Check(_ context.Context, in Input) plan.CheckResult {
	metrics := in.Response.Metrics()
	if len(metrics) == 0 {
		return plan.CheckResult{
			Name:     RuleNumericalCoherence,
			Passed:   true,
			Details:  "no metrics to check",
			Severity: plan.SeverityInfo,
			Score:    0.7,
		}
	}

	var negatives []float64
	for _, m := range metrics {
		if m < 0 {
			negatives = append(negatives, m)
		}
	}
	if len(negatives) > 0 {
		shown := negatives[:min(len(negatives), 3)]
		return plan.CheckResult{
			Name:            RuleNumericalCoherence,
			Passed:          false,
			Details:         fmt.Sprintf("negative metrics detected: %v", shown),
			Severity:        plan.SeverityError,
			RequiresRequery: true,
			Score:           0.1,
		}
	}
	return plan.CheckResult{
		Name:     RuleNumericalCoherence,
		Passed:   true,
		Details:  fmt.Sprintf("%d metrics are non-negative", len(metrics)),
		Severity: plan.SeverityInfo,
		Score:    0.9,
	}
}

// TemporalConsistency flags data older than five years.
type TemporalConsistency struct {
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

func (TemporalConsistency) Name() string { return RuleTemporalConsistency }

func (r TemporalConsistency) Check(_ context.Context, in Input) plan.CheckResult {
	raw := in.Response.Timestamps()
	if len(raw) == 0 {
		return plan.CheckResult{
			Name:     RuleTemporalConsistency,
			Passed:   true,
			Details:  "no timestamps provided",
			Severity: plan.SeverityInfo,
			Score:    0.6,
		}
	}

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	var stale []string
	for _, ts := range raw {
		t, ok := ParseTimestamp(ts)
		if !ok {
			continue
		}
		if now.Sub(t) > staleAfter {
			stale = append(stale, ts)
		}
	}
	if len(stale) > 0 {
		return plan.CheckResult{
			Name:     RuleTemporalConsistency,
			Passed:   false,
			Details:  fmt.Sprintf("stale sources: %s", strings.Join(stale[:min(len(stale), 3)], ", ")),
			Severity: plan.SeverityWarning,
			Score:    0.4,
		}
	}
	return plan.CheckResult{
		Name:     RuleTemporalConsistency,
		Passed:   true,
		Details:  "sources are recent",
		Severity: plan.SeverityInfo,
		Score:    0.85,
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 timestamps with or without zone, and plain
// dates. A trailing "Z" is treated as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StructuralCompleteness requires the summary and sources keys.
type StructuralCompleteness struct{}

func (StructuralCompleteness) Name() string { return RuleStructuralCompleteness }

func (StructuralCompleteness) Check(_ context.Context, in Input) plan.CheckResult {
	var missing []string
	for _, key := range []string{plan.KeySummary, plan.KeySources} {
		if !in.Response.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return plan.CheckResult{
			Name:     RuleStructuralCompleteness,
			Passed:   false,
			Details:  fmt.Sprintf("missing keys: %s", strings.Join(missing, ", ")),
			Severity: plan.SeverityWarning,
			Score:    0.3,
		}
	}
	return plan.CheckResult{
		Name:     RuleStructuralCompleteness,
		Passed:   true,
		Details:  "response structure complete",
		Severity: plan.SeverityInfo,
		Score:    0.95,
	}
}
