package validation

import (
	"context"
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// neutralScore stands in for a sub-score whose rule did not run.
const neutralScore = 0.5

// Chain folds the verdicts of an ordered list of rules.
type Chain struct {
	defaults []Rule
}

// NewChain creates a chain whose fallback rule set is defaults, or
// DefaultRules when none are given.
func NewChain(defaults ...Rule) *Chain {
	if len(defaults) == 0 {
		defaults = DefaultRules()
	}
	return &Chain{defaults: defaults}
}

// Validate runs rules against in, in order. A nil rule set means the chain
// defaults.
func (c *Chain) Validate(ctx context.Context, rules []Rule, in Input) plan.ValidationResult {
	if len(rules) == 0 {
		rules = c.defaults
	}
	res := plan.ValidationResult{
		Passed:                  true,
		Checks:                  make([]plan.CheckResult, 0, len(rules)),
		Contradictions:          []plan.Contradiction{},
		SuggestedCorrections:    []string{},
		DBDocAlignmentScore:     neutralScore,
		NumericalCoherenceScore: neutralScore,
	}

	var total float64
	for _, rule := range rules {
		check := rule.Check(ctx, in)
		if check.Name == "" {
			check.Name = rule.Name()
		}
		res.Checks = append(res.Checks, check)
		total += check.Score

		if !check.Passed {
			res.Passed = false
			res.Contradictions = append(res.Contradictions, plan.Contradiction{
				Rule:     check.Name,
				Details:  check.Details,
				Severity: check.Severity,
			})
			res.SuggestedCorrections = append(res.SuggestedCorrections, suggestion(check))
		}
		if check.RequiresRequery {
			res.RequiresRequery = true
		}

		switch check.Name {
		case RuleSourceConsistency:
			res.DBDocAlignmentScore = check.Score
		case RuleNumericalCoherence:
			res.NumericalCoherenceScore = check.Score
		}
	}

	if len(res.Checks) > 0 {
		res.Confidence = total / float64(len(res.Checks))
	}
	return res
}

func suggestion(check plan.CheckResult) string {
	return fmt.Sprintf("review rule %s: %s", check.Name, check.Details)
}
