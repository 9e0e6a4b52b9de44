// Package confidence turns a validation result and heuristic factors into a
// single weighted confidence score.
package confidence

import (
	"strings"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Factor names, in reporting order.
const (
	FactorSourceQuality      = "source_quality"
	FactorSourceAgreement    = "source_agreement"
	FactorDBDocAlignment     = "db_doc_alignment"
	FactorNumericalCoherence = "numerical_coherence"
	FactorCompleteness       = "completeness"
	FactorRecency            = "recency"
)

// FlagThreshold is the factor score below which a factor is flagged.
const FlagThreshold = 0.6

var factorOrder = []string{
	FactorSourceQuality,
	FactorSourceAgreement,
	FactorDBDocAlignment,
	FactorNumericalCoherence,
	FactorCompleteness,
	FactorRecency,
}

var weights = map[string]float64{
	FactorSourceQuality:      0.25,
	FactorSourceAgreement:    0.20,
	FactorDBDocAlignment:     0.20,
	FactorNumericalCoherence: 0.15,
	FactorCompleteness:       0.15,
	FactorRecency:            0.05,
}

// Weights returns a copy of the fixed factor weights. They sum to 1.
func Weights() map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}

// Factors returns the factor names in reporting order.
func Factors() []string {
	return append([]string(nil), factorOrder...)
}

// Scorer computes confidence scores. The zero value is ready to use.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score combines the validation sub-scores with heuristics over the response.
func (s *Scorer) Score(response plan.Response, sources []string, validation plan.ValidationResult) plan.ConfidenceScore {
	factors := map[string]float64{
		FactorSourceQuality:      sourceQuality(sources),
		FactorSourceAgreement:    sourceAgreement(validation),
		FactorDBDocAlignment:     validation.DBDocAlignmentScore,
		FactorNumericalCoherence: validation.NumericalCoherenceScore,
		FactorCompleteness:       completeness(response),
		FactorRecency:            recency(response),
	}

	var overall float64
	flags := []string{}
	for _, name := range factorOrder {
		overall += factors[name] * weights[name]
		if factors[name] < FlagThreshold {
			flags = append(flags, name)
		}
	}

	return plan.ConfidenceScore{
		Overall: clamp(overall),
		Factors: factors,
		Flags:   flags,
	}
}

func sourceQuality(sources []string) float64 {
	unique := make(map[string]struct{})
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			unique[s] = struct{}{}
		}
	}
	if len(unique) == 0 {
		return 0.2
	}
	return min(1.0, 0.5+0.1*float64(len(unique)))
}

func sourceAgreement(validation plan.ValidationResult) float64 {
	var errs int
	for _, c := range validation.Contradictions {
		if c.Severity == plan.SeverityError {
			errs++
		}
	}
	switch errs {
	case 0:
		return 0.85
	case 1:
		return 0.6
	default:
		return 0.4
	}
}

func completeness(response plan.Response) float64 {
	for _, key := range []string{plan.KeySummary, plan.KeyDetails, plan.KeySources} {
		if !response.Has(key) {
			return 0.5
		}
	}
	return 0.95
}

func recency(response plan.Response) float64 {
	if len(response.Timestamps()) == 0 {
		return 0.6
	}
	return 0.8
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
