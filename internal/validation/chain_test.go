package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

func TestChain_Validate_AllPass(t *testing.T) {
	chain := NewChain()
	res := chain.Validate(context.Background(), nil, Input{
		Query: "q",
		Response: plan.Response{
			plan.KeySummary: "ok",
			plan.KeySources: []string{"a.pdf", "b.pdf"},
			plan.KeyMetrics: []float64{4.2},
		},
		Sources: []string{"a.pdf", "b.pdf"},
	})

	assert.True(t, res.Passed)
	assert.False(t, res.RequiresRequery)
	assert.Empty(t, res.Contradictions)
	assert.Empty(t, res.SuggestedCorrections)
	require.Len(t, res.Checks, 4)
	// (0.7 + 0.9 + 0.6 + 0.95) / 4
	assert.InDelta(t, 0.7875, res.Confidence, 1e-9)
	assert.InDelta(t, 0.7, res.DBDocAlignmentScore, 1e-9)
	assert.InDelta(t, 0.9, res.NumericalCoherenceScore, 1e-9)
}

func TestChain_Validate_NegativeMetricsAndNoSources(t *testing.T) {
	chain := NewChain()
	res := chain.Validate(context.Background(), DefaultRules(), Input{
		Response: plan.Response{plan.KeySummary: "s", plan.KeySources: []any{}, plan.KeyMetrics: []any{-1}},
	})

	assert.False(t, res.Passed)
	assert.True(t, res.RequiresRequery)
	require.Len(t, res.Contradictions, 2)
	assert.Equal(t, RuleSourceConsistency, res.Contradictions[0].Rule)
	assert.Equal(t, RuleNumericalCoherence, res.Contradictions[1].Rule)
	assert.Equal(t, "review rule numerical-coherence: negative metrics detected: [-1]", res.SuggestedCorrections[1])
	assert.InDelta(t, 0.2, res.DBDocAlignmentScore, 1e-9)
	assert.InDelta(t, 0.1, res.NumericalCoherenceScore, 1e-9)
}

func TestChain_Validate_MissingRulesUseNeutralScores(t *testing.T) {
	chain := NewChain(StructuralCompleteness{})
	res := chain.Validate(context.Background(), nil, Input{Response: plan.Response{}})

	assert.Equal(t, neutralScore, res.DBDocAlignmentScore)
	assert.Equal(t, neutralScore, res.NumericalCoherenceScore)
	assert.False(t, res.Passed)
	assert.False(t, res.RequiresRequery)
}
