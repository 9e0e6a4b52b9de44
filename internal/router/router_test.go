package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
)

func newRouter(t *testing.T) (*Router, *logging.TestLogger) {
	t.Helper()
	logger := logging.NewTestLogger()
	return New(strategy.NewRegistry(strategy.DefaultConfig()), logger.Logger), logger
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  strategy.Intent
	}{
		{"rendement avenue de la gare 12 martigny", strategy.IntentFinancial},
		{"Quel est le TRI de l'immeuble?", strategy.IntentFinancial},
		{"risque de vacance à Sion", strategy.IntentRisk},
		{"exposition locataire principal", strategy.IntentRisk},
		{"comparer les loyers de Sion et Sierre", strategy.IntentComparative},
		{"Servitudes sur la parcelle 1234", strategy.IntentLandRegistry},
		{"liste des locataires rue du Lac 5", strategy.IntentStakeholder},
		{"Synthèse due diligence immeuble Martigny", strategy.IntentSynthesis},
		{"analyse complète de l'immeuble", strategy.IntentSynthesis},
		{"rentabilité nette", strategy.IntentFinancial},
		{"extrait du cadastre", strategy.IntentLandRegistry},
		{"qui sont les propriétaires", strategy.IntentStakeholder},
		{"documents de l'avenue de la gare 12", strategy.IntentFactual},
		{"", strategy.IntentFactual},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestClassify_WholeTokensOnly(t *testing.T) {
	// "tri" must not match inside "attribution" or "strategie".
	assert.Equal(t, strategy.IntentFactual, Classify("attribution strategie du lot"))
}

func TestRoute(t *testing.T) {
	r, logs := newRouter(t)
	ctx := context.Background()

	p, err := r.Route(ctx, "rendement avenue de la gare 12 martigny", RouteOptions{})
	require.NoError(t, err)
	assert.Equal(t, string(strategy.IntentFinancial), p.Intent())
	assert.Equal(t, strategy.StepFinancialSummary, p.OutputStep())

	p, err = r.Route(ctx, "rendement avenue de la gare 12 martigny", RouteOptions{Intent: strategy.IntentRisk})
	require.NoError(t, err)
	assert.Equal(t, string(strategy.IntentRisk), p.Intent())

	p, err = r.Route(ctx, "rendement", RouteOptions{Intent: "weather"})
	require.NoError(t, err)
	assert.Equal(t, string(strategy.IntentFactual), p.Intent())
	assert.Equal(t, 1, logs.FilterMessage("unknown intent").Len())
}

func TestRoute_EmptyQuery(t *testing.T) {
	r, _ := newRouter(t)
	_, err := r.Route(context.Background(), "  ", RouteOptions{})
	assert.ErrorIs(t, err, plan.ErrMalformedPlan)
}

func TestReplanFromReflection(t *testing.T) {
	r, _ := newRouter(t)
	ctx := context.Background()
	original, err := r.Route(ctx, "rendement avenue de la gare 12 martigny", RouteOptions{})
	require.NoError(t, err)

	reflection := plan.Reflection{
		ShouldContinue:     true,
		ImprovementActions: []string{"add sources"},
		Confidence:         5,
	}

	tests := []struct {
		name       string
		reflection plan.Reflection
		override   strategy.Intent
		want       strategy.Intent
	}{
		{"continue uses synthesis", reflection, "", strategy.IntentSynthesis},
		{"stop uses default", plan.Reflection{Confidence: 9}, "", strategy.IntentFactual},
		{"override wins", reflection, strategy.IntentStakeholder, strategy.IntentStakeholder},
		{"unknown override uses default", reflection, "weather", strategy.IntentFactual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.ReplanFromReflection(ctx, original, tt.reflection, tt.override)
			require.NoError(t, err)
			assert.Equal(t, original.Query(), p.Query())
			assert.Equal(t, string(tt.want), p.Intent())
			assert.Equal(t, ModeReflection, p.Metadata().String("mode"))
			assert.Equal(t, append([]string{}, tt.reflection.ImprovementActions...), p.Metadata()[MetaReflection])
		})
	}
}
