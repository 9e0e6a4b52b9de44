package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

const scenarioQuery = "rendement avenue de la gare 12 martigny"

// execute runs every phase sequentially and returns the output response.
func execute(t *testing.T, p plan.Plan, runner plan.ToolRunner) plan.Response {
	t.Helper()
	ec := plan.NewExecContext(p.Query(), runner, p.Metadata())
	for _, phase := range p.Phases() {
		for _, step := range phase {
			v, err := step.Run(context.Background(), ec)
			if err != nil {
				ec.Store(step.Name(), plan.StepFailure{Step: step.Name(), Message: err.Error()})
				continue
			}
			ec.Store(step.Name(), v)
		}
	}
	out, ok := ec.Load(p.OutputStep())
	require.True(t, ok)
	resp, ok := out.(plan.Response)
	require.True(t, ok)
	return resp
}

func staticRunner(v any) plan.ToolRunner {
	return plan.ToolRunnerFunc(func(context.Context, string, map[string]any) (any, error) {
		return v, nil
	})
}

var scenarioB = map[string]any{
	"success": true,
	"data": map[string]any{
		"sources": []any{"doc_1.pdf", "doc_2.pdf"},
		"metrics": []any{4.2},
	},
}

func TestRegistry_BuildsEveryIntent(t *testing.T) {
	reg := NewRegistry(DefaultConfig())

	tests := []struct {
		intent    Intent
		output    string
		threshold float64
		phases    int
	}{
		{IntentFactual, StepFactualSummary, 0.70, 2},
		{IntentFinancial, StepFinancialSummary, 0.75, 2},
		{IntentComparative, StepComparativeSummary, 0.70, 2},
		{IntentRisk, StepRiskSummary, 0.75, 2},
		{IntentLandRegistry, StepLandRegistrySummary, 0.75, 2},
		{IntentStakeholder, StepStakeholderSummary, 0.70, 2},
		{IntentSynthesis, StepSynthesisSummary, 0.75, 11},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			s, ok := reg.Get(tt.intent)
			require.True(t, ok)
			assert.Equal(t, tt.intent, s.Intent())

			p, err := s.BuildPlan(scenarioQuery, Options{Mode: "test"})
			require.NoError(t, err)
			assert.Equal(t, tt.output, p.OutputStep())
			assert.InDelta(t, tt.threshold, p.ConfidenceThreshold(), 1e-9)
			assert.Len(t, p.Phases(), tt.phases)
			assert.Equal(t, 2, p.MaxRetries())
			assert.Len(t, p.Rules(), 4)
			assert.Equal(t, string(tt.intent), p.Intent())
			assert.Equal(t, "test", p.Metadata().String("mode"))
		})
	}
}

func TestRegistry_StrictValidationAddsRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrictValidation = true
	p, err := NewRegistry(cfg).BuildPlan(IntentFactual, scenarioQuery, Options{})
	require.NoError(t, err)
	assert.Len(t, p.Rules(), 6)
}

func TestRegistry_UnknownIntentFallsBack(t *testing.T) {
	p, err := NewRegistry(DefaultConfig()).BuildPlan(Intent("weather"), scenarioQuery, Options{})
	require.NoError(t, err)
	assert.Equal(t, StepFactualSummary, p.OutputStep())
}

func TestFactualPlan_SemanticSearchIsOptional(t *testing.T) {
	cfg := DefaultConfig()
	p, err := newFactual(cfg).BuildPlan(scenarioQuery, Options{})
	require.NoError(t, err)
	lookups := p.Phases()[0]
	require.Len(t, lookups, 3)
	assert.True(t, lookups[2].Optional())

	cfg.SemanticSearch = false
	p, err = newFactual(cfg).BuildPlan(scenarioQuery, Options{})
	require.NoError(t, err)
	assert.Len(t, p.Phases()[0], 2)
}

func TestFactualPlan_OptionalFailureIsSilent(t *testing.T) {
	p, err := newFactual(DefaultConfig()).BuildPlan(scenarioQuery, Options{})
	require.NoError(t, err)

	runner := plan.ToolRunnerFunc(func(_ context.Context, method string, _ map[string]any) (any, error) {
		if method == plan.MethodSemanticSearch {
			return nil, errors.New("index offline")
		}
		return scenarioB, nil
	})
	resp := execute(t, p, runner)
	assert.Empty(t, resp.Warnings())
	assert.Equal(t, []string{"doc_1.pdf", "doc_2.pdf"}, resp.Sources())
}

func TestFinancialPlan_Aggregation(t *testing.T) {
	p, err := newFinancial(DefaultConfig()).BuildPlan(scenarioQuery, Options{})
	require.NoError(t, err)

	resp := execute(t, p, staticRunner(scenarioB))
	assert.NotEmpty(t, resp.Summary())
	assert.Equal(t, []string{"doc_1.pdf", "doc_2.pdf"}, resp.Sources())
	assert.Equal(t, []float64{4.2}, resp.Metrics())
	assert.Empty(t, resp.Warnings())
}

func TestFinancialPlan_RowsAndTotals(t *testing.T) {
	p, err := newFinancial(DefaultConfig()).BuildPlan(scenarioQuery, Options{})
	require.NoError(t, err)

	rows := map[string]any{
		"success": true,
		"data": []any{
			map[string]any{"property_key": "avenue-gare-12-martigny", "rent_total_chf": 120000.0, "updated_at": "2025-01-31", "file_name": "etat_locatif_gare.pdf"},
			map[string]any{"property_key": "avenue-gare-12-martigny-annexe", "rent_total_chf": 30000.0},
		},
	}
	resp := execute(t, p, staticRunner(rows))
	assert.Equal(t, []float64{120000, 30000}, resp.Metrics())
	assert.Equal(t, []string{"etat_locatif_gare.pdf"}, resp.Sources())
	assert.Equal(t, []string{"2025-01-31"}, resp.Timestamps())

	totals, ok := plan.AsMap(resp.Details()["totals"])
	require.True(t, ok)
	assert.InDelta(t, 150000.0, totals["rent_total_chf"], 1e-9)
	assert.InDelta(t, 75000.0, totals["average_rent_chf"], 1e-9)
}

func TestFinancialPlan_RequiredFailureWarns(t *testing.T) {
	p, err := newFinancial(DefaultConfig()).BuildPlan(scenarioQuery, Options{})
	require.NoError(t, err)

	runner := plan.ToolRunnerFunc(func(context.Context, string, map[string]any) (any, error) {
		return nil, errors.New("connection refused")
	})
	resp := execute(t, p, runner)
	require.Len(t, resp.Warnings(), 1)
	assert.Contains(t, resp.Warnings()[0], StepFinancialOverview+" failed")
	assert.Empty(t, resp.Sources())
	assert.Empty(t, resp.Metrics())
	assert.False(t, resp.Has(plan.KeySourceTimestamps))
}

func TestStakeholderPlan_DistinctTenants(t *testing.T) {
	p, err := newStakeholder(DefaultConfig()).BuildPlan("locataires rue du Lac 5 Sion", Options{})
	require.NoError(t, err)

	rows := map[string]any{
		"success": true,
		"data": []any{
			map[string]any{"locataire": "Migros", "taux_occupation_unites": 0.9},
			map[string]any{"locataire": " Migros ", "taux_occupation_unites": 0.8},
			map[string]any{"locataire": "Coop", "taux_occupation_unites": 1.0},
		},
	}
	resp := execute(t, p, staticRunner(rows))
	assert.Equal(t, []string{"Coop", "Migros"}, resp.Details()["tenants"])
	require.Len(t, resp.Metrics(), 2)
	assert.Equal(t, 2.0, resp.Metrics()[0])
	assert.InDelta(t, 0.9, resp.Metrics()[1], 1e-9)
}

func TestLandRegistryPlan_CountsServitudes(t *testing.T) {
	p, err := newLandRegistry(DefaultConfig()).BuildPlan("registre foncier Martigny", Options{})
	require.NoError(t, err)

	runner := plan.ToolRunnerFunc(func(_ context.Context, method string, params map[string]any) (any, error) {
		if method == plan.MethodGetRegistreFoncier {
			assert.Equal(t, "Martigny", params["commune"])
			return map[string]any{"success": true, "data": []any{
				map[string]any{"no_parcelle": "1234", "file_name": "rf_1234.pdf"},
			}}, nil
		}
		return map[string]any{"success": true, "data": []any{
			map[string]any{"no_parcelle": "1234", "servitudes": `[{"type":"passage"},{"type":"vue"}]`, "gages_immobiliers": []any{"cedule"}},
			map[string]any{"no_parcelle": "5678", "servitudes": []any{}},
		}}, nil
	})
	resp := execute(t, p, runner)
	assert.Equal(t, []float64{2, 2, 1}, resp.Metrics())
	assert.Equal(t, []string{"rf_1234.pdf"}, resp.Sources())
}

func TestSynthesisPlan_MergesSections(t *testing.T) {
	p, err := NewRegistry(DefaultConfig()).BuildPlan(IntentSynthesis, scenarioQuery, Options{})
	require.NoError(t, err)

	resp := execute(t, p, staticRunner(scenarioB))
	assert.Equal(t, []string{"doc_1.pdf", "doc_2.pdf"}, resp.Sources())
	assert.Contains(t, resp.Metrics(), 4.2)

	sections, ok := plan.AsMap(resp.Details()["sections"])
	require.True(t, ok)
	assert.Len(t, sections, 5)
	assert.NotContains(t, sections, string(IntentRisk))
}

func TestAggregateStep_FoldsSupplementalSources(t *testing.T) {
	p, err := newFinancial(DefaultConfig()).BuildPlan(scenarioQuery, Options{})
	require.NoError(t, err)

	ec := plan.NewExecContext(p.Query(), staticRunner(scenarioB), nil)
	ec.Store("documents_lookup#s1", plan.ToolResult{
		Method:   plan.MethodQueryTable,
		Envelope: plan.Success(map[string]any{"sources": []any{"supplement.pdf"}}),
	})
	for _, phase := range p.Phases() {
		for _, step := range phase {
			v, err := step.Run(context.Background(), ec)
			require.NoError(t, err)
			ec.Store(step.Name(), v)
		}
	}
	out, _ := ec.Load(StepFinancialSummary)
	resp := out.(plan.Response)
	assert.Equal(t, []string{"doc_1.pdf", "doc_2.pdf", "supplement.pdf"}, resp.Sources())
	assert.Equal(t, []string{"documents_lookup#s1"}, resp.Details()["supplemental_steps"])
}
