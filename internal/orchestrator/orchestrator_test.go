package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/planner"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
	"github.com/DanielJandric/embeddingsall-sub000/internal/validation"
)

const query = "rendement avenue de la gare 12 martigny"

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordCorrection(ctx context.Context, query string, iteration int, reason string) error {
	args := m.Called(ctx, query, iteration, reason)
	return args.Error(0)
}

func staticRunner(v any) plan.ToolRunner {
	return plan.ToolRunnerFunc(func(context.Context, string, map[string]any) (any, error) {
		return v, nil
	})
}

func financialPlan(t *testing.T) (plan.Plan, *planner.Planner) {
	t.Helper()
	reg := strategy.NewRegistry(strategy.DefaultConfig())
	p, err := reg.BuildPlan(strategy.IntentFinancial, query, strategy.Options{})
	require.NoError(t, err)
	return p, planner.New(reg)
}

func TestRun_AcceptsFirstIteration(t *testing.T) {
	p, pl := financialPlan(t)
	runner := staticRunner(map[string]any{
		"success": true,
		"data": map[string]any{
			"sources": []any{"doc_1.pdf", "doc_2.pdf"},
			"metrics": []any{4.2},
		},
	})

	var (
		mu     sync.Mutex
		states []State
	)
	orch := New(pl, OnProgress(func(pr Progress) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, pr.State)
	}))

	resp, err := orch.Run(context.Background(), p.WithConfidenceThreshold(0.7), runner, 3)
	require.NoError(t, err)

	assert.True(t, resp.Validation.Passed)
	assert.InDelta(t, 0.7925, resp.Confidence, 1e-9)
	assert.GreaterOrEqual(t, resp.ConfidenceScore.Overall, 0.7)
	assert.Equal(t, 1, resp.Iterations)
	assert.Equal(t, []string{}, resp.Warnings)
	assert.Empty(t, resp.CorrectionsApplied)
	assert.Equal(t, []string{"doc_1.pdf", "doc_2.pdf"}, resp.Sources)
	assert.Equal(t, []State{StatePlanning, StateExecuting, StateValidating, StateScoring, StateAccepted}, states)
}

func TestRun_ExhaustsBudget(t *testing.T) {
	p, pl := financialPlan(t)
	runner := staticRunner(map[string]any{"sources": []any{}, "metrics": []any{-1.0}})

	recorder := new(MockRecorder)
	recorder.On("RecordCorrection", mock.Anything, query, mock.Anything, mock.Anything).Return(nil)

	resp, err := New(pl, WithRecorder(recorder)).Run(context.Background(), p, runner, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Iterations)
	assert.Contains(t, resp.Warnings, WarningMaxIterations)
	assert.Contains(t, resp.Warnings, WarningLowConfidence)
	assert.NotEmpty(t, resp.CorrectionsApplied)
	assert.False(t, resp.Validation.Passed)
	assert.Less(t, resp.Confidence, p.ConfidenceThreshold())

	check, ok := resp.Validation.Check(validation.RuleNumericalCoherence)
	require.True(t, ok)
	assert.True(t, check.RequiresRequery)

	// Two contradictions per iteration, three iterations.
	assert.Len(t, resp.CorrectionsApplied, 6)
	recorder.AssertNumberOfCalls(t, "RecordCorrection", 6)

	// Each correction enriched the plan that ran next.
	assert.EqualValues(t, 2, resp.PlanMetadata[planner.MetaEnrichments])
}

func TestRun_NegativeMetricTriggersAnotherIteration(t *testing.T) {
	p, pl := financialPlan(t)
	var (
		mu    sync.Mutex
		calls int
	)
	runner := plan.ToolRunnerFunc(func(context.Context, string, map[string]any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return map[string]any{"sources": []any{"a.pdf"}, "metrics": []any{-5.0}}, nil
		}
		return map[string]any{"sources": []any{"a.pdf", "b.pdf"}, "metrics": []any{5.0}}, nil
	})

	resp, err := New(pl).Run(context.Background(), p.WithConfidenceThreshold(0.7), runner, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Iterations)
	assert.True(t, resp.Validation.Passed)
	require.Len(t, resp.CorrectionsApplied, 1)
	assert.Contains(t, resp.CorrectionsApplied[0], validation.RuleNumericalCoherence)
}

func TestRun_SingleIteration(t *testing.T) {
	p, pl := financialPlan(t)
	runner := staticRunner(map[string]any{"sources": []any{"a.pdf"}, "metrics": []any{-5.0}})

	resp, err := New(pl).Run(context.Background(), p, runner, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Iterations)
	assert.Equal(t, []string{WarningMaxIterations, WarningLowConfidence}, resp.Warnings)
}

func TestRun_MissingOutputUsesNoData(t *testing.T) {
	nothing := plan.NewStep("out", func(context.Context, *plan.ExecContext) (any, error) {
		return "not a map", nil
	})
	p, err := plan.New(query, []plan.Phase{{nothing}}, "out", validation.DefaultRules())
	require.NoError(t, err)

	resp, err := New(nil).Run(context.Background(), p, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, NoDataSummary, resp.Data.Summary())
	assert.Equal(t, 2, resp.Iterations)
	assert.Equal(t, 0.2, resp.ConfidenceScore.Factors["source_quality"])
}

func TestRun_Cancelled(t *testing.T) {
	p, pl := financialPlan(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(pl).Run(ctx, p, staticRunner(nil), 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_DefaultIterations(t *testing.T) {
	p, pl := financialPlan(t)
	resp, err := New(pl).Run(context.Background(), p, staticRunner(map[string]any{"metrics": []any{-1.0}}), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, resp.Iterations)
}
