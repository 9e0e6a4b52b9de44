package agentic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DanielJandric/embeddingsall-sub000/internal/events"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/orchestrator"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/planner"
	"github.com/DanielJandric/embeddingsall-sub000/internal/router"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
)

const query = "rendement avenue de la gare 12 martigny"

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishQueryCompleted(ctx context.Context, ev events.QueryCompleted) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func staticRunner(v any) plan.ToolRunner {
	return plan.ToolRunnerFunc(func(context.Context, string, map[string]any) (any, error) {
		return v, nil
	})
}

func newService(runner plan.ToolRunner, opts ...Option) *Service {
	reg := strategy.NewRegistry(strategy.DefaultConfig())
	logger := logging.NewNop()
	orch := orchestrator.New(planner.New(reg), orchestrator.WithLogger(logger))
	return NewService(router.New(reg, logger), orch, runner, opts...)
}

func ptr[T any](v T) *T { return &v }

var healthy = map[string]any{
	"success": true,
	"data": map[string]any{
		"sources": []any{"doc_1.pdf", "doc_2.pdf"},
		"metrics": []any{4.2},
	},
}

func TestQuery_Accepted(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishQueryCompleted", mock.Anything, mock.MatchedBy(func(ev events.QueryCompleted) bool {
		return ev.Intent == "financial" && ev.Success && ev.Iterations == 1 && ev.ID != ""
	})).Return(nil)

	svc := newService(staticRunner(healthy), WithPublisher(pub))
	res, err := svc.Query(context.Background(), Request{Query: query, ConfidenceThreshold: ptr(0.7)})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Nil(t, res.Error)
	require.NotNil(t, res.Data)
	assert.InDelta(t, 0.7925, res.Data.Confidence, 1e-9)
	assert.Equal(t, 1, res.Data.Iterations)
	assert.Equal(t, []string{}, res.Data.Warnings)
	assert.Equal(t, []string{}, res.Data.CorrectionsApplied)
	assert.Equal(t, []string{"doc_1.pdf", "doc_2.pdf"}, res.Data.Sources)
	assert.Len(t, res.Data.ConfidenceBreakdown, 6)
	assert.Nil(t, res.Data.Reflection)
	assert.Equal(t, query, res.Metadata.Query)
	assert.Equal(t, "financial", res.Metadata.Intent)
	assert.NotEmpty(t, res.Data.Answer.Summary())
	pub.AssertExpectations(t)
}

func TestQuery_ExhaustedWithReflection(t *testing.T) {
	runner := staticRunner(map[string]any{"sources": []any{}, "metrics": []any{-1.0}})

	res, err := newService(runner).Query(context.Background(), Request{Query: query})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Data.Warnings, orchestrator.WarningMaxIterations)
	assert.Contains(t, res.Data.Warnings, orchestrator.WarningLowConfidence)
	assert.NotEmpty(t, res.Data.CorrectionsApplied)
	assert.InDelta(t, 0.3975, res.Data.Confidence, 1e-9)

	// The reflection pass runs but the count stays within the budget.
	assert.Equal(t, 3, res.Data.Iterations)
	assert.Equal(t, true, res.Metadata.PlanMetadata[MetadataReflectionPass])
	require.NotNil(t, res.Data.Reflection)
	assert.True(t, res.Data.Reflection.ShouldContinue)
	assert.InDelta(t, 5.0, res.Data.Reflection.Confidence, 1e-9)
}

func TestQuery_IterationsWithinBudget(t *testing.T) {
	failing := staticRunner(map[string]any{"sources": []any{}, "metrics": []any{-1.0}})
	runners := map[string]plan.ToolRunner{"healthy": staticRunner(healthy), "failing": failing}

	for name, runner := range runners {
		for _, maxIter := range []int{1, 2, 3, 5} {
			for _, reflect := range []bool{true, false} {
				t.Run(fmt.Sprintf("%s/max=%d/reflect=%t", name, maxIter, reflect), func(t *testing.T) {
					res, err := newService(runner).Query(context.Background(), Request{
						Query:            query,
						MaxIterations:    maxIter,
						EnableReflection: ptr(reflect),
					})
					require.NoError(t, err)
					require.NotNil(t, res.Data)
					assert.GreaterOrEqual(t, res.Data.Iterations, 1)
					assert.LessOrEqual(t, res.Data.Iterations, maxIter)
					if !reflect {
						assert.Nil(t, res.Metadata.PlanMetadata[MetadataReflectionPass])
					}
				})
			}
		}
	}
}

func TestQuery_ReflectionDisabled(t *testing.T) {
	runner := staticRunner(map[string]any{"sources": []any{}, "metrics": []any{-1.0}})

	res, err := newService(runner).Query(context.Background(), Request{
		Query:            query,
		MaxIterations:    2,
		EnableReflection: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Data.Iterations)
	assert.Nil(t, res.Data.Reflection)
}

func TestQuery_ReflectionSkippedWhenConfident(t *testing.T) {
	res, err := newService(staticRunner(healthy), WithDefaults(Defaults{
		ConfidenceThreshold: 0.5,
		MaxIterations:       3,
		EnableReflection:    true,
	})).Query(context.Background(), Request{Query: query})
	require.NoError(t, err)
	assert.Nil(t, res.Data.Reflection)
	assert.Equal(t, 1, res.Data.Iterations)
}

func TestQuery_ExplicitIntent(t *testing.T) {
	res, err := newService(staticRunner(healthy)).Query(context.Background(), Request{
		Query:               query,
		Intent:              "land-registry",
		ConfidenceThreshold: ptr(0.5),
	})
	require.NoError(t, err)
	assert.Equal(t, "land_registry", res.Metadata.Intent)
	assert.Equal(t, "land_registry", res.Metadata.PlanMetadata["intent"])
}

func TestQuery_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty query", Request{Query: "   "}},
		{"threshold above one", Request{Query: query, ConfidenceThreshold: ptr(1.5)}},
		{"negative threshold", Request{Query: query, ConfidenceThreshold: ptr(-0.1)}},
		{"negative iterations", Request{Query: query, MaxIterations: -1}},
		{"unknown intent", Request{Query: query, Intent: "astrology"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newService(staticRunner(healthy)).Query(context.Background(), tt.req)
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, CodeInvalidRequest, Code(err))
		})
	}
}

func TestQuery_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(staticRunner(healthy)).Query(ctx, Request{Query: query})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CodeCanceled, Code(err))
}

func TestQuery_PublishFailureIsLogged(t *testing.T) {
	logger := logging.NewTestLogger()
	pub := new(MockPublisher)
	pub.On("PublishQueryCompleted", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	res, err := newService(staticRunner(healthy), WithPublisher(pub), WithLogger(logger.Logger)).
		Query(context.Background(), Request{Query: query, ConfidenceThreshold: ptr(0.7)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, logger.FilterMessage("failed to publish query outcome").Len())
}

func TestErrorResult(t *testing.T) {
	err := errors.Join(ErrMalformedPlan, errors.New("no phases"))
	res := ErrorResult("q", err)
	assert.False(t, res.Success)
	assert.Nil(t, res.Data)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeMalformedPlan, res.Error.Code)
	assert.Equal(t, CodeInternal, Code(errors.New("boom")))
}
