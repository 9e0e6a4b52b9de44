package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

func TestSourceConsistency(t *testing.T) {
	tests := []struct {
		name     string
		sources  []string
		passed   bool
		severity plan.Severity
		requery  bool
		score    float64
	}{
		{"no sources", nil, false, plan.SeverityWarning, true, 0.2},
		{"blank sources only", []string{"", "  "}, false, plan.SeverityWarning, true, 0.2},
		{"one source twice", []string{"a.pdf", "a.pdf"}, true, plan.SeverityInfo, false, 0.6},
		{"two sources", []string{"a.pdf", "b.pdf"}, true, plan.SeverityInfo, false, 0.7},
		{"many sources cap at one", []string{"1", "2", "3", "4", "5", "6", "7"}, true, plan.SeverityInfo, false, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SourceConsistency{}.Check(context.Background(), Input{Sources: tt.sources})
			assert.Equal(t, RuleSourceConsistency, got.Name)
			assert.Equal(t, tt.passed, got.Passed)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.requery, got.RequiresRequery)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
		})
	}
}

func TestNumericalCoherence(t *testing.T) {
	ctx := context.Background()

	got := NumericalCoherence{}.Check(ctx, Input{Response: plan.Response{}})
	assert.True(t, got.Passed)
	assert.InDelta(t, 0.7, got.Score, 1e-9)

	got = NumericalCoherence{}.Check(ctx, Input{Response: plan.Response{plan.KeyMetrics: []any{4.2, 0}}})
	assert.True(t, got.Passed)
	assert.InDelta(t, 0.9, got.Score, 1e-9)

	got = NumericalCoherence{}.Check(ctx, Input{Response: plan.Response{plan.KeyMetrics: []float64{3, -5, -1, -2, -7}}})
	assert.False(t, got.Passed)
	assert.True(t, got.RequiresRequery)
	assert.Equal(t, plan.SeverityError, got.Severity)
	assert.InDelta(t, 0.1, got.Score, 1e-9)
	assert.Equal(t, "negative metrics detected: [-5 -1 -2]", got.Details)
}

func TestTemporalConsistency(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rule := TemporalConsistency{Now: func() time.Time { return now }}
	ctx := context.Background()

	got := rule.Check(ctx, Input{Response: plan.Response{}})
	assert.True(t, got.Passed)
	assert.InDelta(t, 0.6, got.Score, 1e-9)

	got = rule.Check(ctx, Input{Response: plan.Response{
		plan.KeySourceTimestamps: []string{"2024-03-01T10:00:00Z", "2023-01-01", "not a date"},
	}})
	assert.True(t, got.Passed)
	assert.InDelta(t, 0.85, got.Score, 1e-9)

	got = rule.Check(ctx, Input{Response: plan.Response{
		plan.KeySourceTimestamps: []any{"2015-01-01T00:00:00", "2024-01-01"},
	}})
	assert.False(t, got.Passed)
	assert.False(t, got.RequiresRequery)
	assert.Equal(t, plan.SeverityWarning, got.Severity)
	assert.InDelta(t, 0.4, got.Score, 1e-9)
	assert.Contains(t, got.Details, "2015-01-01T00:00:00")
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00+02:00",
		"2024-03-01T10:00:00.123456",
		"2024-03-01 10:00:00",
		"2024-03-01",
	} {
		_, ok := ParseTimestamp(s)
		assert.True(t, ok, s)
	}
	_, ok := ParseTimestamp("yesterday")
	assert.False(t, ok)
}

func TestStructuralCompleteness(t *testing.T) {
	ctx := context.Background()

	got := StructuralCompleteness{}.Check(ctx, Input{Response: plan.Response{plan.KeySummary: "s", plan.KeySources: []string{}}})
	assert.True(t, got.Passed)
	assert.InDelta(t, 0.95, got.Score, 1e-9)

	got = StructuralCompleteness{}.Check(ctx, Input{Response: plan.Response{plan.KeyDetails: map[string]any{}}})
	assert.False(t, got.Passed)
	assert.Equal(t, plan.SeverityWarning, got.Severity)
	assert.InDelta(t, 0.3, got.Score, 1e-9)
	assert.Equal(t, "missing keys: summary, sources", got.Details)
}

func TestDocumentPropertyAlignment(t *testing.T) {
	ctx := context.Background()
	rows := func(n int) plan.ToolResult {
		data := make([]any, n)
		for i := range data {
			data[i] = map[string]any{"id": i}
		}
		return plan.ToolResult{Envelope: plan.Success(data)}
	}

	got := DocumentPropertyAlignment{}.Check(ctx, Input{})
	assert.True(t, got.Passed)

	got = DocumentPropertyAlignment{}.Check(ctx, Input{Memory: map[string]any{
		memDocumentsLookup: rows(2), memPropertyLookup: rows(1),
	}})
	assert.True(t, got.Passed)

	got = DocumentPropertyAlignment{}.Check(ctx, Input{Memory: map[string]any{
		memDocumentsLookup: rows(0), memPropertyLookup: plan.StepFailure{Step: memPropertyLookup, TimedOut: true},
	}})
	assert.False(t, got.Passed)
	assert.True(t, got.RequiresRequery)

	got = DocumentPropertyAlignment{}.Check(ctx, Input{Memory: map[string]any{
		memDocumentsLookup: rows(3), memPropertyLookup: rows(0),
	}})
	assert.False(t, got.Passed)
	assert.False(t, got.RequiresRequery)
}

func TestFinancialConsistency(t *testing.T) {
	ctx := context.Background()
	resp := func(rents ...any) plan.Response {
		var rows []any
		for _, r := range rents {
			rows = append(rows, map[string]any{fieldRentTotal: r})
		}
		return plan.Response{plan.KeyDetails: map[string]any{detailsFinancials: rows}}
	}

	assert.True(t, FinancialConsistency{}.Check(ctx, Input{Response: plan.Response{}}).Passed)
	assert.True(t, FinancialConsistency{}.Check(ctx, Input{Response: resp(1200.0, "800")}).Passed)

	got := FinancialConsistency{}.Check(ctx, Input{Response: resp(0.0, nil)})
	assert.False(t, got.Passed)
	assert.InDelta(t, 0.3, got.Score, 1e-9)
}

func TestRulesFor(t *testing.T) {
	names := func(rules []Rule) []string {
		var out []string
		for _, r := range rules {
			out = append(out, r.Name())
		}
		return out
	}
	require.Equal(t, []string{
		RuleSourceConsistency, RuleNumericalCoherence, RuleTemporalConsistency, RuleStructuralCompleteness,
	}, names(RulesFor(false)))
	assert.Len(t, RulesFor(true), 6)
}
