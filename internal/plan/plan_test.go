package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRule struct{ name string }

func (r stubRule) Name() string { return r.name }
func (r stubRule) Check(context.Context, RuleInput) CheckResult {
	return CheckResult{Name: r.name, Passed: true, Score: 1}
}

func noop(name string) Step {
	return NewStep(name, func(context.Context, *ExecContext) (any, error) { return nil, nil })
}

func TestNew(t *testing.T) {
	rules := []Rule{stubRule{"r"}}

	tests := []struct {
		name    string
		query   string
		phases  []Phase
		output  string
		rules   []Rule
		wantErr string
	}{
		{
			name:   "valid two phase plan",
			query:  "rendement avenue de la gare",
			phases: []Phase{{noop("a"), noop("b")}, {noop("out")}},
			output: "out",
			rules:  rules,
		},
		{
			name:    "empty query",
			query:   "   ",
			phases:  []Phase{{noop("out")}},
			output:  "out",
			rules:   rules,
			wantErr: "empty query",
		},
		{
			name:    "no phases",
			query:   "q",
			output:  "out",
			rules:   rules,
			wantErr: "no phases",
		},
		{
			name:    "empty phase",
			query:   "q",
			phases:  []Phase{{}, {noop("out")}},
			output:  "out",
			rules:   rules,
			wantErr: "phase 0 is empty",
		},
		{
			name:    "output step not in last phase",
			query:   "q",
			phases:  []Phase{{noop("out")}, {noop("other")}},
			output:  "out",
			rules:   rules,
			wantErr: "not in the last phase",
		},
		{
			name:    "duplicate step names",
			query:   "q",
			phases:  []Phase{{noop("a"), noop("a")}, {noop("out")}},
			output:  "out",
			rules:   rules,
			wantErr: "duplicate step name",
		},
		{
			name:    "no rules",
			query:   "q",
			phases:  []Phase{{noop("out")}},
			output:  "out",
			wantErr: "no validation rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.query, tt.phases, tt.output, tt.rules)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedPlan))
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, p.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultConfidenceThreshold, p.ConfidenceThreshold())
			assert.Equal(t, DefaultMaxRetries, p.MaxRetries())
			assert.Equal(t, []string{"a", "b", "out"}, p.StepNames())
		})
	}
}

func TestPlan_Immutability(t *testing.T) {
	p, err := New("q", []Phase{{noop("a")}, {noop("out")}}, "out", []Rule{stubRule{"r"}},
		WithMetadata(Metadata{"intent": "factual"}))
	require.NoError(t, err)

	phases := p.Phases()
	phases[0] = Phase{noop("mutated")}
	md := p.Metadata()
	md["intent"] = "mutated"

	assert.Equal(t, []string{"a", "out"}, p.StepNames())
	assert.Equal(t, "factual", p.Intent())
}

func TestPlan_WithPhaseBeforeOutput(t *testing.T) {
	p, err := New("q", []Phase{{noop("a")}, {noop("out")}}, "out", []Rule{stubRule{"r"}})
	require.NoError(t, err)

	extended, err := p.WithPhaseBeforeOutput(Phase{noop("a#s1")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a#s1", "out"}, extended.StepNames())
	assert.Equal(t, []string{"a", "out"}, p.StepNames(), "original must be untouched")

	_, err = p.WithPhaseBeforeOutput(Phase{noop("a")})
	assert.ErrorIs(t, err, ErrMalformedPlan)
}

func TestPlan_WithAppendedPhase(t *testing.T) {
	p, err := New("q", []Phase{{noop("a")}, {noop("out")}}, "out", []Rule{stubRule{"r"}})
	require.NoError(t, err)

	appended, err := p.WithAppendedPhase(Phase{noop("final")}, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", appended.OutputStep())
	assert.Equal(t, []string{"a", "out", "final"}, appended.StepNames())
	assert.Equal(t, "out", p.OutputStep())

	_, err = p.WithAppendedPhase(Phase{noop("final")}, "out")
	assert.ErrorIs(t, err, ErrMalformedPlan)
}

func TestPlan_WithMetadataAndThreshold(t *testing.T) {
	p, err := New("q", []Phase{{noop("out")}}, "out", []Rule{stubRule{"r"}},
		WithMetadata(Metadata{"intent": "risk"}), WithConfidenceThreshold(0.6))
	require.NoError(t, err)

	q := p.WithMetadata(Metadata{"mode": "supplemental"}).WithConfidenceThreshold(1.4)
	assert.Equal(t, "risk", q.Intent())
	assert.Equal(t, "supplemental", q.Metadata().String("mode"))
	assert.Equal(t, 1.0, q.ConfidenceThreshold())
	assert.Equal(t, 0.6, p.ConfidenceThreshold())
	assert.Empty(t, p.Metadata().String("mode"))
}

func TestSupplementalNames(t *testing.T) {
	assert.True(t, IsSupplementalOf("documents_lookup#s1", "documents_lookup"))
	assert.True(t, IsSupplementalOf("documents_lookup#s2", ""))
	assert.False(t, IsSupplementalOf("documents_lookup", "documents_lookup"))
	assert.False(t, IsSupplementalOf("property_lookup#s1", "documents_lookup"))
	assert.Equal(t, "documents_lookup", BaseName("documents_lookup#s3"))
	assert.Equal(t, "plain", BaseName("plain"))

	r := Renamed(Renamed(noop("a"), "a#s1"), "a#s2")
	assert.Equal(t, "a#s2", r.Name())
}
