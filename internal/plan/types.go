// Package plan defines the execution contracts shared by strategies, the
// planner, validation and the corrective orchestrator.
//
// A Plan is an immutable, validated sequence of phases. Steps inside a phase
// run concurrently; phases run strictly in order. Every step writes its
// result into the iteration's ExecContext under the step's name, which is how
// later aggregation steps read earlier lookups.
package plan

// Severity grades a validation finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Well-known keys of an aggregation Response.
const (
	KeySummary          = "summary"
	KeyDetails          = "details"
	KeyMetrics          = "metrics"
	KeySources          = "sources"
	KeySourceTimestamps = "source_timestamps"
	KeyWarnings         = "warnings"
)

// Metadata is free-form plan metadata (intent, mode, enrichment notes...).
type Metadata map[string]any

// Clone returns a shallow copy of m. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the string value stored under key, or "".
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Outcome is what one execution of a plan produced.
type Outcome struct {
	Query      string         `json:"query"`
	Data       Response       `json:"data"`
	Sources    []string       `json:"sources"`
	RawResults map[string]any `json:"raw_results"`
}

// CheckResult is the verdict of a single validation rule.
type CheckResult struct {
	Name            string   `json:"name"`
	Passed          bool     `json:"passed"`
	Details         string   `json:"details"`
	Severity        Severity `json:"severity"`
	RequiresRequery bool     `json:"requires_requery"`
	Score           float64  `json:"score"`
}

// Contradiction is a failed check promoted to a correction trigger.
type Contradiction struct {
	Rule     string   `json:"rule"`
	Details  string   `json:"details"`
	Severity Severity `json:"severity"`
}

// ValidationResult aggregates all checks run against one Outcome.
type ValidationResult struct {
	Passed                  bool            `json:"passed"`
	Confidence              float64         `json:"confidence"`
	Checks                  []CheckResult   `json:"checks"`
	Contradictions          []Contradiction `json:"contradictions"`
	RequiresRequery         bool            `json:"requires_requery"`
	SuggestedCorrections    []string        `json:"suggested_corrections"`
	DBDocAlignmentScore     float64         `json:"db_doc_alignment_score"`
	NumericalCoherenceScore float64         `json:"numerical_coherence_score"`
}

// Check returns the check with the given rule name.
func (v ValidationResult) Check(name string) (CheckResult, bool) {
	for _, c := range v.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// ConfidenceScore is the weighted confidence of an Outcome.
type ConfidenceScore struct {
	Overall float64            `json:"overall"`
	Factors map[string]float64 `json:"factors"`
	Flags   []string           `json:"flags"`
}

// CorrectedResponse is the final product of the corrective loop.
type CorrectedResponse struct {
	Data               Response         `json:"data"`
	Confidence         float64          `json:"confidence"`
	Iterations         int              `json:"iterations"`
	Sources            []string         `json:"sources"`
	Contradictions     []Contradiction  `json:"contradictions"`
	Validation         ValidationResult `json:"validation"`
	ConfidenceScore    ConfidenceScore  `json:"confidence_score"`
	Warnings           []string         `json:"warnings"`
	CorrectionsApplied []string         `json:"corrections_applied"`
	PlanMetadata       Metadata         `json:"plan_metadata,omitempty"`
}

// Reflection is a heuristic critique of a final answer. Confidence is on a
// 0..10 scale.
type Reflection struct {
	ShouldContinue      bool     `json:"should_continue"`
	MissingChecks       []string `json:"missing_checks"`
	ContradictionsFound []string `json:"contradictions_found"`
	ImprovementActions  []string `json:"improvement_actions"`
	Confidence          float64  `json:"confidence"`
}
