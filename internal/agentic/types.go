package agentic

import (
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Request is the input of one agentic query. Zero values mean "use the
// service default".
type Request struct {
	Query               string   `json:"query"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	MaxIterations       int      `json:"max_iterations,omitempty"`
	EnableReflection    *bool    `json:"enable_reflection,omitempty"`
	Intent              string   `json:"intent,omitempty"`
}

// Answer is the payload of a completed query.
type Answer struct {
	Answer              plan.Response         `json:"answer"`
	Confidence          float64               `json:"confidence"`
	Sources             []string              `json:"sources"`
	Iterations          int                   `json:"iterations"`
	Warnings            []string              `json:"warnings"`
	CorrectionsApplied  []string              `json:"corrections_applied"`
	ConfidenceBreakdown map[string]float64    `json:"confidence_breakdown"`
	ConfidenceFlags     []string              `json:"confidence_flags"`
	Validation          plan.ValidationResult `json:"validation"`
	Reflection          *plan.Reflection      `json:"reflection,omitempty"`
}

// ResultMetadata describes how the answer was produced.
type ResultMetadata struct {
	Query        string        `json:"query"`
	Intent       string        `json:"intent,omitempty"`
	PlanMetadata plan.Metadata `json:"plan_metadata"`
}

// ErrorDetail is the error member of a failed Result.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Result is the output of one agentic query. Success mirrors the validation
// verdict of the final iteration.
type Result struct {
	Success  bool           `json:"success"`
	Data     *Answer        `json:"data"`
	Metadata ResultMetadata `json:"metadata"`
	Error    *ErrorDetail   `json:"error"`
}
