package agentic

import (
	"context"
	"errors"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Error codes of a failed Result.
const (
	CodeInvalidRequest = "invalid_request"
	CodeMalformedPlan  = "malformed_plan"
	CodeCanceled       = "canceled"
	CodeInternal       = "internal_error"
)

// ErrInvalidRequest is returned for requests the service refuses to plan.
var ErrInvalidRequest = errors.New("invalid request")

// ErrMalformedPlan aliases the plan construction error so gateways need
// only this package.
var ErrMalformedPlan = plan.ErrMalformedPlan

// Code maps an error returned by Service.Query to its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrMalformedPlan):
		return CodeMalformedPlan
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// ErrorResult renders err as a failed Result.
func ErrorResult(query string, err error) *Result {
	return &Result{
		Success:  false,
		Metadata: ResultMetadata{Query: query, PlanMetadata: plan.Metadata{}},
		Error:    &ErrorDetail{Code: Code(err), Message: err.Error()},
	}
}
