package plan

import (
	"context"
	"errors"
	"fmt"
)

// Envelope error codes produced by the core.
const (
	CodeToolFailed    = "tool_failed"
	CodeTimeout       = "timeout"
	CodeUnknownMethod = "unknown_method"
	CodeInvalidParams = "invalid_params"
	CodeCircuitOpen   = "circuit_open"
	CodeRateLimited   = "rate_limited"
)

// Envelope is the uniform wrapper every tool call result is normalized into.
type Envelope struct {
	Success  bool             `json:"success"`
	Data     any              `json:"data"`
	Metadata EnvelopeMetadata `json:"metadata"`
	Error    *ToolError       `json:"error"`
}

// EnvelopeMetadata describes how a tool result was produced.
type EnvelopeMetadata struct {
	ExecutionTimeMs float64  `json:"execution_time_ms"`
	Cached          bool     `json:"cached"`
	DataSources     []string `json:"data_sources"`
	Count           int      `json:"count"`
	QueryCost       int      `json:"query_cost"`
	Warnings        []string `json:"warnings"`
}

// ToolError is the error half of an Envelope. It also satisfies error so
// tool backends can return it directly.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Success wraps data in a successful envelope.
func Success(data any) Envelope {
	return Envelope{Success: true, Data: data, Metadata: EnvelopeMetadata{Count: countOf(data)}}
}

// Failure builds a failed envelope.
func Failure(code, message string) Envelope {
	return Envelope{Error: &ToolError{Code: code, Message: message}}
}

// Message returns the error message of a failed envelope, or "".
func (e Envelope) Message() string {
	if e.Success {
		return ""
	}
	if e.Error == nil {
		return "tool reported failure"
	}
	return e.Error.Error()
}

// NormalizeEnvelope turns whatever a ToolRunner returned into an Envelope.
// A non-nil err always yields a failed envelope; a map carrying a boolean
// "success" key is decoded as an envelope; anything else is treated as the
// successful payload itself.
func NormalizeEnvelope(v any, err error) Envelope {
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return Envelope{Error: te}
		}
		code := CodeToolFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = CodeTimeout
		}
		return Failure(code, err.Error())
	}

	switch t := v.(type) {
	case Envelope:
		return t
	case *Envelope:
		if t == nil {
			return Success(nil)
		}
		return *t
	case map[string]any:
		if ok, isBool := t["success"].(bool); isBool {
			return envelopeFromMap(t, ok)
		}
	}
	return Success(v)
}

func envelopeFromMap(m map[string]any, success bool) Envelope {
	env := Envelope{Success: success, Data: m["data"]}

	if md, ok := AsMap(m["metadata"]); ok {
		if f, ok := Float(md["execution_time_ms"]); ok {
			env.Metadata.ExecutionTimeMs = f
		}
		env.Metadata.Cached, _ = md["cached"].(bool)
		env.Metadata.DataSources = Strings(md["data_sources"])
		if n, ok := Float(md["count"]); ok {
			env.Metadata.Count = int(n)
		}
		if n, ok := Float(md["query_cost"]); ok {
			env.Metadata.QueryCost = int(n)
		}
		env.Metadata.Warnings = Strings(md["warnings"])
	} else {
		env.Metadata.Count = countOf(env.Data)
	}

	if em, ok := AsMap(m["error"]); ok {
		te := &ToolError{}
		te.Code, _ = em["code"].(string)
		te.Message, _ = em["message"].(string)
		te.Details, _ = AsMap(em["details"])
		env.Error = te
	} else if s, ok := m["error"].(string); ok && s != "" {
		env.Error = &ToolError{Code: CodeToolFailed, Message: s}
	}
	if !env.Success && env.Error == nil {
		env.Error = &ToolError{Code: CodeToolFailed, Message: "tool reported failure"}
	}
	return env
}

func countOf(data any) int {
	switch t := data.(type) {
	case nil:
		return 0
	case []any:
		return len(t)
	case []map[string]any:
		return len(t)
	default:
		return 1
	}
}

// ToolResult is what a tool step stores in memory: the request it issued
// and the normalized envelope it got back.
type ToolResult struct {
	Method   string         `json:"method"`
	Params   map[string]any `json:"params"`
	Envelope Envelope       `json:"envelope"`
}

// Rows returns the records of a successful call.
func (r ToolResult) Rows() []map[string]any {
	if !r.Envelope.Success {
		return nil
	}
	return Rows(r.Envelope.Data)
}
