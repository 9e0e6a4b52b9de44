package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// maxWalkDepth bounds the recursion into tool payloads.
const maxWalkDepth = 6

// toolStep issues one typed request and stores the normalized result.
func toolStep(name, description string, req Request, opts ...plan.StepOption) plan.Step {
	opts = append([]plan.StepOption{plan.WithDescription(description)}, opts...)
	return plan.NewStep(name, func(ctx context.Context, ec *plan.ExecContext) (any, error) {
		params := req.Params()
		env := ec.CallTool(ctx, req.Method(), params)
		return plan.ToolResult{Method: req.Method(), Params: params, Envelope: env}, nil
	}, opts...)
}

// aggregateStep builds the response of a plan. Sources found by
// supplemental lookups are folded in, whatever their base step.
func aggregateStep(name string, fn func(ec *plan.ExecContext) plan.Response) plan.Step {
	return plan.NewStep(name, func(_ context.Context, ec *plan.ExecContext) (any, error) {
		resp := fn(ec)
		supplemental := ec.Supplemental("")
		if len(supplemental) == 0 {
			return resp, nil
		}
		payloads := make([]any, 0, len(supplemental))
		for _, s := range supplemental {
			v, _ := ec.Load(s)
			payloads = append(payloads, v)
		}
		resp[plan.KeySources] = mergeStrings(resp.Sources(), collectSources(payloads...))
		details := resp.Details()
		details["supplemental_steps"] = supplemental
		resp[plan.KeyDetails] = details
		return resp, nil
	}, plan.WithDescription("aggregate lookup results"))
}

// lookup is what an aggregation sees of one lookup step, merged with any
// supplemental copies of it.
type lookup struct {
	name     string
	rows     []map[string]any
	payloads []any
	failures []string
	ran      int
}

func readLookup(ec *plan.ExecContext, name string) lookup {
	l := lookup{name: name}
	for _, key := range append([]string{name}, ec.Supplemental(name)...) {
		v, ok := ec.Load(key)
		if !ok {
			continue
		}
		l.ran++
		switch t := v.(type) {
		case plan.ToolResult:
			if !t.Envelope.Success {
				l.failures = append(l.failures, t.Envelope.Message())
				continue
			}
			l.rows = append(l.rows, t.Rows()...)
			l.payloads = append(l.payloads, t.Envelope.Data)
		case plan.StepFailure:
			l.failures = append(l.failures, t.Error())
		default:
			l.rows = append(l.rows, plan.Rows(v)...)
			l.payloads = append(l.payloads, v)
		}
	}
	return l
}

// failed reports whether no copy of the step produced data.
func (l lookup) failed() bool {
	return len(l.payloads) == 0
}

func (l lookup) warning() string {
	if l.ran == 0 {
		return fmt.Sprintf("%s produced no result", l.name)
	}
	return fmt.Sprintf("%s failed: %s", l.name, l.failures[0])
}

// warnFailures records failed required lookups in details.warnings.
func warnFailures(details map[string]any, required ...lookup) {
	var warnings []string
	for _, l := range required {
		if l.failed() {
			warnings = append(warnings, l.warning())
		}
	}
	if len(warnings) > 0 {
		details[plan.KeyWarnings] = warnings
	}
}

// collectSources harvests provenance from tool payloads: "sources" lists and
// "file_name" fields, de-duplicated in first-seen order.
func collectSources(payloads ...any) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > maxWalkDepth {
			return
		}
		switch t := v.(type) {
		case plan.ToolResult:
			if t.Envelope.Success {
				walk(t.Envelope.Data, depth+1)
			}
		case plan.Response:
			walk(map[string]any(t), depth)
		case map[string]any:
			for _, s := range plan.Strings(t[plan.KeySources]) {
				add(s)
			}
			if name, ok := t["file_name"].(string); ok {
				add(name)
			}
			if inner, ok := t["data"]; ok {
				walk(inner, depth+1)
			}
		case []map[string]any:
			for _, item := range t {
				walk(item, depth+1)
			}
		case []any:
			for _, item := range t {
				walk(item, depth+1)
			}
		}
	}
	for _, p := range payloads {
		walk(p, 0)
	}
	return out
}

// harvestMetrics collects numeric "metrics" lists reported by tools.
func harvestMetrics(payloads ...any) []float64 {
	var out []float64
	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > maxWalkDepth {
			return
		}
		switch t := v.(type) {
		case plan.ToolResult:
			if t.Envelope.Success {
				walk(t.Envelope.Data, depth+1)
			}
		case plan.Response:
			walk(map[string]any(t), depth)
		case map[string]any:
			out = append(out, plan.Floats(t[plan.KeyMetrics])...)
			if inner, ok := t["data"]; ok {
				walk(inner, depth+1)
			}
		case []any:
			for _, item := range t {
				walk(item, depth+1)
			}
		}
	}
	for _, p := range payloads {
		walk(p, 0)
	}
	return out
}

// timestamps returns the non-empty string values of field across rows.
func timestamps(field string, rows ...[]map[string]any) []string {
	var out []string
	for _, set := range rows {
		for _, row := range set {
			switch v := row[field].(type) {
			case string:
				if v != "" {
					out = append(out, v)
				}
			case fmt.Stringer:
				out = append(out, v.String())
			}
		}
	}
	return out
}

func numbers(field string, rows []map[string]any) []float64 {
	var out []float64
	for _, row := range rows {
		if f, ok := plan.Float(row[field]); ok {
			out = append(out, f)
		}
	}
	return out
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// jsonList decodes a list column that may arrive as JSON text.
func jsonList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		var out []any
		if err := json.Unmarshal([]byte(t), &out); err == nil {
			return out
		}
	case []byte:
		var out []any
		if err := json.Unmarshal(t, &out); err == nil {
			return out
		}
	}
	return nil
}

func mergeStrings(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// newResponse assembles the standard response map. source_timestamps is set
// only when there are timestamps.
func newResponse(summary string, details map[string]any, metrics []float64, sources, stamps []string) plan.Response {
	resp := plan.Response{
		plan.KeySummary: summary,
		plan.KeyDetails: details,
		plan.KeyMetrics: orEmpty(metrics),
		plan.KeySources: mergeStrings(sources),
	}
	if len(stamps) > 0 {
		resp[plan.KeySourceTimestamps] = stamps
	}
	return resp
}
