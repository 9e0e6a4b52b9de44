package plan

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Response is the structured output of an aggregation step.
type Response map[string]any

// Has reports whether key is present, even with a nil value.
func (r Response) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Summary returns the summary text.
func (r Response) Summary() string {
	s, _ := r[KeySummary].(string)
	return s
}

// Sources returns the declared sources.
func (r Response) Sources() []string {
	return Strings(r[KeySources])
}

// Metrics returns the numeric metrics, skipping non-numeric entries.
func (r Response) Metrics() []float64 {
	return Floats(r[KeyMetrics])
}

// Timestamps returns the raw source timestamps.
func (r Response) Timestamps() []string {
	return Strings(r[KeySourceTimestamps])
}

// Details returns the details map, never nil.
func (r Response) Details() map[string]any {
	if d, ok := AsMap(r[KeyDetails]); ok {
		return d
	}
	return map[string]any{}
}

// Warnings returns details.warnings.
func (r Response) Warnings() []string {
	return Strings(r.Details()[KeyWarnings])
}

// AsMap converts the supported map shapes to map[string]any.
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Response:
		return map[string]any(t), true
	case Metadata:
		return map[string]any(t), true
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// Strings converts a list-ish value to a string slice, dropping empty and
// non-string entries.
func Strings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

// Float converts a scalar to float64.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Floats converts a list-ish value to float64, skipping non-numeric entries.
func Floats(v any) []float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		out := make([]float64, 0, len(t))
		for _, n := range t {
			out = append(out, float64(n))
		}
		return out
	case []any:
		out := make([]float64, 0, len(t))
		for _, item := range t {
			if _, isString := item.(string); isString {
				continue
			}
			if f, ok := Float(item); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

// Rows extracts a list of records from a tool payload. It accepts a bare
// list, or a map wrapping the list under "data" or "rows".
func Rows(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := AsMap(item); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		m, ok := AsMap(v)
		if !ok {
			return nil
		}
		for _, key := range []string{"data", "rows"} {
			if inner, present := m[key]; present {
				return Rows(inner)
			}
		}
		return nil
	}
}
