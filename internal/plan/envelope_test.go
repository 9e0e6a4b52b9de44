package plan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEnvelope(t *testing.T) {
	t.Run("error becomes tool_failed", func(t *testing.T) {
		env := NormalizeEnvelope(nil, errors.New("connection refused"))
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeToolFailed, env.Error.Code)
		assert.Contains(t, env.Message(), "connection refused")
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		env := NormalizeEnvelope(nil, fmt.Errorf("query: %w", context.DeadlineExceeded))
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeTimeout, env.Error.Code)
	})

	t.Run("tool error is kept", func(t *testing.T) {
		env := NormalizeEnvelope(nil, &ToolError{Code: CodeUnknownMethod, Message: "nope"})
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeUnknownMethod, env.Error.Code)
	})

	t.Run("map with success key is decoded", func(t *testing.T) {
		env := NormalizeEnvelope(map[string]any{
			"success": true,
			"data":    map[string]any{"sources": []any{"a.pdf"}, "metrics": []any{4.2}},
			"metadata": map[string]any{
				"execution_time_ms": 12.5,
				"cached":            true,
				"count":             float64(1),
			},
		}, nil)
		assert.True(t, env.Success)
		assert.True(t, env.Metadata.Cached)
		assert.Equal(t, 12.5, env.Metadata.ExecutionTimeMs)
		assert.Equal(t, 1, env.Metadata.Count)
		data, ok := AsMap(env.Data)
		require.True(t, ok)
		assert.Equal(t, []string{"a.pdf"}, Strings(data["sources"]))
	})

	t.Run("failed map without error gets a default error", func(t *testing.T) {
		env := NormalizeEnvelope(map[string]any{"success": false}, nil)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeToolFailed, env.Error.Code)
	})

	t.Run("bare payload is wrapped", func(t *testing.T) {
		payload := map[string]any{"sources": []any{}, "metrics": []any{-1}}
		env := NormalizeEnvelope(payload, nil)
		assert.True(t, env.Success)
		assert.Equal(t, payload, env.Data)
	})
}

func TestRows(t *testing.T) {
	rows := []any{map[string]any{"file_name": "a.pdf"}, "junk", map[string]any{"file_name": "b.pdf"}}

	assert.Len(t, Rows(rows), 2)
	assert.Len(t, Rows(map[string]any{"data": rows}), 2)
	assert.Nil(t, Rows("scalar"))

	res := ToolResult{Envelope: Failure(CodeToolFailed, "x")}
	assert.Nil(t, res.Rows())
}

func TestResponseAccessors(t *testing.T) {
	r := Response{
		KeySummary: "ok",
		KeySources: []any{"a", "", 3, "b"},
		KeyMetrics: []any{1, "2", 3.5},
		KeyDetails: map[string]any{KeyWarnings: []string{"w"}},
	}
	assert.Equal(t, "ok", r.Summary())
	assert.Equal(t, []string{"a", "b"}, r.Sources())
	assert.Equal(t, []float64{1, 3.5}, r.Metrics())
	assert.Equal(t, []string{"w"}, r.Warnings())
	assert.True(t, r.Has(KeySummary))
	assert.False(t, r.Has(KeySourceTimestamps))
}

func TestExecContext_CallTool(t *testing.T) {
	ec := NewExecContext("q", ToolRunnerFunc(func(ctx context.Context, method string, params map[string]any) (any, error) {
		if method == "boom" {
			panic("unexpected")
		}
		return []any{map[string]any{"id": 1}}, nil
	}), nil)

	env := ec.CallTool(context.Background(), "query_table", nil)
	assert.True(t, env.Success)
	assert.Equal(t, 1, env.Metadata.Count)

	env = ec.CallTool(context.Background(), "boom", nil)
	assert.False(t, env.Success)

	none := NewExecContext("q", nil, nil)
	assert.False(t, none.CallTool(context.Background(), "x", nil).Success)
}

func TestExecContext_Supplemental(t *testing.T) {
	ec := NewExecContext("q", nil, nil)
	ec.Store("documents_lookup", 1)
	ec.Store("documents_lookup#s2", 2)
	ec.Store("documents_lookup#s1", 3)
	ec.Store("property_lookup#s1", 4)

	assert.Equal(t, []string{"documents_lookup#s1", "documents_lookup#s2"}, ec.Supplemental("documents_lookup"))
	assert.Len(t, ec.Supplemental(""), 3)

	snap := ec.Memory()
	snap["documents_lookup"] = "mutated"
	v, _ := ec.Load("documents_lookup")
	assert.Equal(t, 1, v)
}
