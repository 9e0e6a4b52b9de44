package plan

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ToolRunner is the single gateway through which steps reach data backends.
type ToolRunner interface {
	Call(ctx context.Context, method string, params map[string]any) (any, error)
}

// ToolRunnerFunc adapts a function to ToolRunner.
type ToolRunnerFunc func(ctx context.Context, method string, params map[string]any) (any, error)

// Call implements ToolRunner.
func (f ToolRunnerFunc) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	return f(ctx, method, params)
}

// ExecContext is the per-iteration working memory shared by the steps of
// one plan execution. It is safe for concurrent use by steps of the same
// phase.
type ExecContext struct {
	Query    string
	Metadata Metadata

	runner ToolRunner

	mu     sync.RWMutex
	memory map[string]any
}

// NewExecContext creates an empty execution context.
func NewExecContext(query string, runner ToolRunner, metadata Metadata) *ExecContext {
	return &ExecContext{
		Query:    query,
		Metadata: metadata.Clone(),
		runner:   runner,
		memory:   make(map[string]any),
	}
}

// Store records a step result.
func (c *ExecContext) Store(step string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[step] = v
}

// Load returns the result recorded for step.
func (c *ExecContext) Load(step string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.memory[step]
	return v, ok
}

// Memory returns a snapshot of all recorded results.
func (c *ExecContext) Memory() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.memory))
	for k, v := range c.memory {
		out[k] = v
	}
	return out
}

// Supplemental returns the names of recorded supplemental results for base,
// in lexical order. Passing "" returns every supplemental result.
func (c *ExecContext) Supplemental(base string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names []string
	for k := range c.memory {
		if IsSupplementalOf(k, base) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// CallTool invokes the runner and normalizes the outcome. Transport errors
// and panics never escape; they come back as failed envelopes.
func (c *ExecContext) CallTool(ctx context.Context, method string, params map[string]any) (env Envelope) {
	if c.runner == nil {
		return Failure(CodeToolFailed, "no tool runner configured")
	}
	defer func() {
		if r := recover(); r != nil {
			env = Failure(CodeToolFailed, "tool runner panicked")
		}
	}()
	v, err := c.runner.Call(ctx, method, params)
	return NormalizeEnvelope(v, err)
}

// IsSupplementalOf reports whether name is a supplemental copy of base.
func IsSupplementalOf(name, base string) bool {
	idx := indexSuffix(name)
	if idx < 0 {
		return false
	}
	return base == "" || name[:idx] == base
}

// BaseName strips a supplemental suffix.
func BaseName(name string) string {
	if idx := indexSuffix(name); idx >= 0 {
		return name[:idx]
	}
	return name
}

func indexSuffix(name string) int {
	idx := strings.LastIndex(name, SupplementalSuffix)
	if idx <= 0 {
		return -1
	}
	return idx
}
