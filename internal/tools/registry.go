package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

var (
	// ErrUnknownMethod is reported for methods nobody registered.
	ErrUnknownMethod = errors.New("unknown tool method")
	// ErrDuplicateMethod is returned by Register for a taken name.
	ErrDuplicateMethod = errors.New("tool method already registered")
)

// Handler serves one tool method. It may return a plan.Envelope, an
// envelope-shaped map, or a bare payload.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Registry dispatches tool calls by method name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{handlers: make(map[string]Handler), logger: logger.Named("tools")}
}

// Register adds a handler.
func (r *Registry) Register(method string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[method]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, method)
	}
	r.handlers[method] = h
	return nil
}

// Methods lists the registered methods, sorted.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Call implements plan.ToolRunner. It always returns a plan.Envelope and a
// nil error.
func (r *Registry) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[method]
	r.mu.RUnlock()
	if !ok {
		return plan.Failure(plan.CodeUnknownMethod, fmt.Sprintf("%v: %s", ErrUnknownMethod, method)), nil
	}

	start := time.Now()
	env := plan.NormalizeEnvelope(h(ctx, params))
	env.Metadata.ExecutionTimeMs = float64(time.Since(start).Microseconds()) / 1000

	r.logger.Trace(ctx, "tool call",
		zap.String("method", method),
		zap.Any("params", params),
		zap.Bool("success", env.Success),
		zap.Float64("execution_time_ms", env.Metadata.ExecutionTimeMs),
	)
	if !env.Success {
		r.logger.Debug(ctx, "tool call failed", zap.String("method", method), zap.String("error", env.Message()))
	}
	return env, nil
}
