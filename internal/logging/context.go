package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestCtxKey struct{}
type queryCtxKey struct{}

// QueryInfo identifies the query a log line belongs to.
type QueryInfo struct {
	ID     string
	Intent string
}

// ContextFields extracts correlation data from ctx: the active span, the
// request ID and the query being answered.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if q, ok := QueryFromContext(ctx); ok {
		fields = append(fields, zap.String("query.id", q.ID))
		if q.Intent != "" {
			fields = append(fields, zap.String("query.intent", q.Intent))
		}
	}
	return fields
}

// WithRequestID tags ctx with the transport request ID. Empty IDs are
// ignored.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithQuery tags ctx with the query being answered.
func WithQuery(ctx context.Context, q QueryInfo) context.Context {
	if q.ID == "" {
		return ctx
	}
	return context.WithValue(ctx, queryCtxKey{}, q)
}

// QueryFromContext returns the query tag, if any.
func QueryFromContext(ctx context.Context) (QueryInfo, bool) {
	q, ok := ctx.Value(queryCtxKey{}).(QueryInfo)
	return q, ok
}
