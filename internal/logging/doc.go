// Package logging wraps zap with context-aware methods.
//
// Every method takes a context so correlation fields are attached without
// call sites having to thread them through:
//
//	ctx = logging.WithRequestID(ctx, "req-42")
//	ctx = logging.WithQuery(ctx, logging.QueryInfo{ID: id, Intent: "financial"})
//	logger.Info(ctx, "query answered", zap.Float64("confidence", c))
//
// adds trace_id/span_id (when a span is active), request.id, query.id and
// query.intent. Output goes to stdout (JSON or console) and, optionally, to
// an OpenTelemetry log provider through the otelzap bridge. Sub-error
// entries are sampled; errors never are. Field names such as "dsn" and
// "password", and Postgres URLs carrying credentials, are redacted by the
// encoder.
//
// Tests use NewTestLogger and assert on the observed entries.
package logging
