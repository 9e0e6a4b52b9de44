package mcp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/agentic"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
)

const instrumentationName = "github.com/DanielJandric/embeddingsall-sub000/internal/mcp"

// Metrics holds the MCP tool instruments.
type Metrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	confidence  metric.Float64Histogram
	active      metric.Int64UpDownCounter
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics(logger *logging.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn(context.Background(), "failed to create instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &Metrics{}
	var err error
	m.invocations, err = meter.Int64Counter("propertyrag.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool invocations by tool and result code."),
		metric.WithUnit("{invocation}"))
	warn("invocations_total", err)

	m.duration, err = meter.Float64Histogram("propertyrag.mcp.tool.duration_seconds",
		metric.WithDescription("Duration of MCP tool invocations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60))
	warn("duration_seconds", err)

	m.confidence, err = meter.Float64Histogram("propertyrag.mcp.answer_confidence",
		metric.WithDescription("Confidence of answers returned over MCP."),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1))
	warn("answer_confidence", err)

	m.active, err = meter.Int64UpDownCounter("propertyrag.mcp.tool.active_requests",
		metric.WithDescription("MCP tool calls in flight."),
		metric.WithUnit("{request}"))
	warn("active_requests", err)
	return m
}

// track marks a call in flight until the returned func runs.
func (m *Metrics) track(ctx context.Context, tool string) func() {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	if m.active != nil {
		m.active.Add(ctx, 1, attrs)
	}
	return func() {
		if m.active != nil {
			m.active.Add(ctx, -1, attrs)
		}
	}
}

// RecordInvocation records one finished call. code is "ok" when err is nil
// and the agentic error code otherwise; a nil res records no confidence.
func (m *Metrics) RecordInvocation(ctx context.Context, tool string, duration time.Duration, res *agentic.Result, err error) {
	code := "ok"
	if err != nil {
		code = agentic.Code(err)
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool), attribute.String("code", code))
	if m.invocations != nil {
		m.invocations.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.confidence != nil && res != nil && res.Data != nil {
		m.confidence.Record(ctx, res.Data.Confidence, metric.WithAttributes(
			attribute.String("intent", res.Metadata.Intent),
			attribute.Bool("success", res.Success),
		))
	}
}
