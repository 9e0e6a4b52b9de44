package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader metric.Reader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	byName := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			byName[md.Name] = md
		}
	}
	return byName
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/query", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, map[string]string{"code": "invalid_request"})
	})

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/query", nil),
	} {
		e.ServeHTTP(httptest.NewRecorder(), r)
	}

	byName := collectMetrics(t, reader)

	requests, ok := byName["propertyrag.http.requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok, "requests counter not found")
	var total int64
	for _, dp := range requests.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, requests.DataPoints, 2, "one series per route and status")

	durations, ok := byName["propertyrag.http.request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "duration histogram not found")
	var count uint64
	for _, dp := range durations.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestHTTPMetrics_RecordQuery(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	ctx := context.Background()
	m.RecordQuery(ctx, "ok", true)
	m.RecordQuery(ctx, "ok", true)
	m.RecordQuery(ctx, "invalid_request", false)

	sum, ok := collectMetrics(t, reader)["propertyrag.http.query_results_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		code, _ := dp.Attributes.Value(attribute.Key("code"))
		got[code.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"ok": 2, "invalid_request": 1}, got)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "unmatched", normalizePath(""))
	assert.Equal(t, "/api/v1/query", normalizePath("/api/v1/query"))
}
