package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurescli/internal/config"
	"futurescli/internal/shared/testutil"
)

func newTestProviders(t *testing.T, cfg *OTelConfig) *OTelProviders {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(ctx)
	})
	return providers
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.TelemetryConfig{
		ServiceName:    "svc",
		TracesExporter: "stdout",
		MetricsEnabled: true,
	})
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, config.AppVersion, cfg.ServiceVersion)
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.True(t, cfg.EnableMetrics)
}

func TestOTelInitialization(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *OTelConfig
		wantTracing bool
		wantMetrics bool
		wantErr     bool
	}{
		{name: "defaults", cfg: nil, wantMetrics: true},
		{
			name:        "stdout traces",
			cfg:         &OTelConfig{ServiceName: "t", TraceExporter: "stdout", TraceWriter: io.Discard, EnableMetrics: true},
			wantTracing: true,
			wantMetrics: true,
		},
		{name: "everything off", cfg: &OTelConfig{ServiceName: "t", TraceExporter: "none"}},
		{name: "unknown exporter", cfg: &OTelConfig{ServiceName: "t", TraceExporter: "otlp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr {
				_, err := InitializeOTel(tt.cfg, nil)
				assert.Error(t, err)
				return
			}
			providers := newTestProviders(t, tt.cfg)
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			assert.Equal(t, tt.wantTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.PrometheusHTTP != nil)
		})
	}
}

func TestTraceCorrelation(t *testing.T) {
	newTestProviders(t, &OTelConfig{ServiceName: "t", TraceExporter: "stdout", TraceWriter: io.Discard})

	ctx, span := StartSpan(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	require.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestSpansAreExported(t *testing.T) {
	var out bytes.Buffer
	providers := newTestProviders(t, &OTelConfig{ServiceName: "t", TraceExporter: "stdout", TraceWriter: &out})

	ctx, span := StartSpan(context.Background(), "rollspec")
	SetSpanAttributes(ctx, map[string]any{
		"symbol":  "SR3",
		"windows": 4,
		"rate":    0.05,
		"adjust":  true,
		"size":    int64(7),
		"other":   time.Second,
	})
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)
	span.End()

	require.NoError(t, providers.TracerProvider.ForceFlush(context.Background()))
	assert.Contains(t, out.String(), `"Name":"rollspec"`)
	assert.Contains(t, out.String(), "boom")
}

func TestBusinessMetricsEndpoint(t *testing.T) {
	providers := newTestProviders(t, &OTelConfig{ServiceName: "t", TraceExporter: "none", EnableMetrics: true})

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordOperation(ctx, "rollspec", 20*time.Millisecond, 12, nil)
	metrics.RecordOperation(ctx, "splice", time.Millisecond, 0, errors.New("no data"))
	metrics.RecordMarketData(ctx, "definition", 1024, false)
	metrics.RecordMarketData(ctx, "definition", 0, true)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, name := range []string{
		"futures_operations_total",
		"futures_operation_errors_total",
		"futures_rows_produced_total",
		"futures_marketdata_requests_total",
		"futures_marketdata_cache_hits_total",
		"go_goroutines",
	} {
		assert.Contains(t, string(body), name)
	}
}

func TestBusinessMetricsNil(t *testing.T) {
	var metrics *BusinessMetrics
	assert.NotPanics(t, func() {
		metrics.RecordOperation(context.Background(), "x", time.Second, 1, nil)
		metrics.RecordMarketData(context.Background(), "x", 1, false)
	})

	noop, err := CreateBusinessMetrics(nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		noop.RecordOperation(context.Background(), "x", time.Second, 1, errors.New("e"))
	})
}
