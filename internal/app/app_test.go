package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurescli/internal/config"
	"futurescli/internal/shared/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.APIKeyEnvVar, "")

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		DataDir:    filepath.Join(root, "data"),
		CacheDir:   filepath.Join(root, "data", "cache"),
		ExportsDir: filepath.Join(root, "data", "exports"),
		LogsDir:    filepath.Join(root, "logs"),
	}
	cfg.Databento.APIKeyFile = filepath.Join(root, "no_such_key")
	cfg.Security.RateLimit.Enabled = false
	cfg.Telemetry.TracesExporter = "none"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*Application, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	a, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a, logs
}

func serve(a *Application, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestNew_WithoutAPIKey(t *testing.T) {
	cfg := testConfig(t)
	a, logs := newTestApp(t, cfg)

	assert.Nil(t, a.MarketData)
	assert.False(t, a.Analytics.HasSource())
	assert.DirExists(t, cfg.Paths.CacheDir)
	assert.DirExists(t, cfg.Paths.ExportsDir)
	assert.True(t, logs.ContainsMessage("No Databento API key; only requests carrying their own data will succeed"))
	assert.Equal(t, ":8080", a.Server.Addr)
}

func TestNew_WithAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Databento.APIKey = "db-test-key"
	a, _ := newTestApp(t, cfg)

	require.NotNil(t, a.MarketData)
	assert.True(t, a.Analytics.HasSource())
	assert.Equal(t, config.DefaultDataset, a.MarketData.Dataset())
}

func TestNewMarketDataClient(t *testing.T) {
	cfg := testConfig(t)

	_, err := NewMarketDataClient(cfg, nil, nil, nil)
	assert.ErrorIs(t, err, config.ErrNoAPIKey)

	t.Setenv(config.APIKeyEnvVar, "db-from-env")
	cfg.Databento.Dataset = "XNAS.ITCH"
	client, err := NewMarketDataClient(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "XNAS.ITCH", client.Dataset())
}

func TestRouter(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t))

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "health", method: http.MethodGet, target: "/api/health", wantStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, target: "/api/health/ready", wantStatus: http.StatusOK},
		{name: "liveness", method: http.MethodGet, target: "/api/health/live", wantStatus: http.StatusOK},
		{name: "detailed health", method: http.MethodGet, target: "/api/health/detailed", wantStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, target: "/api/version", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, target: "/api/health", contentType: "application/json", body: "{}", wantStatus: http.StatusMethodNotAllowed},
		{
			name:       "session",
			method:     http.MethodGet,
			target:     "/api/v1/session?at=2025-03-07T15:00:00Z&days=2",
			wantStatus: http.StatusOK,
		},
		{
			name:        "option price",
			method:      http.MethodPost,
			target:      "/api/v1/options/price",
			contentType: "application/json",
			body:        `{"model":"black76","option_type":"C","underlying_price":100,"strike_price":100,"years_to_expiration":1,"vol":0.2}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "invalid JSON",
			method:      http.MethodPost,
			target:      "/api/v1/options/price",
			contentType: "application/json",
			body:        `{"model":`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "wrong content type",
			method:      http.MethodPost,
			target:      "/api/v1/options/price",
			contentType: "text/plain",
			body:        "model=black76",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "fetch without a source",
			method:      http.MethodPost,
			target:      "/api/v1/rollspec",
			contentType: "application/json",
			body:        `{"symbol":"SR3.cm.182","start":"2025-01-01","end":"2025-03-01"}`,
			wantStatus:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(a, tt.method, tt.target, tt.contentType, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRouter_SessionBody(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t))

	rec := serve(a, http.MethodGet, "/api/v1/session?at=2025-03-07T15:00:00Z&days=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		BusinessDay      bool     `json:"business_day"`
		NextBusinessDays []string `json:"next_business_days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.BusinessDay)
	assert.Equal(t, []string{"2025-03-10", "2025-03-11"}, body.NextBusinessDays)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	a, _ := newTestApp(t, cfg)

	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/api/health", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(a, http.MethodGet, "/api/health", "", "").Code)
}

func TestStopWithoutStart(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	a, err := New(testConfig(t), logger)
	require.NoError(t, err)
	assert.NoError(t, a.Stop(context.Background()))
}
