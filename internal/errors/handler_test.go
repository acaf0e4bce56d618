package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurescli/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), rec.Body.String())
	return got
}

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	h := NewErrorHandler(nil, false)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/rollspec", nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantDetail string
	}{
		{
			name:       "deadline",
			err:        fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error",
			err:        ErrValidation("symbol", "required"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantDetail: "Request validation failed",
		},
		{
			name:       "validation app error shows cause",
			err:        NewAppValidationError("invalid request", errors.New("maturity_days must be > 0")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantDetail: "invalid request: maturity_days must be > 0",
		},
		{
			name:       "parsing",
			err:        NewParsingError("bad CSV", errors.New("line 3: missing column price")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeParsing,
			wantDetail: "bad CSV: line 3: missing column price",
		},
		{
			name:       "not found",
			err:        fmt.Errorf("wrapped: %w", NewNotFoundError("symbol XX.c.0", errors.New("upstream"))),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantDetail: "symbol XX.c.0 not found",
		},
		{
			name:       "data",
			err:        NewDataError("cannot splice", errors.New("no rows")),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDataInvalid,
			wantDetail: "cannot splice: no rows",
		},
		{
			name:       "network hides cause",
			err:        NewNetworkError("market data request failed", errors.New("dial tcp 10.0.0.1")),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
			wantDetail: "market data request failed",
		},
		{
			name:       "config",
			err:        NewConfigError("no API key", nil),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeConfig,
		},
		{
			name:       "body too large",
			err:        &http.MaxBytesError{Limit: 1024},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
			wantDetail: "The request body exceeds 1024 bytes",
		},
		{
			name:       "plain error",
			err:        errors.New("secret internals"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, "/api/v1/rollspec", p.Instance)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, p.Detail)
			}
			assert.NotContains(t, p.Detail, "secret internals")
			assert.NotContains(t, p.Detail, "dial tcp")
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	h.HandleError(rec, r, NewAppValidationError("bad timestamp", errors.New("parse error")).WithContext("field", "t"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeProblem(t, rec)
	assert.Equal(t, TypeValidation, got["type"])
	assert.Equal(t, "VALIDATION", got["error_type"])
	assert.Equal(t, map[string]interface{}{"field": "t"}, got["context"])
	assert.Contains(t, got, "trace_id")
	assert.NotContains(t, got, "stack")
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "request failed")

	rec = httptest.NewRecorder()
	h.HandleError(rec, r, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	testutil.AssertLogContains(t, handler, slog.LevelError, "request failed")

	rec = httptest.NewRecorder()
	h.HandleError(rec, r, nil)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	h := NewErrorHandler(nil, true)
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("x"))

	got := decodeProblem(t, rec)
	stack, ok := got["stack"].(string)
	require.True(t, ok)
	assert.True(t, strings.Contains(stack, "goroutine"))
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandlePanic(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bars", nil), "index out of range")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	got := decodeProblem(t, rec)
	assert.Equal(t, "An unexpected error occurred", got["detail"])
	assert.NotContains(t, got, "panic")
	testutil.AssertLogContains(t, handler, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethod(t *testing.T) {
	h := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/bars", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", decodeProblem(t, rec)["detail"])
}
