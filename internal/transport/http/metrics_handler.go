package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "futurescli/internal/errors"
	"futurescli/internal/infrastructure"
)

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct {
	prometheus   http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler creates a new metrics handler. providers may be nil or
// have metrics disabled, in which case the endpoint answers 404.
func NewMetricsHandler(providers *infrastructure.OTelProviders, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(nil, false)
	}
	h := &MetricsHandler{errorHandler: errorHandler}
	if providers != nil {
		h.prometheus = providers.PrometheusHTTP
	}
	return h
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetMetrics)
	return r
}

// GetMetrics handles GET /metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		h.errorHandler.NotFound(w, r)
		return
	}
	h.prometheus.ServeHTTP(w, r)
}
