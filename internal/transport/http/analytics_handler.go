package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "futurescli/internal/errors"
	"futurescli/internal/middleware"
	"futurescli/internal/services"
	"futurescli/internal/session"
	"futurescli/pkg/contracts/domain"
)

// maxSessionDays bounds ?days= on the session endpoint.
const maxSessionDays = 260

// AnalyticsHandler serves the analytics API
type AnalyticsHandler struct {
	service      AnalyticsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	params       *middleware.QueryParamValidator
	now          func() time.Time
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service AnalyticsService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalyticsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &AnalyticsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "analytics_handler")),
		errorHandler: errorHandler,
		params:       middleware.NewQueryParamValidator(logger, errorHandler),
		now:          time.Now,
	}
}

// Routes returns the analytics routes
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/rollspec", h.RollSpec)
	r.Post("/continuous/{method}", h.Continuous)
	r.Post("/constant-maturity", h.ConstantMaturity)
	r.Post("/bars", h.Bars)
	r.Post("/legs", h.Legs)

	r.Route("/options", func(r chi.Router) {
		r.Post("/price", h.PriceOption)
		r.Post("/implied-vol", h.ImpliedVol)
		r.Post("/smile", h.Smile)
	})

	r.Get("/session", h.Session)
	return r
}

// decode reads the JSON body into v. On failure the error response is
// already written.
func (h *AnalyticsHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	return true
}

func (h *AnalyticsHandler) format(w http.ResponseWriter, r *http.Request) (string, bool) {
	return h.params.ValidateEnum(w, r, "format", formats, FormatJSON)
}

// RollSpec handles POST /api/v1/rollspec
func (h *AnalyticsHandler) RollSpec(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	var req services.RollSpecRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.RollSpec(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.respond(w, r, format, res, rollSpecExport(res))
}

// Continuous handles POST /api/v1/continuous/{method}
func (h *AnalyticsHandler) Continuous(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	method := chi.URLParam(r, "method")
	var req services.ContinuousRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Continuous(r.Context(), method, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.respond(w, r, format, newContinuousResponse(res), continuousExport(res))
}

// ConstantMaturity handles POST /api/v1/constant-maturity
func (h *AnalyticsHandler) ConstantMaturity(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	var req services.ConstantMaturityRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.ConstantMaturity(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.respond(w, r, format, res, constantMaturityExport(res))
}

// Bars handles POST /api/v1/bars
func (h *AnalyticsHandler) Bars(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	var req services.BarsRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Bars(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.respond(w, r, format, res, barsExport(res))
}

// Legs handles POST /api/v1/legs
func (h *AnalyticsHandler) Legs(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	var req services.LegsRequest
	if !h.decode(w, r, &req) {
		return
	}

	legs, err := h.service.Legs(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.respond(w, r, format, legs, legsExport(req.Parent, legs))
}

// PriceOption handles POST /api/v1/options/price
func (h *AnalyticsHandler) PriceOption(w http.ResponseWriter, r *http.Request) {
	var req services.OptionPriceRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.PriceOption(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// ImpliedVol handles POST /api/v1/options/implied-vol
func (h *AnalyticsHandler) ImpliedVol(w http.ResponseWriter, r *http.Request) {
	var req services.ImpliedVolRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.ImpliedVol(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// Smile handles POST /api/v1/options/smile
func (h *AnalyticsHandler) Smile(w http.ResponseWriter, r *http.Request) {
	var req services.SmileRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Smile(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// Session handles GET /api/v1/session?at=&days=. at is RFC 3339 or a
// YYYY-MM-DD date, read as midnight in Chicago; it defaults to now.
func (h *AnalyticsHandler) Session(w http.ResponseWriter, r *http.Request) {
	days, ok := h.params.ValidateInt(w, r, "days", 0, maxSessionDays, 5)
	if !ok {
		return
	}

	at := h.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := parseInstant(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidParameter("at", "at must be an RFC 3339 timestamp or a YYYY-MM-DD date"))
			return
		}
		at = parsed
	}

	render.JSON(w, r, h.service.Session(r.Context(), at, days))
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return d.In(session.Chicago), nil
}
