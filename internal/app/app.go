package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"futurescli/internal/config"
	apierrors "futurescli/internal/errors"
	"futurescli/internal/infrastructure"
	"futurescli/internal/marketdata"
	customMiddleware "futurescli/internal/middleware"
	"futurescli/internal/services"
	handlers "futurescli/internal/transport/http"
	"futurescli/pkg/contracts"
)

var (
	// Version is reported by /api/version and the health endpoints.
	Version = contracts.Version
	// BuildTime is empty in development builds.
	BuildTime = buildTime()
)

func buildTime() string {
	if contracts.BuildTime == "unknown" {
		return ""
	}
	return contracts.BuildTime
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	ErrorHandler  *apierrors.ErrorHandler
	Validation    *customMiddleware.ValidationMiddleware
	MarketData    *marketdata.Client // nil without an API key
	Analytics     *services.AnalyticsService
	Health        *services.HealthService
}

// NewApplication loads the configuration and logger and builds the
// application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", Version))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()
	a.createServer()

	return a, nil
}

// NewMarketDataClient builds a Databento client from cfg, caching replies
// under paths.CacheDir when the cache is enabled. It returns
// config.ErrNoAPIKey when no key is configured.
func NewMarketDataClient(cfg *config.Config, paths *config.Paths, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) (*marketdata.Client, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	client, err := marketdata.NewClient(marketdata.Config{
		BaseURL:       cfg.Databento.BaseURL,
		APIKey:        key.Reveal(),
		Dataset:       cfg.Databento.Dataset,
		Timeout:       cfg.Databento.Timeout,
		RetryCount:    cfg.Databento.RetryCount,
		MaxConcurrent: cfg.Databento.MaxConcurrent,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Databento.UseCache && paths != nil {
		store, err := marketdata.NewStore(paths.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open market data cache: %w", err)
		}
		client.WithStore(store)
	}
	if metrics != nil {
		client.WithRecorder(metrics)
	}
	return client, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	a.ErrorHandler = apierrors.NewErrorHandler(a.Logger, false)
	a.Validation = customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler)

	client, err := NewMarketDataClient(a.Config, a.Paths, a.Metrics, a.Logger)
	switch {
	case errors.Is(err, config.ErrNoAPIKey):
		a.Logger.Warn("No Databento API key; only requests carrying their own data will succeed",
			slog.String("env", config.APIKeyEnvVar))
	case err != nil:
		return fmt.Errorf("failed to create market data client: %w", err)
	default:
		a.MarketData = client
	}

	// Only a non-nil client may become the interface value.
	var source services.MarketData
	if a.MarketData != nil {
		source = a.MarketData
	}

	a.Analytics = services.NewAnalyticsService(source, a.Validation, a.Metrics, a.Config.Analytics, a.Logger)
	a.Health = services.NewHealthService(Version, BuildTime, a.Paths, a.MarketData != nil, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → errors/recovery → OTel → security → CORS → rate limit
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(apierrors.NewErrorMiddleware(a.ErrorHandler, a.Logger).Handler)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}

	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(a.getCORSConfig()))
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.setupAPIRoutes(r)
	r.Mount("/metrics", handlers.NewMetricsHandler(a.OTelProviders, a.ErrorHandler).Routes())

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout))

			healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/health/detailed", healthHandler.Detailed)
			r.Get("/version", healthHandler.Version)
		})

		// Analytics may fetch from Databento and gets the longer timeout
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout))
			r.Use(a.Validation.ValidateRequest)
			r.Use(customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json"))

			analyticsHandler := handlers.NewAnalyticsHandler(a.Analytics, a.Logger, a.ErrorHandler)
			r.Mount("/v1", analyticsHandler.Routes())
		})
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
	if a.Config.Security.EnableCORS {
		cfg.AllowedOrigins = a.Config.Security.AllowedOrigins
	}
	return cfg
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start serves in the background. A listener failure cancels ctx through
// cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.Bool("market_data", a.MarketData != nil))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop drains the server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run starts the server and blocks until SIGINT, SIGTERM or a listener
// failure, then shuts down.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped")
	}

	// ctx may already be cancelled; give shutdown its own budget
	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
