// Package cli holds the setup shared by the one-shot command-line tools:
// configuration, logging, the analytics service and output files.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"futurescli/internal/app"
	"futurescli/internal/config"
	"futurescli/internal/exporter"
	"futurescli/internal/infrastructure"
	"futurescli/internal/marketdata"
	"futurescli/internal/middleware"
	"futurescli/internal/services"
	"futurescli/internal/validation"
	"futurescli/pkg/contracts/domain"
)

// Stdout as an output path writes the first table as CSV to standard output.
const Stdout = "-"

// Env is what a tool needs to run one analytics operation.
type Env struct {
	Tool    string
	Config  *config.Config
	Paths   *config.Paths
	Logger  *slog.Logger
	Service *services.AnalyticsService
	Stdout  io.Writer
	files   *validation.FileValidator
	now     func() time.Time
}

// Setup loads the configuration (defaults when it cannot be read), logs
// JSON to stderr and builds the analytics service. A missing API key is
// not an error: the service then only serves inline data.
func Setup(tool string) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", slog.String("error", err.Error()))
		cfg = config.Default()
	}
	return SetupWith(tool, cfg, infrastructure.CLILogger(cfg.Logging.Level))
}

// SetupWith is Setup with an explicit configuration and logger.
func SetupWith(tool string, cfg *config.Config, logger *slog.Logger) (*Env, error) {
	logger = logger.With(slog.String("tool", tool))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	var source services.MarketData
	client, err := app.NewMarketDataClient(cfg, paths, nil, logger)
	switch {
	case errors.Is(err, config.ErrNoAPIKey):
		logger.Debug("No Databento API key configured")
	case err != nil:
		return nil, err
	default:
		source = client
	}

	validator := middleware.NewValidationMiddleware(logger, nil)
	return &Env{
		Tool:    tool,
		Config:  cfg,
		Paths:   paths,
		Logger:  logger,
		Service: services.NewAnalyticsService(source, validator, nil, cfg.Analytics, logger),
		Stdout:  os.Stdout,
		files:   validation.NewFileValidator(logger),
		now:     time.Now,
	}, nil
}

// Context is cancelled by SIGINT, SIGTERM or the configured request
// timeout.
func (e *Env) Context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	timeout := e.Config.Analytics.RequestTimeout
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// Write saves sheets to out and returns where they went. An empty out
// picks a dated file in the exports directory; a .xlsx extension writes a
// workbook with every sheet, anything else a CSV of the first sheet.
func (e *Env) Write(out, kind, symbol string, sheets ...exporter.Sheet) (string, error) {
	if len(sheets) == 0 {
		return "", exporter.ErrNoSheets
	}
	if out == Stdout {
		return Stdout, exporter.WriteTableTo(e.Stdout, sheets[0].Table, false)
	}
	if out == "" {
		out = e.Paths.GetExportPathForRun(kind, symbol, e.now(), "csv")
	} else if !filepath.IsAbs(out) {
		out = e.Paths.GetExportPath(out)
	}
	if err := e.files.ValidateOutputFile(out); err != nil {
		return "", err
	}

	if strings.EqualFold(filepath.Ext(out), ".xlsx") {
		if err := exporter.WriteXLSX(out, sheets...); err != nil {
			return "", err
		}
		return out, nil
	}
	if err := exporter.NewCSVWriter(e.Paths).WithLogger(e.Logger).WriteTable(out, sheets[0].Table); err != nil {
		return "", err
	}
	return out, nil
}

// ReadDefinitions decodes a Databento "definition" CSV file; an empty path
// yields nil so the service fetches definitions itself.
func ReadDefinitions(path string) ([]domain.InstrumentDefinition, error) {
	return readCSV(path, marketdata.DecodeDefinitions)
}

// ReadTrades decodes a Databento "trades" CSV file; an empty path yields
// nil.
func ReadTrades(path string) ([]domain.Trade, error) {
	return readCSV(path, marketdata.DecodeTrades)
}

func readCSV[T any](path string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	if err := validation.NewFileValidator(nil).ValidateInputFile(path, ".csv"); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Exit logs err and exits with status 1.
func Exit(logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
