// Package marketdata fetches historical futures and options data from the
// Databento REST API and decodes its CSV encoding into domain types.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"futurescli/pkg/contracts/domain"
)

const (
	DefaultBaseURL = "https://hist.databento.com"
	DefaultDataset = "GLBX.MDP3"

	getRangePath = "/v0/timeseries.get_range"
	resolvePath  = "/v0/symbology.resolve"
)

// Schemas used by this package.
const (
	SchemaDefinition = "definition"
	SchemaStatistics = "statistics"
	SchemaTrades     = "trades"
	SchemaMBP1       = "mbp-1"
	SchemaOHLCV1D    = "ohlcv-1d"
	SchemaOHLCV1H    = "ohlcv-1h"
	SchemaOHLCV1M    = "ohlcv-1m"
)

// Symbology types.
const (
	STypeRawSymbol    = "raw_symbol"
	STypeParent       = "parent"
	STypeContinuous   = "continuous"
	STypeInstrumentID = "instrument_id"
)

var (
	ErrNoAPIKey     = errors.New("databento API key is not set")
	ErrEmptySymbols = errors.New("no symbols requested")
	ErrNotFound     = errors.New("symbols not found")

	// ErrTransport marks a request that did not complete or whose reply
	// could not be read.
	ErrTransport = errors.New("databento request failed")
)

// APIError is a non-2xx reply from the API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("databento: status %d: %s", e.StatusCode, e.Detail)
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIKey        string
	Dataset       string
	Timeout       time.Duration
	RetryCount    int
	RetryWait     time.Duration
	MaxConcurrent int
}

// Client is a Databento historical API client.
type Client struct {
	http          *resty.Client
	dataset       string
	maxConcurrent int
	logger        *slog.Logger
	store         *Store
	recorder      Recorder
}

// Recorder observes every range request, served remotely or from the store.
type Recorder interface {
	RecordMarketData(ctx context.Context, schema string, bytes int, cached bool)
}

// NewClient builds a client authenticated with cfg.APIKey. Requests are
// retried on transport errors, 429 and 5xx.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.APIKey, "").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("User-Agent", "futurescli/1.0").
		SetLogger(restyLogger{logger}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.RetryWait > 0 {
		rc.SetRetryWaitTime(cfg.RetryWait)
	}

	return &Client{
		http:          rc,
		dataset:       cfg.Dataset,
		maxConcurrent: cfg.MaxConcurrent,
		logger:        logger.With(slog.String("component", "databento")),
	}, nil
}

// WithStore caches GetRange replies in s.
func (c *Client) WithStore(s *Store) *Client {
	c.store = s
	return c
}

// WithRecorder reports range requests to r.
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// Dataset is the dataset used when a request leaves it empty.
func (c *Client) Dataset() string {
	return c.dataset
}

// RangeRequest selects records of one schema over [Start, End). A zero End
// asks for a single day from Start.
type RangeRequest struct {
	Dataset string    `json:"dataset"`
	Schema  string    `json:"schema" validate:"required"`
	Symbols []string  `json:"symbols" validate:"required,min=1"`
	SType   string    `json:"stype_in"`
	Start   time.Time `json:"start" validate:"required"`
	End     time.Time `json:"end"`
}

func (r RangeRequest) form(dataset string) map[string]string {
	if r.Dataset != "" {
		dataset = r.Dataset
	}
	stype := r.SType
	if stype == "" {
		stype = STypeRawSymbol
	}
	end := r.End
	if end.IsZero() {
		end = r.Start.Add(24 * time.Hour)
	}
	return map[string]string{
		"dataset":     dataset,
		"schema":      r.Schema,
		"symbols":     strings.Join(r.Symbols, ","),
		"stype_in":    stype,
		"start":       r.Start.UTC().Format(time.RFC3339Nano),
		"end":         end.UTC().Format(time.RFC3339Nano),
		"encoding":    "csv",
		"compression": "none",
		"pretty_px":   "true",
		"pretty_ts":   "true",
		"map_symbols": "true",
	}
}

// GetRange downloads the CSV encoding of req.
func (c *Client) GetRange(ctx context.Context, req RangeRequest) ([]byte, error) {
	if len(req.Symbols) == 0 {
		return nil, ErrEmptySymbols
	}
	form := req.form(c.dataset)

	key := cacheKey(form)
	if c.store != nil {
		if data, ok := c.store.Load(key); ok {
			c.logger.DebugContext(ctx, "serving range from store", slog.String("key", key))
			c.record(ctx, req.Schema, len(data), true)
			return data, nil
		}
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(getRangePath)
	if err != nil {
		return nil, fmt.Errorf("get range %s: %w: %w", req.Schema, ErrTransport, err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	c.logger.InfoContext(ctx, "range downloaded",
		slog.String("schema", req.Schema),
		slog.Int("symbols", len(req.Symbols)),
		slog.Int("bytes", len(resp.Body())),
		slog.Duration("duration", time.Since(start)),
	)
	c.record(ctx, req.Schema, len(resp.Body()), false)

	if c.store != nil {
		if err := c.store.Save(key, resp.Body()); err != nil {
			c.logger.WarnContext(ctx, "failed to store range", slog.String("error", err.Error()))
		}
	}
	return resp.Body(), nil
}

func (c *Client) record(ctx context.Context, schema string, n int, cached bool) {
	if c.recorder != nil {
		c.recorder.RecordMarketData(ctx, schema, n, cached)
	}
}

// SymbologyRequest maps symbols of one symbology type to instrument ids over
// [Start, End).
type SymbologyRequest struct {
	Dataset  string      `json:"dataset"`
	Symbols  []string    `json:"symbols" validate:"required,min=1"`
	STypeIn  string      `json:"stype_in"`
	STypeOut string      `json:"stype_out"`
	Start    domain.Date `json:"start_date"`
	End      domain.Date `json:"end_date"`
}

type resolveReply struct {
	Result   map[string][]domain.RollSegment `json:"result"`
	NotFound []string                        `json:"not_found"`
	Partial  []string                        `json:"partial"`
	Message  string                          `json:"message"`
}

// ResolveSymbology returns, per requested symbol, the instrument id that the
// symbol resolved to on each date interval. For continuous symbols such as
// "ES.v.0" these intervals are the roll segments. Symbols that do not
// resolve are reported through ErrNotFound alongside the partial result.
func (c *Client) ResolveSymbology(ctx context.Context, req SymbologyRequest) (map[string][]domain.RollSegment, error) {
	if len(req.Symbols) == 0 {
		return nil, ErrEmptySymbols
	}
	dataset := req.Dataset
	if dataset == "" {
		dataset = c.dataset
	}
	stypeIn := req.STypeIn
	if stypeIn == "" {
		stypeIn = STypeContinuous
	}
	stypeOut := req.STypeOut
	if stypeOut == "" {
		stypeOut = STypeInstrumentID
	}

	var reply resolveReply
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"dataset":    dataset,
			"symbols":    strings.Join(req.Symbols, ","),
			"stype_in":   stypeIn,
			"stype_out":  stypeOut,
			"start_date": req.Start.String(),
			"end_date":   req.End.String(),
		}).
		SetResult(&reply).
		Post(resolvePath)
	if err != nil {
		return nil, fmt.Errorf("resolve symbology: %w: %w", ErrTransport, err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	if reply.Result == nil {
		// Content types other than JSON are not decoded automatically.
		if err := json.Unmarshal(resp.Body(), &reply); err != nil {
			return nil, fmt.Errorf("decode symbology: %w: %w", ErrTransport, err)
		}
	}

	if len(reply.Partial) > 0 {
		c.logger.WarnContext(ctx, "symbols partially resolved", slog.Any("symbols", reply.Partial))
	}
	if len(reply.NotFound) > 0 {
		return reply.Result, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(reply.NotFound, ","))
	}
	return reply.Result, nil
}

func apiError(resp *resty.Response) error {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	detail := strings.TrimSpace(resp.String())
	if err := json.Unmarshal(resp.Body(), &body); err == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			detail = s
		} else {
			detail = string(body.Detail)
		}
	}
	return &APIError{StatusCode: resp.StatusCode(), Detail: detail}
}

type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
